package architecture_test

import (
	"sort"
	"strings"
	"testing"
)

// TestImportBoundaries walks every production file in the module and fails
// when a package imports against the allowed dependency direction.
func TestImportBoundaries(t *testing.T) {
	t.Helper()

	violations := make([]string, 0)
	for _, file := range collectModuleGoFiles(t) {
		if isTestFile(file) || shouldSkipGeneratedFile(file) {
			continue
		}

		sourcePkg := packageImportPath(file)
		rule, ok := findRule(architectureRules, sourcePkg)
		if !ok {
			continue
		}

		relPath := relToRepoRoot(file)
		for _, importPath := range parseImports(t, file) {
			if !strings.HasPrefix(importPath, modulePath+"/") {
				continue
			}
			if matchingForbiddenPrefix(importPath, rule.forbidden) == "" {
				continue
			}

			violations = append(violations,
				"governance: "+sourcePkg+" imports "+importPath+" via "+relPath+"; allowed direction: "+rule.hint,
			)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}

// TestTestImportBoundaries applies the test-file rules. Only the hermetic
// leaf packages are constrained; stack-wiring tests elsewhere are the
// repo's chosen style.
func TestTestImportBoundaries(t *testing.T) {
	t.Helper()

	violations := make([]string, 0)
	for _, file := range collectModuleGoFiles(t) {
		if !isTestFile(file) || shouldSkipGeneratedFile(file) {
			continue
		}

		sourcePkg := packageImportPath(file)
		rule, ok := findRule(testRules, sourcePkg)
		if !ok {
			continue
		}

		relPath := relToRepoRoot(file)
		for _, importPath := range parseImports(t, file) {
			if !strings.HasPrefix(importPath, modulePath+"/") {
				continue
			}
			if matchingForbiddenPrefix(importPath, rule.forbidden) == "" {
				continue
			}

			violations = append(violations,
				"governance: test "+sourcePkg+" imports "+importPath+" via "+relPath+"; allowed direction: "+rule.hint,
			)
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("%s", strings.Join(violations, "\n"))
	}
}
