package architecture_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const modulePath = "iamcore"

type layerRule struct {
	sourcePrefix string
	forbidden    []string
	hint         string
}

// architectureRules pin the allowed dependency directions between layers.
// internal/app and cmd are composition roots and carry no rule.
var architectureRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/policy",
			modulePath + "/internal/ids",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "domain may only import domain",
	},
	{
		sourcePrefix: modulePath + "/internal/policy",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "policy evaluates over domain types only",
	},
	{
		sourcePrefix: modulePath + "/internal/ids",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/policy",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "ids derives identifiers from domain alone",
	},
	{
		sourcePrefix: modulePath + "/internal/sts",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/policy",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "sts should depend on domain and ids",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "middleware should depend on domain and middleware-local packages",
	},
	{
		sourcePrefix: modulePath + "/internal/db",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/sts",
			modulePath + "/internal/policy",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "db should depend on domain and ids",
	},
	{
		sourcePrefix: modulePath + "/internal/service",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/db",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "service should depend on domain, policy, ids, and sts",
	},
	{
		sourcePrefix: modulePath + "/internal/api",
		forbidden: []string{
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/internal/config",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "api should depend on service and domain",
	},
	{
		sourcePrefix: modulePath + "/internal/config",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/sts",
			modulePath + "/internal/policy",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "config should depend on db settings only",
	},
	{
		sourcePrefix: modulePath + "/pkg/cli",
		forbidden: []string{
			modulePath + "/internal",
			modulePath + "/cmd",
		},
		hint: "the cli talks to the server over HTTP; the wire contract is restated locally",
	},
}

// testRules constrain test files of the hermetic leaf packages. Repository,
// service, api, sts, and app tests intentionally wire the sqlite-backed
// stack and carry no rule.
var testRules = []layerRule{
	{
		sourcePrefix: modulePath + "/internal/domain",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/policy",
			modulePath + "/internal/ids",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "domain tests exercise domain alone",
	},
	{
		sourcePrefix: modulePath + "/internal/policy",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "policy tests build inputs from domain types",
	},
	{
		sourcePrefix: modulePath + "/internal/ids",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/sts",
			modulePath + "/internal/middleware",
			modulePath + "/internal/app",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "ids tests are hermetic",
	},
	{
		sourcePrefix: modulePath + "/internal/middleware",
		forbidden: []string{
			modulePath + "/internal/api",
			modulePath + "/internal/service",
			modulePath + "/internal/db",
			modulePath + "/internal/app",
			modulePath + "/cmd",
			modulePath + "/pkg/cli",
		},
		hint: "middleware tests fake callers through domain context helpers",
	},
	{
		sourcePrefix: modulePath + "/pkg/cli",
		forbidden: []string{
			modulePath + "/internal",
			modulePath + "/cmd",
		},
		hint: "cli tests drive a recorded HTTP server, not server internals",
	},
}

// scanRoots lists the directories the governance walkers cover. The
// workspace may hold non-module directories at the repo root, so the walk
// starts below them.
func scanRoots() []string {
	root := repoRootDir()
	return []string{
		filepath.Join(root, "internal"),
		filepath.Join(root, "pkg"),
		filepath.Join(root, "cmd"),
	}
}

func collectGoFiles(root string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			files = append(files, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func collectModuleGoFiles(t *testing.T) []string {
	t.Helper()

	all := make([]string, 0)
	for _, root := range scanRoots() {
		files, err := collectGoFiles(root)
		require.NoError(t, err)
		all = append(all, files...)
	}
	return all
}

func repoRootDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func findRule(rules []layerRule, sourcePkg string) (layerRule, bool) {
	for _, rule := range rules {
		if hasPathPrefix(sourcePkg, rule.sourcePrefix) {
			return rule, true
		}
	}
	return layerRule{}, false
}

func matchingForbiddenPrefix(importPath string, forbidden []string) string {
	for _, prefix := range forbidden {
		if hasPathPrefix(importPath, prefix) {
			return prefix
		}
	}
	return ""
}

func hasPathPrefix(value string, prefix string) bool {
	return value == prefix || strings.HasPrefix(value, prefix+"/")
}

func packageImportPath(file string) string {
	rel := relToRepoRoot(file)
	dir := filepath.ToSlash(filepath.Dir(rel))
	return modulePath + "/" + dir
}

func shouldSkipGeneratedFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".gen.go") ||
		strings.HasSuffix(base, "_gen.go") ||
		strings.HasSuffix(base, ".sql.go")
}

func isTestFile(path string) bool {
	return strings.HasSuffix(filepath.Base(path), "_test.go")
}

func parseImports(t *testing.T, file string) []string {
	t.Helper()

	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, file, nil, parser.ImportsOnly)
	require.NoErrorf(t, err, "parse imports for %s", file)

	imports := make([]string, 0, len(parsed.Imports))
	for _, imp := range parsed.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, "\""))
	}
	return imports
}

func relToRepoRoot(path string) string {
	rel, err := filepath.Rel(repoRootDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
