package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTable(t *testing.T) {
	t.Run("aligns columns and uppercases headers", func(t *testing.T) {
		var buf bytes.Buffer
		PrintTable(&buf, []string{"userName", "arn"}, [][]string{
			{"bob", "arn:aws:iam::123456789012:user/bob"},
			{"alexandria", "arn:aws:iam::123456789012:user/alexandria"},
		})
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "USERNAME    ARN", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "bob         arn:"))
		assert.True(t, strings.HasPrefix(lines[2], "alexandria  arn:"))
	})

	t.Run("no columns produce no output", func(t *testing.T) {
		var buf bytes.Buffer
		PrintTable(&buf, nil, [][]string{{"stray"}})
		assert.Empty(t, buf.String())
	})

	t.Run("no rows produce only the header", func(t *testing.T) {
		var buf bytes.Buffer
		PrintTable(&buf, []string{"name"}, nil)
		assert.Equal(t, "NAME\n", buf.String())
	})

	t.Run("short rows leave trailing cells empty", func(t *testing.T) {
		var buf bytes.Buffer
		PrintTable(&buf, []string{"a", "b"}, [][]string{{"only"}})
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "only", lines[1])
	})
}

func TestPrintJSON(t *testing.T) {
	t.Run("indents objects", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintJSON(&buf, map[string]string{"alias": "dev"}))
		assert.Equal(t, "{\n  \"alias\": \"dev\"\n}\n", buf.String())
	})

	t.Run("nil renders as null", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintJSON(&buf, nil))
		assert.Equal(t, "null\n", buf.String())
	})
}

func TestPrintDetail(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, map[string]any{
		"arn":       "arn:aws:iam::123456789012:user/bob",
		"userName":  "bob",
		"active":    true,
		"createdAt": "2026-01-02T03:04:05Z",
	})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	// Keys come out sorted, values aligned two spaces past the longest key.
	assert.Equal(t, "active:     true", lines[0])
	assert.Equal(t, "arn:        arn:aws:iam::123456789012:user/bob", lines[1])
	assert.Equal(t, "createdAt:  2026-01-02T03:04:05Z", lines[2])
	assert.Equal(t, "userName:   bob", lines[3])
}

func TestExtractField(t *testing.T) {
	obj := map[string]any{
		"name":    "deploy",
		"count":   float64(3),
		"ratio":   1.5,
		"enabled": true,
		"tags":    []any{"a", "b"},
		"nested":  map[string]any{"k": "v"},
		"empty":   nil,
	}

	assert.Equal(t, "deploy", ExtractField(obj, "name"))
	assert.Equal(t, "3", ExtractField(obj, "count"))
	assert.Equal(t, "1.5", ExtractField(obj, "ratio"))
	assert.Equal(t, "true", ExtractField(obj, "enabled"))
	assert.Equal(t, "", ExtractField(obj, "empty"))
	assert.Equal(t, "", ExtractField(obj, "missing"))
	// Composites render as JSON, not Go syntax.
	assert.Equal(t, `["a","b"]`, ExtractField(obj, "tags"))
	assert.Equal(t, `{"k":"v"}`, ExtractField(obj, "nested"))
}

func TestExtractRows(t *testing.T) {
	items := []map[string]any{
		{"userName": "bob", "path": "/"},
		{"userName": "eve", "path": "/ops/", "extra": "ignored"},
	}
	rows := ExtractRows(items, []string{"userName", "path"})
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"bob", "/"}, rows[0])
	assert.Equal(t, []string{"eve", "/ops/"}, rows[1])
}
