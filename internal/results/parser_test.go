// internal/results/parser_test.go
package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "suites": [
    {
      "file": "login.spec.ts",
      "specs": [
        {
          "title": "logs in with valid credentials",
          "ok": false,
          "tests": [
            {
              "results": [
                {
                  "error": {"message": "Timeout 30000ms exceeded waiting for locator '.submit'"},
                  "errors": [{"message": "locator resolved to hidden element"}]
                }
              ]
            }
          ]
        },
        {"title": "shows the login form", "ok": true}
      ]
    },
    {
      "file": "cart.spec.ts",
      "specs": [
        {
          "title": "adds an item",
          "ok": false,
          "tests": [{"results": [{"error": {"message": "expect(received).toBe(expected)"}}]}]
        }
      ]
    }
  ]
}`

func TestParse_CollectsFailingSpecs(t *testing.T) {
	t.Parallel()
	failures, err := Parse([]byte(validDocument))
	require.NoError(t, err)
	require.Len(t, failures, 2)

	assert.Equal(t, "login.spec.ts", failures[0].File)
	assert.Equal(t, "logs in with valid credentials", failures[0].Title)
	// All error fragments are concatenated.
	assert.Contains(t, failures[0].ErrorMessage, "Timeout 30000ms exceeded")
	assert.Contains(t, failures[0].ErrorMessage, "locator resolved to hidden element")

	assert.Equal(t, "cart.spec.ts", failures[1].File)
}

func TestParse_RejectsMalformedDocuments(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name  string
		input string
	}{
		{"not json", "{nope"},
		{"missing suites", `{"config": {}}`},
		{"suite missing file", `{"suites": [{"specs": []}]}`},
		{"suite missing specs", `{"suites": [{"file": "a.spec.ts"}]}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.input))
			require.Error(t, err, "malformed input must be rejected whole")
		})
	}
}

func TestParse_NoFailures(t *testing.T) {
	t.Parallel()
	failures, err := Parse([]byte(`{"suites": [{"file": "ok.spec.ts", "specs": [{"title": "t", "ok": true}]}]}`))
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestResolveTestPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	inside := filepath.Join(root, "login.spec.ts")
	require.NoError(t, os.WriteFile(inside, []byte("test"), 0o644))

	outside := filepath.Join(t.TempDir(), "evil.spec.ts")
	require.NoError(t, os.WriteFile(outside, []byte("test"), 0o644))

	link := filepath.Join(root, "link.spec.ts")
	require.NoError(t, os.Symlink(outside, link))

	t.Run("valid relative path", func(t *testing.T) {
		got, err := ResolveTestPath(root, "login.spec.ts")
		require.NoError(t, err)
		assert.Equal(t, inside, got)
	})

	t.Run("escape via dotdot rejected", func(t *testing.T) {
		_, err := ResolveTestPath(root, "../outside.spec.ts")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the test root")
	})

	t.Run("absolute path outside root rejected", func(t *testing.T) {
		_, err := ResolveTestPath(root, outside)
		require.Error(t, err)
	})

	t.Run("symlink rejected", func(t *testing.T) {
		_, err := ResolveTestPath(root, "link.spec.ts")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symlink")
	})

	t.Run("missing file rejected", func(t *testing.T) {
		_, err := ResolveTestPath(root, "missing.spec.ts")
		require.Error(t, err)
	})
}
