// internal/results/parser.go
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawFailure is one failing spec lifted out of the runner's results document.
// File is the suite-relative path as reported by the runner; it is resolved
// and validated against the test root later, never trusted as-is.
type RawFailure struct {
	File         string
	Title        string
	ErrorMessage string
}

// Wire format of the test runner's JSON report. Pointer fields distinguish
// "absent" from "empty" so malformed documents can be rejected whole.
type document struct {
	Suites *[]suite `json:"suites"`
}

type suite struct {
	File  *string `json:"file"`
	Specs *[]spec `json:"specs"`
}

type spec struct {
	Title string     `json:"title"`
	OK    bool       `json:"ok"`
	Tests []specTest `json:"tests"`
}

type specTest struct {
	Results []specResult `json:"results"`
}

type specResult struct {
	Error  *specError  `json:"error"`
	Errors []specError `json:"errors"`
}

type specError struct {
	Message string `json:"message"`
}

// Parse extracts all failing specs from a results document. A document
// missing the top-level suite list, or containing a suite without its file or
// specs fields, is rejected as a whole rather than partially processed.
func Parse(data []byte) ([]RawFailure, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("results document is not valid JSON: %w", err)
	}
	if doc.Suites == nil {
		return nil, fmt.Errorf("results document is missing the top-level 'suites' list")
	}

	var failures []RawFailure
	for i, s := range *doc.Suites {
		if s.File == nil || s.Specs == nil {
			return nil, fmt.Errorf("suite %d is missing its 'file' or 'specs' field", i)
		}
		for _, sp := range *s.Specs {
			if sp.OK {
				continue
			}
			failures = append(failures, RawFailure{
				File:         *s.File,
				Title:        sp.Title,
				ErrorMessage: collectMessages(sp),
			})
		}
	}
	return failures, nil
}

// collectMessages concatenates every reported error fragment of a failing
// spec, in document order.
func collectMessages(sp spec) string {
	var fragments []string
	for _, tst := range sp.Tests {
		for _, res := range tst.Results {
			if res.Error != nil && res.Error.Message != "" {
				fragments = append(fragments, res.Error.Message)
			}
			for _, e := range res.Errors {
				if e.Message != "" {
					fragments = append(fragments, e.Message)
				}
			}
		}
	}
	return strings.Join(fragments, "\n")
}

// ResolveTestPath resolves a runner-reported file against the allow-listed
// test root. Paths escaping the root and symlinked files are rejected: the
// mutator must never follow an attacker-steerable path out of the sandbox.
func ResolveTestPath(testRoot, file string) (string, error) {
	absRoot, err := filepath.Abs(testRoot)
	if err != nil {
		return "", fmt.Errorf("invalid test root: %w", err)
	}

	resolved := file
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absRoot, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("test file '%s' resolves outside the test root '%s'", file, testRoot)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		return "", fmt.Errorf("test file is not accessible: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("test file '%s' is a symlink; refusing to follow", file)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("test file '%s' is not a regular file", file)
	}
	return resolved, nil
}
