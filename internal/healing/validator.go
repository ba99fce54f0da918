// internal/healing/validator.go
package healing

import (
	"regexp"
	"strings"

	"github.com/rcastell/healctl/api/schemas"
)

// markdownHeadingRegex spots section markers; their presence means the
// extractor captured prose or analysis, never code.
var markdownHeadingRegex = regexp.MustCompile(`(?m)^\s*#{1,6}\s`)

// dangerousConstructs is the blacklist applied to candidate code. This is the
// last line of defense before untrusted generated text becomes executable
// test code; any hit is a hard reject. Matching is lowercase substring.
var dangerousConstructs = []string{
	// Filesystem deletion.
	"rm -rf",
	"rimraf",
	"fs.unlink",
	"fs.rm",
	"rmdir",
	"shutil.rmtree",
	// Process termination.
	"process.exit",
	"process.kill",
	// Dynamic code evaluation.
	"eval(",
	"new function(",
	// Shell invocation.
	"child_process",
	"execsync",
	"spawnsync",
	// Imports of filesystem/process/OS modules.
	"require('fs')",
	`require("fs")`,
	"require('os')",
	`require("os")`,
	"from 'fs'",
	`from "fs"`,
	"from 'node:fs'",
	`from "node:fs"`,
	"from 'os'",
	`from "os"`,
	"from 'node:os'",
	`from "node:os"`,
	"from 'process'",
	"from 'node:process'",
}

// ValidateCode runs the multi-layer acceptance check on a candidate body.
// Hard failures clear OK; soft findings are recorded as "warning:" issues.
// Pure function over the string; no file is ever written when OK is false.
func ValidateCode(code string) schemas.ValidationResult {
	res := schemas.ValidationResult{OK: true}
	reject := func(issue string) {
		res.OK = false
		res.Issues = append(res.Issues, issue)
	}

	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		reject("candidate is empty")
		return res
	}

	if !testDeclRegex.MatchString(trimmed) {
		reject("no test declaration found; refusing to write a file without one")
	}
	if !assertRegex.MatchString(trimmed) {
		res.Issues = append(res.Issues, "warning: no assertion found in candidate")
	}

	if strings.Count(trimmed, "{") != strings.Count(trimmed, "}") {
		reject("unbalanced braces")
	}
	if strings.Count(trimmed, "(") != strings.Count(trimmed, ")") {
		reject("unbalanced parentheses")
	}

	if markdownHeadingRegex.MatchString(trimmed) || strings.Contains(trimmed, "**") {
		reject("markdown markers present; candidate looks like prose, not code")
	}

	lowered := strings.ToLower(trimmed)
	for _, construct := range dangerousConstructs {
		if strings.Contains(lowered, construct) {
			reject("dangerous construct rejected: " + construct)
		}
	}

	return res
}
