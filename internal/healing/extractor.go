// internal/healing/extractor.go
package healing

import (
	"regexp"
	"strings"
)

// Regex definitions use \x60 for backticks because Go raw strings cannot
// contain them.
var (
	// fenceRegex captures the body of every fenced code block, whatever the
	// language tag.
	fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*[ \t]*\r?\n?(.*?)\x60\x60\x60")

	testDeclRegex = regexp.MustCompile(`(?m)\b(?:test|it|describe)\s*(?:\.\w+\s*)?\(`)
	assertRegex   = regexp.MustCompile(`(?mi)\bexpect\s*\(|\bassert\b`)
	importRegex   = regexp.MustCompile(`(?m)^\s*import\s`)
)

// ExtractCode recovers a single candidate replacement file body from a
// free-form analysis response.
//
// A response often contains several fenced blocks: the earlier ones tend to be
// illustrative snippets from the explanation and the final one the intended
// complete fix. Naive first-match extraction silently applies those examples,
// so every fenced block is scanned, blocks without a single code signal
// (import, test declaration, assertion) are discarded, and the LAST qualifying
// block wins.
func ExtractCode(response string) (string, bool) {
	matches := fenceRegex.FindAllStringSubmatch(response, -1)
	var candidate string
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		if qualifies(body) {
			candidate = body
		}
	}
	if candidate != "" {
		return candidate, true
	}

	// Fallback: no usable fence. Some responses drop the fencing entirely and
	// end with the file body; take everything from the last import statement
	// and close an unbalanced brace if needed.
	return extractImportTail(response)
}

// qualifies reports whether a fenced body looks like test code rather than
// prose or a shell transcript.
func qualifies(body string) bool {
	return importRegex.MatchString(body) ||
		testDeclRegex.MatchString(body) ||
		assertRegex.MatchString(body)
}

// extractImportTail locates the trailing "import ..." onward substring and
// synthesizes a best-effort closing brace when the block is left open.
func extractImportTail(response string) (string, bool) {
	// Only an import at the start of its line counts; "import" mid-sentence
	// is prose. The first such line starts the file body.
	idx := -1
	offset := 0
	for _, line := range strings.SplitAfter(response, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "import ") {
			idx = offset
			break
		}
		offset += len(line)
	}
	if idx == -1 {
		return "", false
	}

	tail := strings.TrimSpace(response[idx:])
	if !testDeclRegex.MatchString(tail) {
		return "", false
	}

	opens := strings.Count(tail, "{")
	closes := strings.Count(tail, "}")
	for i := closes; i < opens; i++ {
		tail += "\n}"
	}
	return tail, true
}
