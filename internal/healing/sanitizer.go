// internal/healing/sanitizer.go
package healing

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Sanitizer bounds and redacts untrusted text (error output, test source)
// before it leaves the machine. The output never exceeds the configured
// bound, whatever the input size.
type Sanitizer struct {
	maxLen int
	logger *zap.Logger
}

// Sanitized is the result of one sanitization pass.
type Sanitized struct {
	Text string
	// InjectionFlag marks input containing instruction-override phrasing.
	// Detection warns and records; it does not block the attempt.
	InjectionFlag bool
	TruncatedChars int
}

var (
	// Instruction-override patterns frequently smuggled into error text.
	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(?:all\s+)?previous\s+instructions`),
		regexp.MustCompile(`(?i)disregard\s+(?:the\s+|all\s+)?(?:previous|above|prior)`),
		regexp.MustCompile(`(?i)\bact\s+as\b`),
		regexp.MustCompile(`(?i)you\s+are\s+now\b`),
		regexp.MustCompile(`(?i)bypass\s+(?:security|safety|validation)`),
		regexp.MustCompile(`(?i)system\s+prompt`),
	}

	urlRegex   = regexp.MustCompile(`https?://[^\s"'<>\)]+`)
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Regex  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	// Absolute filesystem paths, POSIX or Windows drive style, at least two
	// components deep so bare slashes in prose survive.
	pathRegex = regexp.MustCompile(`(?:[A-Za-z]:)?(?:[\\/][\w.~\-]+){2,}`)
)

// NewSanitizer builds a sanitizer with the given output bound in characters.
func NewSanitizer(maxLen int, logger *zap.Logger) *Sanitizer {
	return &Sanitizer{maxLen: maxLen, logger: logger.Named("sanitizer")}
}

// Sanitize applies, in order: injection detection (flag only), truncation
// with an explicit marker, redaction of local machine detail, and escaping of
// fence-breaking sequences. A final clamp holds the length guarantee even
// when escaping grows the text.
func (s *Sanitizer) Sanitize(field, text string) Sanitized {
	out := Sanitized{}

	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			out.InjectionFlag = true
			s.logger.Warn("Possible instruction-override phrasing in untrusted input.",
				zap.String("field", field),
				zap.String("pattern", p.String()))
			break
		}
	}

	text, out.TruncatedChars = s.truncate(text)
	text = redact(text)
	text = escapeFences(text)

	// Redaction shrinks, escaping can grow; clamp so the bound always holds.
	if len(text) > s.maxLen {
		text = text[:s.maxLen]
	}
	out.Text = text
	return out
}

// truncate bounds the text, reserving room for the marker inside the bound.
func (s *Sanitizer) truncate(text string) (string, int) {
	if len(text) <= s.maxLen {
		return text, 0
	}
	dropped := len(text) - s.maxLen
	marker := fmt.Sprintf("\n[%d characters truncated]", dropped)
	keep := s.maxLen - len(marker)
	if keep < 0 {
		keep = 0
		marker = marker[:s.maxLen]
	}
	return text[:keep] + marker, dropped
}

// redact replaces local machine detail with fixed placeholder tokens. URLs go
// first so their path portions are not half-eaten by the path rule.
func redact(text string) string {
	text = urlRegex.ReplaceAllStringFunc(text, func(u string) string {
		if strings.Contains(u, "localhost") || strings.Contains(u, "127.0.0.1") {
			return u
		}
		return "[URL]"
	})
	text = emailRegex.ReplaceAllString(text, "[EMAIL]")
	text = ipv4Regex.ReplaceAllStringFunc(text, func(ip string) string {
		if ip == "127.0.0.1" {
			return ip
		}
		return "[IP]"
	})
	text = pathRegex.ReplaceAllString(text, "[PATH]")
	return text
}

// escapeFences neuters code-fence runs so untrusted text cannot close the
// prompt's own fencing.
func escapeFences(text string) string {
	return strings.ReplaceAll(text, "```", "` ` `")
}
