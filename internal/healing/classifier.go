// internal/healing/classifier.go
package healing

import (
	"strings"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/results"
)

// skipKeywords mark failures caused by the environment rather than the test
// code. No code fix can address these, so they are never sent for analysis.
var skipKeywords = []string{
	"network error",
	"infrastructure",
	"connection refused",
	"econnrefused",
	"net::err",
	"port",
	"certificate",
	"ssl",
	"dns",
	"proxy",
}

// typeKeywords classify the failure symptom; first match wins.
var typeKeywords = []struct {
	errorType schemas.ErrorType
	keywords  []string
}{
	{schemas.ErrorTypeTimeout, []string{"timeout", "timed out"}},
	{schemas.ErrorTypeStrictMode, []string{"strict mode", "resolved to"}},
	{schemas.ErrorTypeAssertion, []string{"expect", "assertion"}},
	{schemas.ErrorTypeNotFound, []string{"not found"}},
}

// Classify turns a raw failure record into a typed TestFailure and decides
// whether it is worth healing. The returned skip reason is empty when the
// failure is healable. Pure function: missing or malformed error text simply
// degrades to the unknown type, still healable.
func Classify(raw results.RawFailure) (schemas.TestFailure, string) {
	failure := schemas.TestFailure{
		FilePath:     raw.File,
		Title:        raw.Title,
		ErrorMessage: raw.ErrorMessage,
		ErrorType:    schemas.ErrorTypeUnknown,
	}

	lowered := strings.ToLower(raw.ErrorMessage)
	for _, kw := range skipKeywords {
		if strings.Contains(lowered, kw) {
			return failure, "environment failure ('" + kw + "'); a code fix cannot address it"
		}
	}

	for _, group := range typeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lowered, kw) {
				failure.ErrorType = group.errorType
				return failure, ""
			}
		}
	}
	return failure, ""
}
