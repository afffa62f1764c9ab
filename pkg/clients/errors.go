package clients

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// Provider names used in error messages shown to callers.
const (
	ProviderFirecrawl = "Firecrawl"
	ProviderBrave     = "Brave Search"
	ProviderGemini    = "Gemini"
)

// ProviderError is returned by outbound clients when a provider call fails.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s request failed with status %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request failed with status %d", e.Provider, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a failure for the caller-facing message.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindCredentials
	KindQuota
)

// Classify reports what kind of failure err is and, when known, which
// provider caused it. Status codes come from ProviderError or the Gemini SDK
// error types; errors without one are matched on their message.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return KindOther, ""
	}

	provider := ""
	code := 0
	var pe *ProviderError
	if errors.As(err, &pe) {
		provider = pe.Provider
		code = pe.StatusCode
	}
	if code == 0 {
		code = sdkStatusCode(err)
	}
	if kind := classifyStatus(code); kind != KindOther {
		return kind, provider
	}
	return classifyMessage(err.Error()), provider
}

// sdkStatusCode digs the HTTP status out of errors returned by the genai and
// Google API client libraries.
func sdkStatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var httpErr interface{ HTTPCode() int }
	if errors.As(err, &httpErr) && httpErr.HTTPCode() > 0 {
		return httpErr.HTTPCode()
	}
	return 0
}

func classifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindCredentials
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return KindQuota
	}
	return KindOther
}

// statusInMessage finds a status code that a message labels as one, as in
// "googleapi: Error 429:" or "status code: 401". Bare numbers do not count.
var statusInMessage = regexp.MustCompile(`(?i)\b(?:error|status|code|http)(?: code)?\W{0,3}(\d{3})\b`)

func classifyMessage(msg string) ErrorKind {
	for _, m := range statusInMessage.FindAllStringSubmatch(msg, -1) {
		code, _ := strconv.Atoi(m[1])
		if kind := classifyStatus(code); kind != KindOther {
			return kind
		}
	}

	msg = strings.ToLower(msg)
	for _, needle := range []string{"quota", "rate limit", "rate-limit", "resource_exhausted", "resourceexhausted", "too many requests"} {
		if strings.Contains(msg, needle) {
			return KindQuota
		}
	}
	for _, needle := range []string{"api key", "api_key", "apikey", "unauthorized", "unauthenticated", "permission_denied", "permissiondenied", "invalid token"} {
		if strings.Contains(msg, needle) {
			return KindCredentials
		}
	}
	return KindOther
}
