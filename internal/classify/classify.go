package classify

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Category is the fixed failure taxonomy. Retry policy branches on it, so
// classification must be deterministic and total.
type Category string

const (
	FormNotFound  Category = "Form Not Found"
	LoginRequired Category = "Login Required"
	Captcha       Category = "Captcha"
	RateLimited   Category = "Rate Limited"
	NetworkError  Category = "Network Error"
	InvalidData   Category = "Invalid Data"
	UnknownError  Category = "Unknown Error"
)

// Recoverable reports whether a bounded in-job retry may resolve the failure.
func (c Category) Recoverable() bool {
	return c == RateLimited || c == NetworkError
}

// ManualResolvable reports whether a human could still finish the
// application even though automation cannot.
func (c Category) ManualResolvable() bool {
	return c == Captcha || c == LoginRequired
}

// Signal is a raw failure observation: any subset of the fields may be set.
type Signal struct {
	StatusCode int
	Err        error
	PageText   string
	URL        string
}

var captchaIndicators = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"cf-challenge",
	"verify you are human",
	"are you a robot",
}

var loginIndicators = []string{
	"sign in to apply",
	"log in to apply",
	"login required",
	"create an account to apply",
	"authentication required",
	"session expired",
}

var loginPaths = []string{"/login", "/signin", "/sign-in", "/auth", "/account/login"}

var rateLimitIndicators = []string{
	"too many requests",
	"rate limit",
	"quota exceeded",
	"slow down",
}

var formIndicators = []string{
	"form not found",
	"no application form",
	"no form fields",
	"submit button not found",
	"multi-step form",
	"javascript submission",
}

var invalidIndicators = []string{
	"invalid data",
	"missing required field",
	"job url is required",
	"validation failed",
	"malformed",
}

// Classify maps a raw failure signal to exactly one Category. Any input,
// including the zero Signal, resolves; unmatched input is UnknownError.
func Classify(sig Signal) Category {
	if c, ok := byStatusCode(sig.StatusCode); ok {
		return c
	}
	if c, ok := byError(sig.Err); ok {
		return c
	}

	text := strings.ToLower(sig.PageText)
	if sig.Err != nil {
		text += " " + strings.ToLower(sig.Err.Error())
	}
	urlLower := strings.ToLower(sig.URL)

	switch {
	case containsAny(text, captchaIndicators):
		return Captcha
	case containsAny(text, loginIndicators) || containsAny(urlLower, loginPaths):
		return LoginRequired
	case containsAny(text, rateLimitIndicators):
		return RateLimited
	case containsAny(text, formIndicators):
		return FormNotFound
	case containsAny(text, invalidIndicators):
		return InvalidData
	case containsAny(text, []string{"connection refused", "connection reset", "no such host", "timeout", "timed out", "tls handshake", "network"}):
		return NetworkError
	}
	return UnknownError
}

func byStatusCode(code int) (Category, bool) {
	switch {
	case code == 0:
		return UnknownError, false
	case code == 429:
		return RateLimited, true
	case code == 401 || code == 407:
		return LoginRequired, true
	case code == 403:
		// Forbidden is almost always a bot wall on job boards.
		return Captcha, true
	case code == 404 || code == 410:
		return FormNotFound, true
	case code == 400 || code == 422:
		return InvalidData, true
	case code >= 500:
		return NetworkError, true
	}
	return UnknownError, false
}

func byError(err error) (Category, bool) {
	if err == nil {
		return UnknownError, false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NetworkError, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NetworkError, true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetworkError, true
	}
	return UnknownError, false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
