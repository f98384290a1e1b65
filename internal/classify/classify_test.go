package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want Category
	}{
		{429, RateLimited},
		{401, LoginRequired},
		{403, Captcha},
		{404, FormNotFound},
		{410, FormNotFound},
		{400, InvalidData},
		{422, InvalidData},
		{500, NetworkError},
		{503, NetworkError},
	}
	for _, c := range cases {
		got := Classify(Signal{StatusCode: c.code})
		if got != c.want {
			t.Fatalf("status %d: expected %s, got %s", c.code, c.want, got)
		}
	}
}

func TestClassifyPageText(t *testing.T) {
	cases := []struct {
		text string
		want Category
	}{
		{"Please complete the reCAPTCHA to continue", Captcha},
		{"Verify you are human", Captcha},
		{"Sign in to apply for this position", LoginRequired},
		{"Too many requests, slow down", RateLimited},
		{"submit button not found", FormNotFound},
		{"missing required field: email", InvalidData},
		{"connection refused", NetworkError},
		{"something inexplicable happened", UnknownError},
	}
	for _, c := range cases {
		got := Classify(Signal{PageText: c.text})
		if got != c.want {
			t.Fatalf("text %q: expected %s, got %s", c.text, c.want, got)
		}
	}
}

func TestClassifyLoginURL(t *testing.T) {
	got := Classify(Signal{URL: "https://example.com/login?next=%2Fjobs%2F1"})
	if got != LoginRequired {
		t.Fatalf("expected LoginRequired, got %s", got)
	}
}

func TestClassifyErrors(t *testing.T) {
	if got := Classify(Signal{Err: context.DeadlineExceeded}); got != NetworkError {
		t.Fatalf("deadline: expected NetworkError, got %s", got)
	}
	var netErr net.Error = &net.OpError{Op: "dial", Err: errors.New("refused")}
	if got := Classify(Signal{Err: netErr}); got != NetworkError {
		t.Fatalf("op error: expected NetworkError, got %s", got)
	}
	if got := Classify(Signal{Err: fmt.Errorf("request failed: %w", &net.DNSError{Name: "x", Err: "no such host"})}); got != NetworkError {
		t.Fatalf("dns: expected NetworkError, got %s", got)
	}
}

func TestClassifyTotality(t *testing.T) {
	known := map[Category]bool{
		FormNotFound:  true,
		LoginRequired: true,
		Captcha:       true,
		RateLimited:   true,
		NetworkError:  true,
		InvalidData:   true,
		UnknownError:  true,
	}
	signals := []Signal{
		{},
		{StatusCode: -1},
		{StatusCode: 999},
		{Err: errors.New("")},
		{PageText: "\x00\xff garbage \t\n"},
		{StatusCode: 200, PageText: "all good actually"},
		{URL: "not a url at all"},
		{Err: errors.New("weird"), PageText: "weird", URL: "weird", StatusCode: 302},
	}
	for i, sig := range signals {
		got := Classify(sig)
		if !known[got] {
			t.Fatalf("signal %d: %q is not one of the seven categories", i, got)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	sig := Signal{StatusCode: 429, PageText: "rate limit and captcha both mentioned"}
	first := Classify(sig)
	for i := 0; i < 50; i++ {
		if got := Classify(sig); got != first {
			t.Fatalf("classification changed between calls: %s vs %s", first, got)
		}
	}
	if first != RateLimited {
		t.Fatalf("status code should win over page text, got %s", first)
	}
}

func TestRecoverable(t *testing.T) {
	if !RateLimited.Recoverable() || !NetworkError.Recoverable() {
		t.Fatalf("RateLimited and NetworkError must be recoverable")
	}
	for _, c := range []Category{FormNotFound, LoginRequired, Captcha, InvalidData, UnknownError} {
		if c.Recoverable() {
			t.Fatalf("%s must not be recoverable", c)
		}
	}
	if !Captcha.ManualResolvable() || !LoginRequired.ManualResolvable() {
		t.Fatalf("Captcha and LoginRequired must be manual-resolvable")
	}
	if RateLimited.ManualResolvable() {
		t.Fatalf("RateLimited must not be manual-resolvable")
	}
}
