package applier

import "strings"

var captchaMarkers = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"cf-challenge",
	"verify you are human",
	"are you a robot",
}

var loginMarkers = []string{
	"sign in to apply",
	"log in to apply",
	"login to apply",
	"create an account to apply",
	"sign in or create account",
	"authentication required",
}

var loginPathMarkers = []string{"/login", "/signin", "/sign-in", "/auth/", "/account/login"}

// successMarkers are the positive confirmation signals. Their absence is
// never treated as success.
var successMarkers = []string{
	"thank you for applying",
	"thank you for your application",
	"application received",
	"application submitted",
	"successfully applied",
	"successfully submitted",
	"we have received your application",
	"your application has been sent",
}

var multiStepMarkers = []string{
	"next step",
	"continue to next",
	"step 1 of",
	"step 2 of",
	"save and continue",
}

func detectCaptcha(pageText string) bool {
	return matchAny(strings.ToLower(pageText), captchaMarkers)
}

func detectLoginWall(pageText, url string) bool {
	if matchAny(strings.ToLower(pageText), loginMarkers) {
		return true
	}
	return matchAny(strings.ToLower(url), loginPathMarkers)
}

// findConfirmation returns the first positive confirmation marker present,
// or "" when the outcome is ambiguous.
func findConfirmation(pageText string) string {
	lower := strings.ToLower(pageText)
	for _, m := range successMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

func detectMultiStep(pageText string) bool {
	return matchAny(strings.ToLower(pageText), multiStepMarkers)
}

func matchAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
