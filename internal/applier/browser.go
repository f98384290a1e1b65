package applier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"autoapply/internal/classify"
	"autoapply/internal/domain/job"
	"autoapply/internal/profile"
)

// BrowserApplier drives a headless browser through the application form for
// pages the HTTP path cannot handle. Every attempt gets its own browser
// context so the process is torn down on every exit path.
type BrowserApplier struct {
	userAgent     string
	pageTimeout   time.Duration
	formWait      time.Duration
	confirmWait   time.Duration
	screenshotDir string
	dryRun        bool
}

func NewBrowserApplier(userAgent string, pageTimeout time.Duration, screenshotDir string, dryRun bool) *BrowserApplier {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	if pageTimeout <= 0 {
		pageTimeout = 60 * time.Second
	}
	return &BrowserApplier{
		userAgent:     userAgent,
		pageTimeout:   pageTimeout,
		formWait:      15 * time.Second,
		confirmWait:   10 * time.Second,
		screenshotDir: screenshotDir,
		dryRun:        dryRun,
	}
}

func (a *BrowserApplier) Method() job.Method { return job.MethodBrowser }

func (a *BrowserApplier) Attempt(ctx context.Context, rec job.Record, form profile.FormData) Outcome {
	if a == nil {
		return failure(job.MethodBrowser, classify.UnknownError, "nil applier")
	}
	if strings.TrimSpace(rec.URL) == "" {
		return failure(job.MethodBrowser, classify.InvalidData, "job URL is required")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(a.userAgent),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, runCancel := context.WithTimeout(browserCtx, a.pageTimeout)
	defer runCancel()

	if err := chromedp.Run(runCtx,
		chromedp.Navigate(rec.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return failure(job.MethodBrowser, classify.Classify(classify.Signal{Err: err}), fmt.Sprintf("navigate: %v", err))
	}

	// Dynamic pages render the form after load; poll for it instead of a
	// fixed sleep, bounded by formWait.
	hasForm := a.pollForForm(runCtx)

	pageText, currentURL := a.snapshot(runCtx)
	shot := a.screenshot(runCtx, rec)

	if detectCaptcha(pageText) {
		return Outcome{Method: job.MethodBrowser, Category: classify.Captcha, Detail: "captcha challenge on page", Screenshot: shot}
	}
	if detectLoginWall(pageText, currentURL) {
		return Outcome{Method: job.MethodBrowser, Category: classify.LoginRequired, Detail: "login wall on page", Screenshot: shot}
	}
	if !hasForm {
		return Outcome{Method: job.MethodBrowser, Category: classify.FormNotFound, Detail: "no form appeared within wait bound", Screenshot: shot}
	}

	filled := a.fillFields(runCtx, form, coverFor(form, rec), nil, 0)
	if form.ResumePath != "" {
		a.tryUpload(runCtx, form.ResumePath)
	}
	if filled == 0 {
		return Outcome{Method: job.MethodBrowser, Category: classify.FormNotFound, Detail: "no recognizable form fields", Screenshot: shot}
	}

	if a.dryRun {
		return Outcome{
			Success:    true,
			Method:     job.MethodBrowser,
			Detail:     fmt.Sprintf("dry run: filled %d fields, submission skipped", filled),
			Screenshot: shot,
		}
	}

	if !a.clickSubmit(runCtx) {
		return Outcome{Method: job.MethodBrowser, Category: classify.FormNotFound, Detail: "submit button not found", Screenshot: shot}
	}

	out := a.awaitConfirmation(runCtx, currentURL)
	out.Screenshot = a.screenshot(runCtx, rec)
	if out.Screenshot == "" {
		out.Screenshot = shot
	}
	return out
}

func (a *BrowserApplier) pollForForm(ctx context.Context) bool {
	deadline := time.Now().Add(a.formWait)
	for time.Now().Before(deadline) {
		var present bool
		err := chromedp.Run(ctx, chromedp.Evaluate(
			`!!document.querySelector('form, input:not([type=hidden]), textarea')`, &present))
		if err != nil {
			return false
		}
		if present {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(300 * time.Millisecond):
		}
	}
	return false
}

func (a *BrowserApplier) snapshot(ctx context.Context) (text, url string) {
	_ = chromedp.Run(ctx,
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
		chromedp.Location(&url),
	)
	return text, url
}

func (a *BrowserApplier) screenshot(ctx context.Context, rec job.Record) string {
	if a.screenshotDir == "" {
		return ""
	}
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return ""
	}
	if err := os.MkdirAll(a.screenshotDir, 0o755); err != nil {
		return ""
	}
	name := fmt.Sprintf("application_%s_%d.png", rec.Identity()[:8], time.Now().UnixNano())
	path := filepath.Join(a.screenshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return ""
	}
	return path
}

// fillFields fills recognizable fields in the current document, then
// recurses into nested frames looking for embedded forms. Depth is bounded;
// cross-origin frames simply fail the per-field query and are skipped.
func (a *BrowserApplier) fillFields(ctx context.Context, form profile.FormData, cover string, opts []chromedp.QueryOption, depth int) int {
	type target struct {
		selectors []string
		value     string
	}
	targets := []target{
		{[]string{`input[name*="first"]`, `input[id*="first"]`}, form.FirstName},
		{[]string{`input[name*="last"]`, `input[id*="last"]`}, form.LastName},
		{[]string{`input[name="name"]`, `input[id="name"]`, `input[name*="full"]`}, form.FullName},
		{[]string{`input[type="email"]`, `input[name*="email"]`, `input[id*="email"]`}, form.Email},
		{[]string{`input[type="tel"]`, `input[name*="phone"]`, `input[id*="phone"]`}, form.Phone},
		{[]string{`input[name*="linkedin"]`, `input[id*="linkedin"]`}, form.LinkedIn},
		{[]string{`input[name*="location"]`, `input[name*="city"]`}, form.Location},
		{[]string{`textarea[name*="cover"]`, `textarea[name*="letter"]`, `textarea[name*="message"]`}, cover},
	}

	filled := 0
	for _, t := range targets {
		if strings.TrimSpace(t.value) == "" {
			continue
		}
		for _, sel := range t.selectors {
			if a.trySendKeys(ctx, sel, t.value, opts) {
				filled++
				break
			}
		}
	}

	if depth >= 3 {
		return filled
	}
	var frames []*cdp.Node
	fctx, fcancel := context.WithTimeout(ctx, 2*time.Second)
	err := chromedp.Run(fctx, chromedp.Nodes(`iframe`, &frames, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	fcancel()
	if err != nil {
		return filled
	}
	for _, fr := range frames {
		filled += a.fillFields(ctx, form, cover, []chromedp.QueryOption{chromedp.FromNode(fr)}, depth+1)
	}
	return filled
}

func (a *BrowserApplier) trySendKeys(ctx context.Context, sel, value string, extra []chromedp.QueryOption) bool {
	qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	opts := append([]chromedp.QueryOption{chromedp.ByQuery}, extra...)
	actions := []chromedp.Action{
		chromedp.Click(sel, opts...),
		chromedp.SendKeys(sel, value, opts...),
	}
	return chromedp.Run(qctx, actions...) == nil
}

func (a *BrowserApplier) tryUpload(ctx context.Context, path string) bool {
	qctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return chromedp.Run(qctx, chromedp.SetUploadFiles(`input[type="file"]`, []string{abs}, chromedp.ByQuery)) == nil
}

func (a *BrowserApplier) clickSubmit(ctx context.Context) bool {
	selectors := []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button[id*="apply"]`,
		`button[class*="apply"]`,
	}
	for _, sel := range selectors {
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := chromedp.Run(qctx, chromedp.Click(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return true
		}
	}
	qctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	xpath := `//button[contains(., 'Apply') or contains(., 'Submit')] | //a[contains(., 'Apply')]`
	return chromedp.Run(qctx, chromedp.Click(xpath, chromedp.BySearch)) == nil
}

// awaitConfirmation polls for a positive confirmation signal after submit.
// Absence of an error is not success: without a signal the outcome is
// ambiguous and the manager routes it to a manual check.
func (a *BrowserApplier) awaitConfirmation(ctx context.Context, beforeURL string) Outcome {
	deadline := time.Now().Add(a.confirmWait)
	var lastText, lastURL string
	for time.Now().Before(deadline) {
		lastText, lastURL = a.snapshot(ctx)
		if marker := findConfirmation(lastText); marker != "" {
			return Outcome{Success: true, Method: job.MethodBrowser, Confirmation: marker}
		}
		if lastURL != "" && lastURL != beforeURL {
			var formGone bool
			_ = chromedp.Run(ctx, chromedp.Evaluate(`!document.querySelector('form')`, &formGone))
			if formGone {
				return Outcome{Success: true, Method: job.MethodBrowser, Confirmation: "url change: " + lastURL}
			}
		}
		select {
		case <-ctx.Done():
			return Outcome{
				Method:   job.MethodBrowser,
				Category: classify.Classify(classify.Signal{Err: ctx.Err()}),
				Detail:   "confirmation wait interrupted",
			}
		case <-time.After(500 * time.Millisecond):
		}
	}

	if detectMultiStep(lastText) {
		return Outcome{
			Method:    job.MethodBrowser,
			Category:  classify.FormNotFound,
			Detail:    "multi-step application flow, only first step completed",
			Ambiguous: true,
		}
	}
	return Outcome{
		Method:    job.MethodBrowser,
		Category:  classify.UnknownError,
		Detail:    "form submitted but no confirmation signal observed",
		Ambiguous: true,
	}
}
