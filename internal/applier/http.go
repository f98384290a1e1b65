package applier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"autoapply/internal/classify"
	"autoapply/internal/domain/job"
	"autoapply/internal/profile"
)

// formSelectors is the ladder tried in order when locating an application
// form. The bare "form" catch-all comes last.
var formSelectors = []string{
	`form[action*="apply"]`,
	`form[action*="application"]`,
	`form[id*="apply"]`,
	`form[class*="apply"]`,
	`form`,
}

// HTTPApplier drives structured submissions over plain HTTP: fetch the job
// page, locate the application form, map profile fields onto it and post it
// back. Anything it cannot finish is reported as Unsupported so the router
// can fall back to the browser.
type HTTPApplier struct {
	userAgent string
	timeout   time.Duration
	dryRun    bool
}

func NewHTTPApplier(userAgent string, timeout time.Duration, dryRun bool) *HTTPApplier {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPApplier{userAgent: userAgent, timeout: timeout, dryRun: dryRun}
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

func (a *HTTPApplier) Method() job.Method { return job.MethodAPI }

func (a *HTTPApplier) Attempt(ctx context.Context, rec job.Record, form profile.FormData) Outcome {
	if a == nil {
		return failure(job.MethodAPI, classify.UnknownError, "nil applier")
	}
	if strings.TrimSpace(rec.URL) == "" {
		return failure(job.MethodAPI, classify.InvalidData, "job URL is required")
	}
	if err := ctx.Err(); err != nil {
		return failure(job.MethodAPI, classify.Classify(classify.Signal{Err: err}), err.Error())
	}

	page, out, ok := a.fetch(rec.URL)
	if !ok {
		return out
	}

	if detectCaptcha(page.body) {
		return unsupported(job.MethodAPI, classify.Captcha, "captcha challenge on job page")
	}
	if detectLoginWall(page.body, page.finalURL) {
		return unsupported(job.MethodAPI, classify.LoginRequired, "login wall on job page")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.body))
	if err != nil {
		return failure(job.MethodAPI, classify.UnknownError, fmt.Sprintf("parse job page: %v", err))
	}

	formSel := findForm(doc)
	if formSel == nil {
		return unsupported(job.MethodAPI, classify.FormNotFound, "no application form on page")
	}

	action, _ := formSel.Attr("action")
	if strings.TrimSpace(action) == "" {
		return unsupported(job.MethodAPI, classify.FormNotFound, "form uses javascript submission")
	}
	submitURL, err := resolveURL(page.finalURL, action)
	if err != nil {
		return failure(job.MethodAPI, classify.InvalidData, fmt.Sprintf("form action: %v", err))
	}

	data, mapped := extractFormData(formSel, form, coverFor(form, rec))
	if mapped == 0 {
		return unsupported(job.MethodAPI, classify.FormNotFound, "no recognizable form fields")
	}

	if a.dryRun {
		return Outcome{
			Success: true,
			Method:  job.MethodAPI,
			Detail:  fmt.Sprintf("dry run: would submit %d fields to %s", mapped, submitURL),
		}
	}

	method := strings.ToUpper(strings.TrimSpace(formSel.AttrOr("method", "GET")))
	resp, out, ok := a.submit(submitURL, method, data)
	if !ok {
		return out
	}

	if confirmation := findConfirmation(resp.body); confirmation != "" {
		return Outcome{Success: true, Method: job.MethodAPI, Confirmation: confirmation}
	}
	if detectMultiStep(resp.body) {
		return Outcome{
			Method:    job.MethodAPI,
			Category:  classify.FormNotFound,
			Detail:    "multi-step application flow, only first step completed",
			Ambiguous: true,
		}
	}
	return Outcome{
		Method:    job.MethodAPI,
		Category:  classify.UnknownError,
		Detail:    fmt.Sprintf("form submitted but no confirmation signal (status %d)", resp.status),
		Ambiguous: true,
	}
}

type httpPage struct {
	status   int
	body     string
	finalURL string
}

func (a *HTTPApplier) collector() (*colly.Collector, *httpPage, *error) {
	c := colly.NewCollector(
		colly.UserAgent(a.userAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(a.timeout)

	page := &httpPage{}
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		page.status = r.StatusCode
		page.body = string(r.Body)
		page.finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.status = r.StatusCode
		}
		reqErr = err
	})
	return c, page, &reqErr
}

func (a *HTTPApplier) fetch(target string) (*httpPage, Outcome, bool) {
	c, page, reqErr := a.collector()
	if err := c.Visit(target); err != nil && *reqErr == nil {
		*reqErr = err
	}
	return a.interpret(page, *reqErr, "fetch job page")
}

func (a *HTTPApplier) submit(target, method string, data map[string]string) (*httpPage, Outcome, bool) {
	c, page, reqErr := a.collector()

	var err error
	if method == "POST" {
		err = c.Post(target, data)
	} else {
		q := url.Values{}
		for k, v := range data {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		err = c.Visit(target + sep + q.Encode())
	}
	if err != nil && *reqErr == nil {
		*reqErr = err
	}
	return a.interpret(page, *reqErr, "submit application form")
}

func (a *HTTPApplier) interpret(page *httpPage, reqErr error, step string) (*httpPage, Outcome, bool) {
	if reqErr != nil {
		cat := classify.Classify(classify.Signal{StatusCode: page.status, Err: reqErr, PageText: page.body})
		if cat == classify.Captcha || cat == classify.LoginRequired {
			// Bot walls and auth walls are routing signals, not dead ends.
			return nil, unsupported(job.MethodAPI, cat, fmt.Sprintf("%s: %v", step, reqErr)), false
		}
		return nil, failure(job.MethodAPI, cat, fmt.Sprintf("%s: %v", step, reqErr)), false
	}
	if page.status != 0 && (page.status < 200 || page.status >= 300) {
		cat := classify.Classify(classify.Signal{StatusCode: page.status, PageText: page.body})
		if cat == classify.Captcha || cat == classify.LoginRequired {
			return nil, unsupported(job.MethodAPI, cat, fmt.Sprintf("%s: status %d", step, page.status)), false
		}
		return nil, failure(job.MethodAPI, cat, fmt.Sprintf("%s: status %d", step, page.status)), false
	}
	return page, Outcome{}, true
}

func findForm(doc *goquery.Document) *goquery.Selection {
	for _, sel := range formSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// extractFormData maps the form's inputs to profile values. Hidden fields
// keep their server-provided defaults; only recognizably personal fields
// count toward mapped.
func extractFormData(form *goquery.Selection, fd profile.FormData, cover string) (map[string]string, int) {
	data := map[string]string{}
	mapped := 0

	form.Find("input, textarea, select").Each(func(_ int, el *goquery.Selection) {
		name := strings.TrimSpace(el.AttrOr("name", el.AttrOr("id", "")))
		if name == "" {
			return
		}
		typ := strings.ToLower(el.AttrOr("type", "text"))
		switch typ {
		case "submit", "button", "reset", "file", "image":
			return
		case "hidden":
			if v := el.AttrOr("value", ""); v != "" {
				data[name] = v
			}
			return
		}
		if v, ok := valueForField(name, fd, cover); ok && v != "" {
			data[name] = v
			mapped++
			return
		}
		if v := el.AttrOr("value", ""); v != "" {
			data[name] = v
		}
	})
	return data, mapped
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
