package applier

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"autoapply/internal/domain/job"
	"autoapply/internal/profile"
)

// structuredBoards are domains with plain HTML application forms that the
// HTTP path can drive directly.
var structuredBoards = []string{
	"remoteok.io",
	"remoteok.com",
	"weworkremotely.com",
	"remotive.io",
	"remotive.com",
	"himalayas.app",
	"dev.to",
	"jobspresso.co",
	"dynamitejobs.com",
	"workingnomads.co",
	"justremote.co",
	"remote.co",
	"dailyremote.com",
}

// gatedSources require an authenticated session to apply. Credential
// management is out of scope, so these are never attempted.
var gatedSources = []string{
	"linkedin.com",
	"naukri.com",
	"indeed.com",
	"glassdoor.com",
}

type capability int

const (
	capUnknown capability = iota
	capStructured
	capGated
)

// Router picks a submission strategy per job. It depends only on the
// Applier contract, never on concrete applier types.
type Router struct {
	api             Applier
	browser         Applier
	fallbackEnabled bool
}

func NewRouter(api, browser Applier, fallbackEnabled bool) *Router {
	return &Router{api: api, browser: browser, fallbackEnabled: fallbackEnabled}
}

// Viable reports whether any strategy exists for the record; when it does
// not, the reason explains the skip and no attempt is made.
func (r *Router) Viable(rec job.Record) (bool, string) {
	if r == nil {
		return false, "no router configured"
	}
	if strings.TrimSpace(rec.URL) == "" {
		return false, "record has no job URL"
	}
	switch classifySource(rec) {
	case capGated:
		return false, fmt.Sprintf("source %s requires an authenticated session", sourceName(rec))
	case capStructured:
		if r.api == nil {
			return false, "no structured applier configured"
		}
		return true, ""
	default:
		if r.fallbackEnabled && r.browser != nil {
			return true, ""
		}
		return false, fmt.Sprintf("no structured applier for source %s and browser fallback disabled", sourceName(rec))
	}
}

// Dispatch drives the chosen applier. An Unsupported signal from the
// structured path reroutes to the browser fallback when enabled; otherwise
// the job is skipped with the applier's reason.
func (r *Router) Dispatch(ctx context.Context, rec job.Record, form profile.FormData) Outcome {
	if r == nil {
		return Outcome{Skipped: true, Detail: "no router configured"}
	}
	switch classifySource(rec) {
	case capGated:
		return Outcome{Skipped: true, Method: job.MethodManual,
			Detail: fmt.Sprintf("source %s requires an authenticated session", sourceName(rec))}

	case capStructured:
		out := r.api.Attempt(ctx, rec, form)
		out.Attempted = true
		if !out.Unsupported {
			return out
		}
		if r.fallbackEnabled && r.browser != nil {
			return attempted(r.browser.Attempt(ctx, rec, form))
		}
		// The fetch already happened, so the skip still counts as an attempt
		// for throttling purposes.
		return Outcome{Skipped: true, Attempted: true, Method: out.Method,
			Detail: fmt.Sprintf("structured submission unavailable (%s) and browser fallback disabled", out.Detail)}

	default:
		if r.fallbackEnabled && r.browser != nil {
			return attempted(r.browser.Attempt(ctx, rec, form))
		}
		return Outcome{Skipped: true,
			Detail: fmt.Sprintf("no structured applier for source %s and browser fallback disabled", sourceName(rec))}
	}
}

func attempted(out Outcome) Outcome {
	out.Attempted = true
	return out
}

func classifySource(rec job.Record) capability {
	domain := hostOf(rec.URL)
	source := strings.ToLower(strings.TrimSpace(rec.Source))
	for _, g := range gatedSources {
		if strings.Contains(domain, g) || source == strings.TrimSuffix(g, ".com") {
			return capGated
		}
	}
	for _, b := range structuredBoards {
		if strings.Contains(domain, b) {
			return capStructured
		}
	}
	return capUnknown
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

func sourceName(rec job.Record) string {
	if s := strings.TrimSpace(rec.Source); s != "" {
		return s
	}
	if h := hostOf(rec.URL); h != "" {
		return h
	}
	return "unknown"
}
