package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"autoapply/internal/applier"
	"autoapply/internal/domain/job"
	"autoapply/internal/ledger"
	"autoapply/internal/profile"
	"autoapply/internal/report"
)

// Ledger is the slice of the record store the manager drives.
type Ledger interface {
	SelectEligible(max int, f ledger.Filters) []job.Record
	Update(identity string, patch job.Patch) error
	Persist() error
}

// Dispatcher routes one job to a submission strategy.
type Dispatcher interface {
	Viable(rec job.Record) (bool, string)
	Dispatch(ctx context.Context, rec job.Record, form profile.FormData) applier.Outcome
}

// Reporter records attempt traces and the run summary.
type Reporter interface {
	Attempt(a job.Attempt) error
	Summarize(s report.Summary) error
}

type Config struct {
	MaxApplications int
	MaxRetries      int
	ThrottleMin     time.Duration
	ThrottleMax     time.Duration
	DryRun          bool
	Filters         ledger.Filters
}

// Manager runs one application session: select, dispatch, classify, persist.
// Jobs are processed strictly one at a time; the throttle between jobs is the
// point, not a limitation.
type Manager struct {
	store    Ledger
	router   Dispatcher
	reporter Reporter
	form     profile.FormData
	cfg      Config
	log      *slog.Logger

	rand      *rand.Rand
	retryBase time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func New(store Ledger, router Dispatcher, reporter Reporter, form profile.FormData, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Manager{
		store:     store,
		router:    router,
		reporter:  reporter,
		form:      form,
		cfg:       cfg,
		log:       log,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		retryBase: 2 * time.Second,
		sleep:     sleepCtx,
	}
}

// Run processes up to MaxApplications eligible jobs in ledger order, or
// until the context is cancelled. Cancellation is observed between jobs; the
// job in flight at cancellation time is left untouched in the ledger.
func (m *Manager) Run(ctx context.Context) (report.Summary, error) {
	runID := uuid.NewString()
	summary := report.Summary{RunID: runID, StartedAt: time.Now().UTC(), DryRun: m.cfg.DryRun}

	// The quota bounds processed jobs, not just successes: selection is
	// truncated up front, so a run of failures cannot burn through the whole
	// ledger in one session.
	jobs := m.store.SelectEligible(m.cfg.MaxApplications, m.cfg.Filters)
	m.log.Info("run started",
		slog.String("run_id", runID),
		slog.Int("selected", len(jobs)),
		slog.Int("quota", m.cfg.MaxApplications),
		slog.Bool("dry_run", m.cfg.DryRun),
	)

	var persistErr error
	for i, rec := range jobs {
		if ctx.Err() != nil {
			m.log.Warn("run cancelled", slog.String("run_id", runID), slog.Int("remaining", len(jobs)-i))
			break
		}

		attempted, status, err := m.processOne(ctx, runID, rec)
		if err != nil {
			persistErr = err
		}
		if status.Terminal() {
			summary.Count(status)
		}

		if attempted && i < len(jobs)-1 && ctx.Err() == nil {
			if err := m.throttle(ctx); err != nil {
				break
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()
	if m.reporter != nil {
		if err := m.reporter.Summarize(summary); err != nil {
			m.log.Error("write run summary", slog.String("error", err.Error()))
		}
	}
	m.log.Info("run finished",
		slog.String("run_id", runID),
		slog.Int("processed", summary.Processed),
		slog.Int("applied", summary.Applied),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("needs_manual", summary.NeedsManual),
	)
	return summary, persistErr
}

// processOne drives a single record to a terminal status. The returned bool
// reports whether a network attempt was actually made, which is what the
// throttle keys on.
func (m *Manager) processOne(ctx context.Context, runID string, rec job.Record) (bool, job.Status, error) {
	logger := m.log.With(
		slog.String("run_id", runID),
		slog.String("job_id", rec.Identity()[:8]),
		slog.String("title", rec.Title),
		slog.String("company", rec.Company),
	)

	if ok, reason := m.router.Viable(rec); !ok {
		logger.Info("skipping job", slog.String("reason", reason))
		out := applier.Outcome{Skipped: true, Detail: reason}
		status, err := m.finish(runID, rec, out, time.Now().UTC(), logger)
		return false, status, err
	}

	logger.Info("attempting application", slog.String("url", rec.URL), slog.String("source", rec.Source))
	started := time.Now().UTC()
	out := m.dispatchWithRetry(ctx, rec, logger)

	// An attempt cut short by cancellation leaves the record untouched; a
	// failure written here would really be a verdict on the interrupt, not
	// the job. A completed success is still recorded to prevent a duplicate
	// submission on the next run.
	if ctx.Err() != nil && !out.Success && !out.Skipped {
		logger.Warn("attempt interrupted, record left untouched")
		return true, job.StatusNotApplied, nil
	}
	status, err := m.finish(runID, rec, out, started, logger)
	return out.Attempted, status, err
}

// dispatchWithRetry retries only recoverable failures, with exponential
// backoff, up to the configured attempt bound. Every other outcome returns
// immediately.
func (m *Manager) dispatchWithRetry(ctx context.Context, rec job.Record, logger *slog.Logger) applier.Outcome {
	var out applier.Outcome
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(m.cfg.MaxRetries-1), retry.NewExponential(m.retryBase))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out = m.router.Dispatch(ctx, rec, m.form)
		if out.Success || out.Skipped || out.Ambiguous {
			return nil
		}
		if out.Category.Recoverable() && ctx.Err() == nil {
			logger.Warn("recoverable failure, will retry",
				slog.Int("attempt", attempt),
				slog.String("category", string(out.Category)),
				slog.String("detail", out.Detail),
			)
			return retry.RetryableError(errors.New(out.Detail))
		}
		return nil
	})
	return out
}

// finish maps an outcome to a terminal status, records it in the ledger,
// persists, and emits the attempt trace. A failed ledger write comes back as
// an error so the run can end non-zero: an outcome that was not durably
// recorded risks a duplicate submission on the next run.
func (m *Manager) finish(runID string, rec job.Record, out applier.Outcome, started time.Time, logger *slog.Logger) (job.Status, error) {
	status, patch := resolve(out)

	switch {
	case status == job.StatusApplied:
		logger.Info("application submitted",
			slog.String("method", string(out.Method)),
			slog.String("confirmation", out.Confirmation),
		)
	case status == job.StatusSkipped:
		logger.Info("job skipped", slog.String("reason", out.Detail))
	case status == job.StatusNeedsManualCheck:
		logger.Warn("needs manual check",
			slog.String("category", string(out.Category)),
			slog.String("detail", out.Detail),
		)
	default:
		logger.Error("application failed",
			slog.String("category", string(out.Category)),
			slog.String("detail", out.Detail),
		)
	}

	if !m.cfg.DryRun {
		if err := m.store.Update(rec.Identity(), patch); err != nil {
			logger.Error("ledger update failed", slog.String("error", err.Error()))
			return status, fmt.Errorf("update %s %q: %w", string(status), rec.Title, err)
		}
		if err := m.store.Persist(); err != nil {
			logger.Error("ledger persist failed", slog.String("error", err.Error()))
			m.emitAttempt(runID, rec, out, started)
			return status, fmt.Errorf("persist ledger after %q: %w", rec.Title, err)
		}
	}

	m.emitAttempt(runID, rec, out, started)
	return status, nil
}

func (m *Manager) emitAttempt(runID string, rec job.Record, out applier.Outcome, started time.Time) {
	if m.reporter == nil || out.Skipped {
		return
	}
	a := job.Attempt{
		ID:         uuid.NewString(),
		RunID:      runID,
		JobID:      rec.Identity(),
		Title:      rec.Title,
		Company:    rec.Company,
		URL:        rec.URL,
		Source:     rec.Source,
		Method:     out.Method,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Success:    out.Success,
		Category:   string(out.Category),
		Detail:     out.Detail,
		Screenshot: out.Screenshot,
	}
	if err := m.reporter.Attempt(a); err != nil {
		m.log.Error("write attempt trace", slog.String("error", err.Error()))
	}
}

// resolve maps a dispatch outcome to the record's terminal status and the
// ledger patch that records it.
func resolve(out applier.Outcome) (job.Status, job.Patch) {
	var (
		status job.Status
		detail = out.Detail
	)
	switch {
	case out.Success:
		status = job.StatusApplied
	case out.Skipped:
		status = job.StatusSkipped
	case out.Ambiguous, out.Category.ManualResolvable():
		status = job.StatusNeedsManualCheck
	default:
		status = job.StatusFailed
	}

	patch := job.Patch{Status: &status}
	if status == job.StatusApplied {
		applied := true
		date := time.Now().UTC().Format("2006-01-02")
		method := out.Method
		cleared := ""
		patch.Applied = &applied
		patch.AppliedDate = &date
		patch.Method = &method
		patch.ApplicationError = &cleared
	} else if detail != "" {
		patch.ApplicationError = &detail
		if out.Method != job.MethodNone {
			method := out.Method
			patch.Method = &method
		}
	}
	return status, patch
}

// throttle waits a uniformly random delay inside the configured window so
// consecutive submissions never fire in a burst. Cancellation cuts it short.
func (m *Manager) throttle(ctx context.Context) error {
	min, max := m.cfg.ThrottleMin, m.cfg.ThrottleMax
	if max <= 0 || max < min {
		return nil
	}
	d := min
	if span := max - min; span > 0 {
		d += time.Duration(m.rand.Int63n(int64(span) + 1))
	}
	m.log.Debug("throttling before next job", slog.Duration("delay", d))
	return m.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
