package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"autoapply/internal/domain/job"
	"autoapply/internal/ledger"
)

type Config struct {
	Run      RunConfig
	Throttle ThrottleConfig
	HTTP     HTTPConfig
	Browser  BrowserConfig
	Paths    PathConfig
	Filters  ledger.Filters
}

type RunConfig struct {
	// Enabled is the configured master switch. It is a tri-state so the
	// resolution order (env override, config, interactive prompt) can tell
	// "explicitly off" apart from "never set".
	Enabled         job.TriState
	DryRun          bool
	FallbackEnabled bool
	MaxApplications int
	MaxRetries      int
}

type ThrottleConfig struct {
	Min time.Duration
	Max time.Duration
}

type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

type BrowserConfig struct {
	PageTimeout   time.Duration
	ScreenshotDir string
}

type PathConfig struct {
	CSV     string
	Profile string
	LogDir  string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var invalid []string
	opt := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return def
	}
	optInt := func(key string, def int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return n
	}
	optFloat := func(key string, def float64) float64 {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return f
	}

	cfg := Config{
		Run: RunConfig{
			Enabled:         job.ParseTriState(os.Getenv("AUTO_APPLY_ENABLED")),
			FallbackEnabled: job.ParseBool(opt("BROWSER_FALLBACK_ENABLED", "yes")),
			MaxApplications: optInt("MAX_APPLICATIONS_PER_RUN", 10),
			MaxRetries:      optInt("MAX_RETRIES", 3),
		},
		Throttle: ThrottleConfig{
			Min: time.Duration(optInt("THROTTLE_MIN_SECONDS", 30)) * time.Second,
			Max: time.Duration(optInt("THROTTLE_MAX_SECONDS", 90)) * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   time.Duration(optInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
			UserAgent: opt("USER_AGENT", ""),
		},
		Browser: BrowserConfig{
			PageTimeout:   time.Duration(optInt("BROWSER_TIMEOUT_SECONDS", 60)) * time.Second,
			ScreenshotDir: opt("SCREENSHOT_DIR", "data/screenshots"),
		},
		Paths: PathConfig{
			CSV:     opt("JOBS_CSV_PATH", "data/jobs.csv"),
			Profile: opt("PROFILE_PATH", "data/profile.json"),
			LogDir:  opt("APPLICATION_LOG_DIR", "data/logs"),
		},
	}

	if v := optFloat("MIN_PRIORITY_SCORE", -1); v >= 0 {
		cfg.Filters.MinPriority = &v
	}
	if v := optInt("MAX_JOB_AGE_DAYS", -1); v >= 0 {
		cfg.Filters.MaxAgeDays = &v
	}
	if v := optFloat("MIN_SKILLS_MATCH", -1); v >= 0 {
		cfg.Filters.MinSkillsMatch = &v
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid numeric environment variables: %s", strings.Join(invalid, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Run.MaxApplications < 1 {
		return fmt.Errorf("MAX_APPLICATIONS_PER_RUN must be positive, got %d", c.Run.MaxApplications)
	}
	if c.Run.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.Run.MaxRetries)
	}
	if c.Throttle.Min < 0 || c.Throttle.Max < 0 {
		return fmt.Errorf("throttle bounds must not be negative")
	}
	if c.Throttle.Max < c.Throttle.Min {
		return fmt.Errorf("THROTTLE_MAX_SECONDS (%s) is below THROTTLE_MIN_SECONDS (%s)", c.Throttle.Max, c.Throttle.Min)
	}
	if c.HTTP.Timeout <= 0 || c.Browser.PageTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if strings.TrimSpace(c.Paths.CSV) == "" {
		return fmt.Errorf("JOBS_CSV_PATH must not be empty")
	}
	if strings.TrimSpace(c.Paths.Profile) == "" {
		return fmt.Errorf("PROFILE_PATH must not be empty")
	}
	return nil
}

// ResolveEnabled decides whether the run proceeds. Resolution order:
// AUTO_APPLY_ASSUME_YES overrides everything, then the configured switch,
// then an interactive prompt when attached to a terminal. Headless with no
// explicit opt-in resolves to disabled.
func ResolveEnabled(cfg Config) bool {
	switch job.ParseTriState(os.Getenv("AUTO_APPLY_ASSUME_YES")) {
	case job.TriYes:
		return true
	case job.TriNo:
		return false
	}
	switch cfg.Run.Enabled {
	case job.TriYes:
		return true
	case job.TriNo:
		return false
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return false
	}
	fmt.Fprint(os.Stderr, "Auto-apply will submit real applications. Proceed? [y/N]: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return job.ParseBool(line)
}
