package fetchq

import "time"

// Default configuration values.
const (
	DefaultMaxSimultaneousDownloads          = 15
	DefaultMaxSimultaneousDownloadsPerDomain = 5
	DefaultMaxSimultaneousScrapes            = 10
	DefaultMaxSimultaneousScrapesPerDomain   = 2
	DefaultDownloadAttempts                  = 10
	DefaultDownloadDelay                     = 500 * time.Millisecond
	DefaultRateLimit                         = 50
	DefaultVisibleTasksLimit                 = 10
	DefaultMaxDepth                          = 1
)

// Config enumerates every option the core recognizes.
type Config struct {
	// MaxSimultaneousDownloads is the global download permit count.
	MaxSimultaneousDownloads int
	// MaxSimultaneousDownloadsPerDomain is the per-domain download permit count.
	MaxSimultaneousDownloadsPerDomain int
	// MaxSimultaneousScrapes is the global scrape permit count.
	MaxSimultaneousScrapes int
	// MaxSimultaneousScrapesPerDomain is the per-domain scrape permit count.
	MaxSimultaneousScrapesPerDomain int

	// DownloadAttempts is the attempt ceiling for transient failures.
	DownloadAttempts int
	// DisableDownloadAttemptLimit retries transient failures forever.
	DisableDownloadAttemptLimit bool

	// DownloadDelay is the minimum spacing between permit acquisitions for
	// the same domain. Zero disables spacing.
	DownloadDelay time.Duration
	// RateLimit caps requests per second across all domains. Zero disables it.
	RateLimit float64

	// IgnoreHistory transfers items even if history records them completed.
	IgnoreHistory bool
	// SkipDownloadMarkCompleted records downloads in history without
	// transferring them; they are reported skipped.
	SkipDownloadMarkCompleted bool

	// VisibleTasksLimit bounds the active rows returned in snapshots; the
	// rest are reported as overflow.
	VisibleTasksLimit int

	// MaxDepth bounds how many links deep scraping follows from a seed.
	MaxDepth int

	Skip SkipPolicy
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() Config {
	return Config{
		MaxSimultaneousDownloads:          DefaultMaxSimultaneousDownloads,
		MaxSimultaneousDownloadsPerDomain: DefaultMaxSimultaneousDownloadsPerDomain,
		MaxSimultaneousScrapes:            DefaultMaxSimultaneousScrapes,
		MaxSimultaneousScrapesPerDomain:   DefaultMaxSimultaneousScrapesPerDomain,
		DownloadAttempts:                  DefaultDownloadAttempts,
		DownloadDelay:                     DefaultDownloadDelay,
		RateLimit:                         DefaultRateLimit,
		VisibleTasksLimit:                 DefaultVisibleTasksLimit,
		MaxDepth:                          DefaultMaxDepth,
	}
}

// Validate returns an error if the configuration contains invalid values.
func (c *Config) Validate() error {
	if c.MaxSimultaneousDownloads < 1 {
		return Errorf(EINVALID, "max simultaneous downloads must be at least 1")
	}
	if c.MaxSimultaneousDownloadsPerDomain < 1 {
		return Errorf(EINVALID, "max simultaneous downloads per domain must be at least 1")
	}
	if c.MaxSimultaneousScrapes < 1 {
		return Errorf(EINVALID, "max simultaneous scrapes must be at least 1")
	}
	if c.MaxSimultaneousScrapesPerDomain < 1 {
		return Errorf(EINVALID, "max simultaneous scrapes per domain must be at least 1")
	}
	if !c.DisableDownloadAttemptLimit && c.DownloadAttempts < 1 {
		return Errorf(EINVALID, "download attempts must be at least 1 unless the limit is disabled")
	}
	if c.DownloadDelay < 0 {
		return Errorf(EINVALID, "download delay must not be negative")
	}
	if c.RateLimit < 0 {
		return Errorf(EINVALID, "rate limit must not be negative")
	}
	if c.VisibleTasksLimit < 0 {
		return Errorf(EINVALID, "visible tasks limit must not be negative")
	}
	if c.MaxDepth < 0 {
		return Errorf(EINVALID, "max depth must not be negative")
	}
	return c.Skip.Validate()
}

// AttemptLimit returns the attempt ceiling, or 0 when attempts are unlimited.
func (c *Config) AttemptLimit() int {
	if c.DisableDownloadAttemptLimit {
		return 0
	}
	return c.DownloadAttempts
}
