package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/goquery"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
	History    fetchq.HistoryService
	Store      fetchq.HistoryStore
	Scraper    fetchq.Scraper
	Transferer fetchq.Transferer
	Events     fetchq.EventHandler
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	LogLevel string `name:"log-level" default:"warn" enum:"debug,info,warn,error" env:"FETCHQ_LOG_LEVEL" help:"Log level for diagnostics on stderr"`

	Download DownloadCmd `cmd:"" help:"Scrape pages and download the media they link to"`
	History  HistoryCmd  `cmd:"" help:"Inspect and edit the download history"`
}

// DownloadCmd is the "download" subcommand.
type DownloadCmd struct {
	URLs      []string `arg:"" optional:"" help:"Page or media URLs"`
	InputFile string   `short:"i" name:"input-file" type:"path" help:"Read URLs from a file, one per line"`
	Output    string   `short:"o" default:"." env:"FETCHQ_DOWNLOAD_FOLDER" type:"path" help:"Download folder"`

	MaxDownloads          int `default:"15" env:"FETCHQ_MAX_DOWNLOADS" help:"Concurrent downloads"`
	MaxDownloadsPerDomain int `default:"5" env:"FETCHQ_MAX_DOWNLOADS_PER_DOMAIN" help:"Concurrent downloads per domain"`
	MaxScrapes            int `default:"10" env:"FETCHQ_MAX_SCRAPES" help:"Concurrent page scrapes"`
	MaxScrapesPerDomain   int `default:"2" env:"FETCHQ_MAX_SCRAPES_PER_DOMAIN" help:"Concurrent page scrapes per domain"`

	Attempts       int           `default:"10" env:"FETCHQ_ATTEMPTS" help:"Attempts per item before giving up"`
	NoAttemptLimit bool          `help:"Retry transient failures forever"`
	Delay          time.Duration `default:"500ms" env:"FETCHQ_DELAY" help:"Minimum spacing between downloads from one domain"`
	RateLimit      float64       `default:"50" env:"FETCHQ_RATE_LIMIT" help:"Requests per second across all domains (0 disables)"`
	Depth          int           `short:"d" default:"1" help:"How many links deep to follow from each page"`
	Visible        int           `default:"10" help:"Active downloads shown in progress output (0 shows all)"`
	Progress       time.Duration `default:"1s" help:"Progress refresh interval (0 disables)"`

	IgnoreHistory bool `help:"Download items even if history records them as completed"`
	MarkCompleted bool `help:"Record items in history without downloading them"`
	NoResume      bool `help:"Restart partial downloads instead of resuming them"`
	SkipExisting  bool `help:"Skip downloads whose destination file already exists"`

	SkipHosts     []string `name:"skip-host" help:"Skip downloads from this host (repeatable)"`
	ExcludeImages bool     `help:"Skip image downloads"`
	ExcludeVideos bool     `help:"Skip video downloads"`
	ExcludeAudio  bool     `help:"Skip audio downloads"`
	ExcludeOther  bool     `help:"Skip downloads that are not images, videos or audio"`
	MinImageSize  int64    `help:"Skip images smaller than this many bytes"`
	MaxImageSize  int64    `help:"Skip images larger than this many bytes"`
	MinVideoSize  int64    `help:"Skip videos smaller than this many bytes"`
	MaxVideoSize  int64    `help:"Skip videos larger than this many bytes"`
	MinOtherSize  int64    `help:"Skip other files smaller than this many bytes"`
	MaxOtherSize  int64    `help:"Skip other files larger than this many bytes"`

	ConnectTimeout time.Duration `default:"15s" env:"FETCHQ_CONNECT_TIMEOUT" help:"Connection timeout"`
	ReadTimeout    time.Duration `default:"300s" env:"FETCHQ_READ_TIMEOUT" help:"Timeout waiting for response headers"`
	UserAgent      string        `env:"FETCHQ_USER_AGENT" help:"User agent sent with requests"`
	Proxy          string        `env:"FETCHQ_PROXY" help:"Proxy URL"`
	Insecure       bool          `help:"Accept invalid TLS certificates"`
	MaxNameLength  int           `default:"95" help:"Maximum file name length"`

	SiteSelectors []string `name:"site-selector" placeholder:"DOMAIN=SELECTOR@ATTR" help:"Extra CSS selector for a domain's media (repeatable)"`
	RenderJS      bool     `name:"render-js" help:"Render pages in headless Chrome before extracting links"`

	RedisURL    string        `name:"redis-url" env:"FETCHQ_REDIS_URL" help:"Share download history through Redis instead of the local database"`
	HistoryTTL  time.Duration `name:"history-ttl" help:"Expire Redis history entries after this long (0 keeps them)"`
	KafkaBroker string        `name:"kafka-broker" env:"FETCHQ_KAFKA_BROKER" help:"Publish item events to this Kafka broker"`
	KafkaTopic  string        `name:"kafka-topic" default:"fetchq-events" env:"FETCHQ_KAFKA_TOPIC" help:"Kafka topic for item events"`
}

// Config maps the command flags onto the run configuration.
func (c *DownloadCmd) Config() fetchq.Config {
	return fetchq.Config{
		MaxSimultaneousDownloads:          c.MaxDownloads,
		MaxSimultaneousDownloadsPerDomain: c.MaxDownloadsPerDomain,
		MaxSimultaneousScrapes:            c.MaxScrapes,
		MaxSimultaneousScrapesPerDomain:   c.MaxScrapesPerDomain,
		DownloadAttempts:                  c.Attempts,
		DisableDownloadAttemptLimit:       c.NoAttemptLimit,
		DownloadDelay:                     c.Delay,
		RateLimit:                         c.RateLimit,
		IgnoreHistory:                     c.IgnoreHistory,
		SkipDownloadMarkCompleted:         c.MarkCompleted,
		VisibleTasksLimit:                 c.Visible,
		MaxDepth:                          c.Depth,
		Skip: fetchq.SkipPolicy{
			SkipHosts:     c.SkipHosts,
			ExcludeImages: c.ExcludeImages,
			ExcludeVideos: c.ExcludeVideos,
			ExcludeAudio:  c.ExcludeAudio,
			ExcludeOther:  c.ExcludeOther,
			ImageSize:     fetchq.SizeLimit{Min: c.MinImageSize, Max: c.MaxImageSize},
			VideoSize:     fetchq.SizeLimit{Min: c.MinVideoSize, Max: c.MaxVideoSize},
			OtherSize:     fetchq.SizeLimit{Min: c.MinOtherSize, Max: c.MaxOtherSize},
		},
	}
}

// ParseSiteSelector parses DOMAIN=SELECTOR@ATTR. The attribute defaults to
// src when omitted.
func ParseSiteSelector(s string) (fetchq.DomainKey, goquery.SelectorConfig, error) {
	host, rest, ok := strings.Cut(s, "=")
	host = strings.TrimSpace(host)
	if !ok || host == "" || strings.TrimSpace(rest) == "" {
		return "", goquery.SelectorConfig{}, fetchq.Errorf(fetchq.EINVALID, "site selector %q must look like DOMAIN=SELECTOR@ATTR", s)
	}

	domain, err := fetchq.ParseDomain("https://" + host)
	if err != nil {
		return "", goquery.SelectorConfig{}, err
	}

	selector, attr := rest, "src"
	if idx := strings.LastIndex(rest, "@"); idx != -1 {
		selector, attr = rest[:idx], rest[idx+1:]
	}
	selector = strings.TrimSpace(selector)
	attr = strings.TrimSpace(attr)
	if selector == "" || attr == "" {
		return "", goquery.SelectorConfig{}, fetchq.Errorf(fetchq.EINVALID, "site selector %q must look like DOMAIN=SELECTOR@ATTR", s)
	}

	return domain, goquery.SelectorConfig{Selector: selector, Attr: attr, Kind: fetchq.LinkAsset}, nil
}

// HistoryCmd groups the history subcommands.
type HistoryCmd struct {
	Count  HistoryCountCmd  `cmd:"" help:"Print the number of completed downloads"`
	List   HistoryListCmd   `cmd:"" help:"List completed downloads, newest first"`
	Forget HistoryForgetCmd `cmd:"" help:"Forget a completed download so it is fetched again"`
	Clear  HistoryClearCmd  `cmd:"" help:"Forget all completed downloads"`
}

// HistoryCountCmd is the "history count" subcommand.
type HistoryCountCmd struct{}

// HistoryListCmd is the "history list" subcommand.
type HistoryListCmd struct {
	Domain string `help:"Only list downloads from this domain"`
	Limit  int    `short:"n" default:"50" help:"Maximum entries to list (0 lists all)"`
	Offset int    `help:"Entries to skip"`
}

// HistoryForgetCmd is the "history forget" subcommand.
type HistoryForgetCmd struct {
	URLs []string `arg:"" help:"Downloaded URLs to forget"`
}

// HistoryClearCmd is the "history clear" subcommand.
type HistoryClearCmd struct {
	Force bool `help:"Confirm clearing"`
}
