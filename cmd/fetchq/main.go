package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/crawl"
	"github.com/fwojciec/fetchq/fs"
	"github.com/fwojciec/fetchq/goquery"
	fqhttp "github.com/fwojciec/fetchq/http"
	"github.com/fwojciec/fetchq/kafka"
	"github.com/fwojciec/fetchq/redis"
	"github.com/fwojciec/fetchq/rod"
	fqslog "github.com/fwojciec/fetchq/slog"
	"github.com/fwojciec/fetchq/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Database path. Set before calling Run().
	DBPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlite.DB

	// History service for end-to-end testing.
	History fetchq.HistoryService

	closers []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close gracefully stops the program. Collaborators are closed in reverse
// order of creation, the database last.
func (m *Main) Close() error {
	var firstErr error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	if m.DB != nil {
		if err := m.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("fetchq"),
		kong.Description("Scrape pages and download the media they link to."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'fetchq --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps.Logger = newLogger(stderr, cli.LogLevel)

	m.DB = sqlite.NewDB(m.DBPath)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintf(stderr, "Hint: Set FETCHQ_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", m.DBPath, err)
	}
	defer m.Close()

	m.History = sqlite.NewHistoryService(m.DB)
	deps.History = m.History

	if strings.HasPrefix(kongCtx.Command(), "download") {
		if err := m.wireDownload(&cli.Download, deps); err != nil {
			return err
		}
	}

	return kongCtx.Run(deps)
}

// wireDownload builds the collaborators used by the download command.
func (m *Main) wireDownload(c *DownloadCmd, deps *Dependencies) error {
	logger := deps.Logger

	client, err := fqhttp.NewClient(fqhttp.ClientConfig{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		Proxy:          c.Proxy,
		AllowInsecure:  c.Insecure,
		UserAgent:      c.UserAgent,
	})
	if err != nil {
		return err
	}

	var fetcher fetchq.PageFetcher
	if c.RenderJS {
		browser, err := rod.NewFetcher(rod.WithBrowserOptions(
			rod.WithProxy(c.Proxy),
			rod.WithInsecure(c.Insecure),
		))
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed for --render-js")
			return fmt.Errorf("failed to start browser: %w", err)
		}
		fetcher = browser
	} else {
		fetcher = fqhttp.NewFetcher(fqhttp.WithClient(client))
	}
	fetcher = fqslog.NewLoggingFetcher(fetcher, logger)
	m.closers = append(m.closers, fetcher)

	pages := goquery.NewRegistry(goquery.NewExtractor())
	for _, spec := range c.SiteSelectors {
		domain, sel, err := ParseSiteSelector(spec)
		if err != nil {
			return err
		}
		configs := append([]goquery.SelectorConfig{sel}, goquery.DefaultSelectors...)
		pages.Register(domain, goquery.NewExtractor(configs...))
	}

	deps.Scraper = fqslog.NewLoggingScraper(&crawl.Scraper{
		Fetcher:     fetcher,
		Pages:       pages,
		Feeds:       fqhttp.NewFeedExtractor(),
		Destination: c.Destination,
		MaxDepth:    c.Depth,
	}, logger)

	var transferOpts []fqhttp.TransferOption
	if c.NoResume {
		transferOpts = append(transferOpts, fqhttp.WithoutResume())
	}
	if c.SkipExisting {
		transferOpts = append(transferOpts, fqhttp.WithSkipExisting())
	}
	deps.Transferer = fqslog.NewLoggingTransferer(fqhttp.NewTransferer(client, transferOpts...), logger)

	var store fetchq.HistoryStore = deps.History
	if c.RedisURL != "" {
		shared, err := redis.Open(c.RedisURL, redis.WithTTL(c.HistoryTTL))
		if err != nil {
			return err
		}
		m.closers = append(m.closers, shared)
		store = shared
	}
	deps.Store = fqslog.NewLoggingHistoryStore(store, logger)

	handlers := []fetchq.EventHandler{fqslog.EventLogger(logger)}
	if c.KafkaBroker != "" {
		publisher := kafka.NewEventPublisher(c.KafkaBroker, c.KafkaTopic,
			kafka.WithErrorHandler(func(err error) {
				logger.Warn("event publish", "err", err)
			}),
		)
		m.closers = append(m.closers, publisher)
		handlers = append(handlers, publisher.Handle)
	}
	deps.Events = fanOut(handlers...)

	return nil
}

// Destination maps a media URL to its path under the download folder.
func (c *DownloadCmd) Destination(rawURL string, domain fetchq.DomainKey) string {
	return fs.DestinationPath(c.Output, domain, rawURL, c.MaxNameLength)
}

func fanOut(handlers ...fetchq.EventHandler) fetchq.EventHandler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return func(e fetchq.Event) {
		for _, h := range handlers {
			h(e)
		}
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func defaultDBPath() string {
	if path := os.Getenv("FETCHQ_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "fetchq.db"
	}
	dir := filepath.Join(home, ".fetchq")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "history.db")
}
