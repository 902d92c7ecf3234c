package rod

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/fetchq"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultRecycleAfter is the number of renders after which the browser is
// restarted.
const DefaultRecycleAfter = 75

// Chrome switches applied to every launch. Background throttling would
// stall pages rendered in parallel tabs.
var launchFlags = []flags.Flag{
	"disable-background-timer-throttling",
	"disable-backgrounding-occluded-windows",
	"disable-renderer-backgrounding",
	"disable-dev-shm-usage",
	"disable-hang-monitor",
}

const insecureFlag = flags.Flag("ignore-certificate-errors")

type browserConfig struct {
	recycleAfter int64
	proxy        string
	insecure     bool
}

// BrowserOption configures the browser started by a BrowserManager.
type BrowserOption func(*browserConfig)

// WithRecycleAfter restarts the browser after n rendered pages.
func WithRecycleAfter(n int64) BrowserOption {
	return func(c *browserConfig) {
		c.recycleAfter = n
	}
}

// WithProxy routes browser traffic through the proxy server, given as
// host:port or a URL.
func WithProxy(proxy string) BrowserOption {
	return func(c *browserConfig) {
		c.proxy = proxy
	}
}

// WithInsecure makes the browser accept invalid TLS certificates.
func WithInsecure(insecure bool) BrowserOption {
	return func(c *browserConfig) {
		c.insecure = insecure
	}
}

func newBrowserConfig(opts []BrowserOption) browserConfig {
	cfg := browserConfig{recycleAfter: DefaultRecycleAfter}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewLauncher returns the headless Chrome launcher a BrowserManager would
// start with the same options. The browser is not started.
func NewLauncher(opts ...BrowserOption) *launcher.Launcher {
	return newLauncher(newBrowserConfig(opts))
}

func newLauncher(cfg browserConfig) *launcher.Launcher {
	l := launcher.New().Leakless(true).Headless(true)
	for _, f := range launchFlags {
		l = l.Set(f)
	}
	if cfg.proxy != "" {
		l = l.Proxy(cfg.proxy)
	}
	if cfg.insecure {
		l = l.Set(insecureFlag)
	}
	return l
}

// BrowserManager hands out tabs of one headless browser and restarts the
// browser once it has rendered a configured number of pages.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	cfg     browserConfig
	renders atomic.Int64
	closed  atomic.Bool

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewBrowserManager starts a headless browser.
// Close must be called when the BrowserManager is no longer needed.
func NewBrowserManager(opts ...BrowserOption) (*BrowserManager, error) {
	bm := &BrowserManager{cfg: newBrowserConfig(opts)}

	browser, l, err := launch(bm.cfg)
	if err != nil {
		return nil, err
	}
	bm.browser, bm.launcher = browser, l
	return bm, nil
}

// OpenPage opens a blank tab. The returned release func closes the tab and
// counts it as one render towards the restart threshold.
func (bm *BrowserManager) OpenPage() (*rod.Page, func(), error) {
	if bm.closed.Load() {
		return nil, nil, fetchq.Errorf(fetchq.EINVALID, "browser is closed")
	}

	bm.mu.Lock()
	if bm.cfg.recycleAfter > 0 && bm.renders.Load() >= bm.cfg.recycleAfter {
		bm.restartLocked()
	}
	browser := bm.browser
	bm.mu.Unlock()

	if browser == nil {
		return nil, nil, fetchq.Errorf(fetchq.EINVALID, "browser is closed")
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		_ = page.Close()
		bm.renders.Add(1)
	}
	return page, release, nil
}

// Renders returns the number of pages rendered by the current browser.
func (bm *BrowserManager) Renders() int64 {
	return bm.renders.Load()
}

// LauncherPID returns the process ID of the browser launcher, or 0 once the
// manager is closed.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.launcher == nil {
		return 0
	}
	return bm.launcher.PID()
}

// Close shuts the browser down. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	if !bm.closed.CompareAndSwap(false, true) {
		return nil
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	err := shutdown(bm.browser, bm.launcher)
	bm.browser, bm.launcher = nil, nil
	return err
}

// restartLocked swaps in a fresh browser. The old one is kept if the new
// one fails to start.
func (bm *BrowserManager) restartLocked() {
	browser, l, err := launch(bm.cfg)
	if err != nil {
		return
	}
	_ = shutdown(bm.browser, bm.launcher)
	bm.browser, bm.launcher = browser, l
	bm.renders.Store(0)
}

func launch(cfg browserConfig) (*rod.Browser, *launcher.Launcher, error) {
	l := newLauncher(cfg)
	u, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return browser, l, nil
}

func shutdown(browser *rod.Browser, l *launcher.Launcher) error {
	var err error
	if browser != nil {
		err = browser.Close()
	}
	if l != nil {
		l.Kill()
	}
	return err
}
