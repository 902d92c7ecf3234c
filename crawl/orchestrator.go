// Package crawl coordinates scraping and downloading. Scrape results feed
// download work through per-domain queues, concurrency ceilings and rate
// limits, with progress aggregated per stage.
package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/fetchq"
	"golang.org/x/sync/errgroup"
)

// reasonDuplicate marks a download whose URL was already admitted in the run.
const reasonDuplicate = "duplicate"

// State is the lifecycle phase of an Orchestrator.
type State int

const (
	StateIdle State = iota
	StateSeeding
	StateRunning
	StateDraining
	StateDone
	StateCancelled
)

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeding:
		return "seeding"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

// Result holds the final counters of a run.
type Result struct {
	Scrapes   fetchq.ProgressCounters
	Downloads fetchq.ProgressCounters
}

// Status is a point-in-time view of a run for observers.
type Status struct {
	State           State
	Scrapes         fetchq.ProgressSnapshot
	Downloads       fetchq.ProgressSnapshot
	QueuedScrapes   int
	QueuedDownloads int
	ActiveScrapes   int
	ActiveDownloads int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScraper sets the collaborator that executes scrape tasks.
func WithScraper(s fetchq.Scraper) Option {
	return func(o *Orchestrator) { o.scrapePool.Scraper = s }
}

// WithTransferer sets the collaborator that executes download tasks.
func WithTransferer(t fetchq.Transferer) Option {
	return func(o *Orchestrator) { o.downloadPool.Transferer = t }
}

// WithHistory sets the store consulted for previously completed downloads.
func WithHistory(h fetchq.HistoryStore) Option {
	return func(o *Orchestrator) { o.downloadPool.History = h }
}

// WithEventHandler sets a handler that receives every item event.
func WithEventHandler(h fetchq.EventHandler) Option {
	return func(o *Orchestrator) { o.onEvent = h }
}

// Orchestrator runs a scrape stage and a download stage to quiescence.
// Scrapes may admit further scrapes and downloads; a run is done once
// both stages have nothing queued and nothing in flight.
type Orchestrator struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	scrapeQueues   *QueueManager
	downloadQueues *QueueManager
	scrapes        *Tracker
	downloads      *Tracker
	scrapePool     *Pool
	downloadPool   *Pool
	onEvent        fetchq.EventHandler
}

// NewOrchestrator creates an Orchestrator for cfg.
// Returns EINVALID if cfg fails validation.
func NewOrchestrator(cfg fetchq.Config, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		scrapes:   NewTracker(cfg.VisibleTasksLimit),
		downloads: NewTracker(cfg.VisibleTasksLimit),
	}
	o.scrapeQueues = NewQueueManager(WithDedupe(), WithAdmitHook(func(fetchq.WorkItem) {
		o.scrapes.AddTotal(1)
	}))
	o.downloadQueues = NewQueueManager(WithDedupe(), WithAdmitHook(func(fetchq.WorkItem) {
		o.downloads.AddTotal(1)
	}))

	global := NewGlobalLimiter(cfg.RateLimit)
	retry := RetryPolicy{MaxAttempts: cfg.AttemptLimit()}
	skip := cfg.Skip

	o.scrapePool = &Pool{
		Queues:  o.scrapeQueues,
		Limiter: NewLimiter(cfg.MaxSimultaneousScrapes, cfg.MaxSimultaneousScrapesPerDomain),
		Tracker: o.scrapes,
		Retry:   retry,
		Workers: cfg.MaxSimultaneousScrapes,
		Delay:   NewDomainLimiter(0, global),
		Admit:   o.Admit,
	}
	o.downloadPool = &Pool{
		Queues:                    o.downloadQueues,
		Limiter:                   NewLimiter(cfg.MaxSimultaneousDownloads, cfg.MaxSimultaneousDownloadsPerDomain),
		Tracker:                   o.downloads,
		Retry:                     retry,
		Workers:                   cfg.MaxSimultaneousDownloads,
		Delay:                     NewDomainLimiter(cfg.DownloadDelay, global),
		IgnoreHistory:             cfg.IgnoreHistory,
		SkipDownloadMarkCompleted: cfg.SkipDownloadMarkCompleted,
		Skip:                      &skip,
	}

	for _, opt := range opts {
		opt(o)
	}
	o.scrapePool.OnEvent = o.onEvent
	o.downloadPool.OnEvent = o.onEvent
	return o, nil
}

// Admit routes an item to the queue for its kind. Pages seen earlier in
// the run are ignored. Repeated downloads are counted and reported as
// skipped. Items whose domain cannot be derived are recorded as failed.
func (o *Orchestrator) Admit(item fetchq.WorkItem) {
	queues, tracker := o.stage(item.Kind())
	admitted, err := queues.Enqueue(item)
	if err != nil {
		reason := fetchq.FailureReason(err)
		tracker.AddFailure(reason)
		o.emit(fetchq.Event{Type: fetchq.EventFailed, Kind: item.Kind(), URL: item.Target(), Attempt: 1, Reason: reason, Error: err, Time: time.Now()})
		return
	}
	if admitted || item.Kind() != fetchq.KindDownload {
		return
	}
	tracker.AddTotal(1)
	tracker.AddSkipped()
	domain, _ := item.DomainKey()
	o.emit(fetchq.Event{Type: fetchq.EventSkipped, Kind: item.Kind(), URL: item.Target(), Domain: domain, Attempt: 1, Reason: reasonDuplicate, Time: time.Now()})
}

func (o *Orchestrator) stage(kind fetchq.WorkKind) (*QueueManager, *Tracker) {
	if kind == fetchq.KindScrape {
		return o.scrapeQueues, o.scrapes
	}
	return o.downloadQueues, o.downloads
}

// Run admits the seeds and processes work until both stages are quiescent
// or ctx is cancelled. On cancellation, items still queued are recorded as
// failed with reason "cancelled" and the context's error is returned along
// with the final counters. A run can only be started once.
func (o *Orchestrator) Run(ctx context.Context, seeds []fetchq.WorkItem) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	switch o.state {
	case StateIdle:
	case StateCancelled:
		o.mu.Unlock()
		return o.result(), context.Canceled
	default:
		o.mu.Unlock()
		return nil, fetchq.Errorf(fetchq.EINVALID, "orchestrator already started")
	}
	o.state = StateSeeding
	o.cancel = cancel
	o.mu.Unlock()

	for _, seed := range seeds {
		o.Admit(seed)
	}
	o.transition(StateSeeding, StateRunning)

	stopCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(stopCtx)
	g.Go(func() error { return o.scrapePool.Run(gctx) })
	g.Go(func() error { return o.downloadPool.Run(gctx) })

	err := o.awaitQuiescence(ctx)
	stop()
	if werr := g.Wait(); err == nil {
		err = werr
	}

	if err != nil {
		o.discard()
		o.setState(StateCancelled)
		return o.result(), err
	}
	o.setState(StateDone)
	return o.result(), nil
}

// awaitQuiescence blocks until both stages have no pending work.
func (o *Orchestrator) awaitQuiescence(ctx context.Context) error {
	for {
		scrapesChanged := o.scrapeQueues.Changed()
		downloadsChanged := o.downloadQueues.Changed()

		// Scrapes are read first: a scrape enqueues its downloads before
		// it stops counting as pending.
		if o.scrapeQueues.Pending() == 0 && o.downloadQueues.Pending() == 0 {
			return nil
		}
		if o.scrapeQueues.TotalDepth() == 0 && o.downloadQueues.TotalDepth() == 0 {
			o.transition(StateRunning, StateDraining)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scrapesChanged:
		case <-downloadsChanged:
		}
	}
}

// discard records every queued item as cancelled.
func (o *Orchestrator) discard() {
	for _, queues := range []*QueueManager{o.scrapeQueues, o.downloadQueues} {
		for _, item := range queues.Drain() {
			_, tracker := o.stage(item.Kind())
			tracker.AddFailure(fetchq.ReasonCancelled)
			domain, _ := item.DomainKey()
			o.emit(fetchq.Event{
				Type:    fetchq.EventFailed,
				Kind:    item.Kind(),
				URL:     item.Target(),
				Domain:  domain,
				Attempt: item.Attempts() + 1,
				Reason:  fetchq.ReasonCancelled,
				Time:    time.Now(),
			})
		}
	}
}

// Cancel stops the run. Workers stop taking new items, in-flight items
// abort and queued items are reported as cancelled. Cancel before Run
// makes Run return immediately.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateDone {
		return
	}
	o.state = StateCancelled
	if o.cancel != nil {
		o.cancel()
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() && o.state != s {
		return
	}
	o.state = s
}

func (o *Orchestrator) transition(from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == from {
		o.state = to
	}
}

// Snapshot returns a consistent view of each stage. Counters and rows
// within a stage are captured atomically.
func (o *Orchestrator) Snapshot() Status {
	return Status{
		State:           o.State(),
		Scrapes:         o.scrapes.Snapshot(),
		Downloads:       o.downloads.Snapshot(),
		QueuedScrapes:   o.scrapeQueues.TotalDepth(),
		QueuedDownloads: o.downloadQueues.TotalDepth(),
		ActiveScrapes:   o.scrapePool.Limiter.Active(),
		ActiveDownloads: o.downloadPool.Limiter.Active(),
	}
}

// QueueDepth returns the number of queued items of kind for the domain.
func (o *Orchestrator) QueueDepth(kind fetchq.WorkKind, domain fetchq.DomainKey) int {
	queues, _ := o.stage(kind)
	return queues.Depth(domain)
}

func (o *Orchestrator) result() *Result {
	return &Result{
		Scrapes:   o.scrapes.Counters(),
		Downloads: o.downloads.Counters(),
	}
}

func (o *Orchestrator) emit(e fetchq.Event) {
	if o.onEvent != nil {
		o.onEvent(e)
	}
}
