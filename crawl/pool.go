package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/fetchq"
)

var errNoCollaborator = fetchq.Errorf(fetchq.EINVALID, "no executor configured for work kind")

// Pool runs a fixed number of workers against one pipeline stage. Workers
// take the oldest queued item from any domain the Limiter admits, execute
// it, record the outcome on the Tracker and report Done to the queues.
type Pool struct {
	Queues  *QueueManager
	Limiter *Limiter
	Tracker *Tracker
	Retry   RetryPolicy
	Workers int

	// Delay gates each execution after its permit is held. May be nil.
	Delay fetchq.DomainLimiter

	// Scraper executes ScrapeTask items.
	Scraper fetchq.Scraper
	// Admit routes items discovered by a scrape. It must enqueue them
	// before returning.
	Admit func(fetchq.WorkItem)

	// Transferer executes DownloadTask items.
	Transferer fetchq.Transferer
	// History, if set, is consulted before and updated after transfers.
	History                   fetchq.HistoryStore
	IgnoreHistory             bool
	SkipDownloadMarkCompleted bool
	Skip                      *fetchq.SkipPolicy

	// OnEvent, if set, receives item events.
	OnEvent fetchq.EventHandler
}

// Run starts the workers and blocks until ctx is done and every worker has
// finished its current item. Items in flight see ctx and are expected to
// abort promptly when it is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work(ctx)
		}()
	}
	wg.Wait()
	return nil
}

func (p *Pool) work(ctx context.Context) {
	for {
		item, permit, ok := p.next(ctx)
		if !ok {
			return
		}
		p.process(ctx, item, permit)
	}
}

// next blocks until an item and a permit for its domain are both held.
// Returns false once ctx is done.
func (p *Pool) next(ctx context.Context) (fetchq.WorkItem, *Permit, bool) {
	for {
		queued := p.Queues.Changed()
		released := p.Limiter.Changed()
		if ctx.Err() != nil {
			return nil, nil, false
		}

		var permit *Permit
		item, _, ok := p.Queues.DequeueAny(func(domain fetchq.DomainKey) bool {
			if ctx.Err() != nil {
				return false
			}
			var acquired bool
			permit, acquired = p.Limiter.TryAcquire(domain)
			return acquired
		})
		if ok {
			return item, permit, true
		}

		select {
		case <-ctx.Done():
			return nil, nil, false
		case <-queued:
		case <-released:
		}
	}
}

func (p *Pool) process(ctx context.Context, item fetchq.WorkItem, permit *Permit) {
	// Done runs last so anything the item produced is already queued.
	defer p.Queues.Done()
	defer permit.Release()

	if p.Delay != nil {
		if err := p.Delay.Wait(ctx, permit.Domain()); err != nil {
			p.handleFailure(ctx, item, permit.Domain(), err)
			return
		}
	}

	switch task := item.(type) {
	case fetchq.ScrapeTask:
		p.scrape(ctx, task, permit.Domain())
	case fetchq.DownloadTask:
		p.download(ctx, task, permit.Domain())
	default:
		p.fail(item, permit.Domain(), fetchq.ReasonUnknown, nil)
	}
}

func (p *Pool) scrape(ctx context.Context, task fetchq.ScrapeTask, domain fetchq.DomainKey) {
	h := p.Tracker.StartTask(Label(task.URL), 0)
	defer p.Tracker.FinishTask(h)
	p.emit(fetchq.EventStarted, task, domain, "", nil)

	if p.Scraper == nil {
		p.fail(task, domain, fetchq.FailureReason(errNoCollaborator), errNoCollaborator)
		return
	}
	children, err := p.Scraper.Scrape(ctx, task)
	if err != nil {
		p.handleFailure(ctx, task, domain, err)
		return
	}
	if p.Admit != nil {
		for _, child := range children {
			p.Admit(child)
		}
	}
	p.Tracker.AddCompleted()
	p.emit(fetchq.EventCompleted, task, domain, "", nil)
}

func (p *Pool) download(ctx context.Context, task fetchq.DownloadTask, domain fetchq.DomainKey) {
	if p.History != nil && !p.IgnoreHistory {
		done, err := p.History.IsCompleted(ctx, task.Identity())
		if err == nil && done {
			p.Tracker.AddPreviouslyCompleted(false)
			p.emit(fetchq.EventPreviouslyCompleted, task, domain, "", nil)
			return
		}
		// A failed lookup is treated as not completed.
	}

	if skip, reason := p.Skip.ShouldSkip(task); skip {
		p.Tracker.AddSkipped()
		p.emit(fetchq.EventSkipped, task, domain, reason, nil)
		return
	}

	if p.SkipDownloadMarkCompleted {
		if p.History != nil {
			_ = p.History.MarkCompleted(context.WithoutCancel(ctx), task)
		}
		p.Tracker.AddSkipped()
		p.emit(fetchq.EventSkipped, task, domain, "marked completed", nil)
		return
	}

	h := p.Tracker.StartTask(Label(task.URL), task.ExpectedSize)
	defer p.Tracker.FinishTask(h)
	p.emit(fetchq.EventStarted, task, domain, "", nil)

	if p.Transferer == nil {
		p.fail(task, domain, fetchq.FailureReason(errNoCollaborator), errNoCollaborator)
		return
	}
	if err := p.Transferer.Download(ctx, task, taskProgress{tracker: p.Tracker, handle: h}); err != nil {
		p.handleFailure(ctx, task, domain, err)
		return
	}

	if p.History != nil {
		// The file is on disk; record it even if the run is being cancelled.
		if err := p.History.MarkCompleted(context.WithoutCancel(ctx), task); err != nil {
			p.emit(fetchq.EventCompleted, task, domain, "history not updated", err)
			p.Tracker.AddCompleted()
			return
		}
	}
	p.Tracker.AddCompleted()
	p.emit(fetchq.EventCompleted, task, domain, "", nil)
}

// handleFailure requeues a retry copy of item or records its failure.
func (p *Pool) handleFailure(ctx context.Context, item fetchq.WorkItem, domain fetchq.DomainKey, err error) {
	if ctx.Err() != nil {
		p.fail(item, domain, fetchq.ReasonCancelled, err)
		return
	}

	retry, reason := p.Retry.Decide(item, err)
	if !retry {
		p.fail(item, domain, reason, err)
		return
	}
	if qerr := p.Queues.Requeue(item.Retry()); qerr != nil {
		p.fail(item, domain, fetchq.FailureReason(qerr), qerr)
		return
	}
	p.emit(fetchq.EventRetrying, item, domain, fetchq.FailureReason(err), err)
}

func (p *Pool) fail(item fetchq.WorkItem, domain fetchq.DomainKey, reason string, err error) {
	p.Tracker.AddFailure(reason)
	p.emit(fetchq.EventFailed, item, domain, reason, err)
}

func (p *Pool) emit(typ fetchq.EventType, item fetchq.WorkItem, domain fetchq.DomainKey, reason string, err error) {
	if p.OnEvent == nil {
		return
	}
	p.OnEvent(fetchq.Event{
		Type:    typ,
		Kind:    item.Kind(),
		URL:     item.Target(),
		Domain:  domain,
		Attempt: item.Attempts() + 1,
		Reason:  reason,
		Error:   err,
		Time:    time.Now(),
	})
}
