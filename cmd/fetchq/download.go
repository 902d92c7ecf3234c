package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/crawl"
)

// Run executes the download command.
func (c *DownloadCmd) Run(deps *Dependencies) error {
	seeds, err := c.Seeds()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}
	if len(seeds) == 0 {
		fmt.Fprintln(deps.Stderr, "error: no URLs given. Pass URLs as arguments or use --input-file")
		return fetchq.Errorf(fetchq.EINVALID, "no URLs given")
	}

	orch, err := crawl.NewOrchestrator(c.Config(),
		crawl.WithScraper(deps.Scraper),
		crawl.WithTransferer(deps.Transferer),
		crawl.WithHistory(deps.Store),
		crawl.WithEventHandler(deps.Events),
	)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}

	stopProgress := c.watch(deps.Stderr, orch)
	result, err := orch.Run(deps.Ctx, seeds)
	stopProgress()

	if result != nil {
		printSummary(deps.Stdout, result)
	}
	if err != nil {
		if errors.Is(err, deps.Ctx.Err()) {
			fmt.Fprintln(deps.Stderr, "Interrupted; queued items were cancelled.")
		} else {
			fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		}
		return err
	}

	return nil
}

// Seeds returns the work items for the URL arguments and input file.
// Media URLs become downloads; everything else is scraped.
func (c *DownloadCmd) Seeds() ([]fetchq.WorkItem, error) {
	urls := append([]string(nil), c.URLs...)
	if c.InputFile != "" {
		f, err := os.Open(c.InputFile)
		if err != nil {
			return nil, fetchq.Errorf(fetchq.EINVALID, "cannot read input file: %v", err)
		}
		defer f.Close()

		lines, err := readURLs(f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, lines...)
	}

	items := make([]fetchq.WorkItem, 0, len(urls))
	for _, u := range urls {
		if fetchq.IsMediaURL(u) {
			// Unparseable URLs keep an empty domain and fail on admission.
			domain, _ := fetchq.ParseDomain(u)
			items = append(items, fetchq.DownloadTask{
				URL:         u,
				Destination: c.Destination(u, domain),
				Domain:      domain,
			})
			continue
		}
		items = append(items, fetchq.ScrapeTask{URL: u, Origin: u})
	}
	return items, nil
}

// readURLs reads one URL per line, skipping blank lines and # comments.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// watch prints orchestrator status every c.Progress until the returned
// function is called.
func (c *DownloadCmd) watch(w io.Writer, orch *crawl.Orchestrator) func() {
	if c.Progress <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.Progress)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				printStatus(w, orch.Snapshot())
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

func printStatus(w io.Writer, s crawl.Status) {
	sc, dc := s.Scrapes.Counters, s.Downloads.Counters
	fmt.Fprintf(w, "[%s] pages %d/%d  downloads %d/%d  failed %d  queued %d\n",
		s.State, sc.Terminal(), sc.Total, dc.Terminal(), dc.Total,
		sc.Failed+dc.Failed, s.QueuedScrapes+s.QueuedDownloads)

	for _, task := range s.Downloads.Visible {
		expected := "?"
		if task.Expected > 0 {
			expected = crawl.FormatBytes(task.Expected)
		}
		fmt.Fprintf(w, "  %-40s %10s / %s\n", task.Label, crawl.FormatBytes(task.Advanced), expected)
	}
	if s.Downloads.Overflow > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", s.Downloads.Overflow)
	}
}

func printSummary(w io.Writer, r *crawl.Result) {
	sc, dc := r.Scrapes, r.Downloads
	fmt.Fprintf(w, "Pages:     %d scraped, %d failed (of %d)\n", sc.Completed, sc.Failed, sc.Total)
	fmt.Fprintf(w, "Downloads: %d completed, %d previously completed, %d skipped, %d failed (of %d)\n",
		dc.Completed, dc.PreviouslyCompleted, dc.Skipped, dc.Failed, dc.Total)

	reasons := mergeReasons(sc.FailureReasons, dc.FailureReasons)
	if len(reasons) == 0 {
		return
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "Failures:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, reasons[k])
	}
}

func mergeReasons(maps ...map[string]int) map[string]int {
	merged := make(map[string]int)
	for _, m := range maps {
		for k, v := range m {
			merged[k] += v
		}
	}
	return merged
}
