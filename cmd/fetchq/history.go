package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/fetchq"
)

// Run executes the history count command.
func (c *HistoryCountCmd) Run(deps *Dependencies) error {
	n, err := deps.History.CountCompleted(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}
	fmt.Fprintln(deps.Stdout, n)
	return nil
}

// Run executes the history list command.
func (c *HistoryListCmd) Run(deps *Dependencies) error {
	filter := fetchq.HistoryFilter{Limit: c.Limit, Offset: c.Offset}
	if c.Domain != "" {
		domain, err := fetchq.ParseDomain("https://" + c.Domain)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
			return err
		}
		filter.Domain = &domain
	}

	entries, err := deps.History.FindEntries(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(deps.Stdout, "No completed downloads found.")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", e.CompletedAt.Local().Format(time.DateTime), e.Domain, e.URL)
	}
	return nil
}

// Run executes the history forget command.
func (c *HistoryForgetCmd) Run(deps *Dependencies) error {
	for _, u := range c.URLs {
		if err := deps.History.Forget(deps.Ctx, u); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Forgot %s\n", u)
	}
	return nil
}

// Run executes the history clear command.
func (c *HistoryClearCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm clearing history\n")
		return fetchq.Errorf(fetchq.EINVALID, "use --force to confirm clearing history")
	}

	n, err := deps.History.CountCompleted(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}
	if err := deps.History.Clear(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", fetchq.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Cleared %d entries\n", n)
	return nil
}
