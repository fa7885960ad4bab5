package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"inspector/internal/dom"
	"inspector/internal/export"
	"inspector/internal/extracthtml"
	"inspector/internal/logger"
	"inspector/internal/paginate"
	"inspector/internal/storage"
)

func newPaginateCmd(a *app) *cobra.Command {
	var (
		src            sourceFlags
		out            outputFlags
		control        string
		maxPages       int
		delay          time.Duration
		trigger        string
		includeCurrent bool
	)
	cmd := &cobra.Command{
		Use:   "paginate",
		Short: "Extract page after page by clicking a control or scrolling",
		Long: `Paginate extracts the current page, then repeatedly activates --control (or
scrolls, with --trigger scroll), waits --delay and extracts again. Rows from
every page are concatenated in order. Without --max-pages it runs until the
control disappears. Interrupting keeps the rows gathered so far.`,
		Example: `  inspector paginate --rules rules.json --url https://example.com/list --control "a.next" --max-pages 5
  inspector paginate --template feed --url https://example.com/feed --live --trigger scroll --max-pages 10`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := out.validate(); err != nil {
				return err
			}

			flags := cmd.Flags()
			if !flags.Changed("max-pages") {
				maxPages = a.cfg.Pagination.MaxPages
			}
			if !flags.Changed("delay") {
				delay = a.cfg.Pagination.Delay
			}
			if !flags.Changed("trigger") {
				trigger = a.cfg.Pagination.Trigger
			}
			if paginate.Trigger(trigger) == paginate.TriggerScroll && !src.live {
				return usagef("--trigger scroll requires --live")
			}

			rules, name, err := a.loadRules(ctx, &src)
			if err != nil {
				return err
			}
			session, err := paginate.NewSession(paginate.Config{
				ControlSelector: control,
				MaxPages:        maxPages,
				Delay:           delay,
				Trigger:         paginate.Trigger(trigger),
				Rules:           rules,
				Options:         out.options(),
				IncludeCurrent:  includeCurrent,
			})
			if err != nil {
				return usageError{err: err}
			}

			page, release, err := a.openPage(ctx, &src)
			if err != nil {
				return err
			}
			defer release()

			driver := paginate.New(page,
				paginate.WithLogger(a.log),
				paginate.WithObserver(func(ev paginate.Event) {
					if ev.Kind == paginate.EventProgress {
						a.log.Info("page extracted",
							logger.String("session", ev.SessionID),
							logger.Int("page", ev.Page),
							logger.Int("rows_so_far", ev.RowsSoFar))
					}
				}),
			)
			outcome, err := driver.Run(ctx, session)
			if err != nil {
				return err
			}

			// Rows gathered before a failure are still printed.
			failErr := paginationError(outcome)
			if failErr != nil && len(outcome.Rows) == 0 {
				return failErr
			}

			rows := outcome.Rows
			if out.dedupe {
				rows = export.Dedupe(rows)
			}
			if err := a.writeRows(rows, out.format); err != nil {
				return err
			}
			if failErr != nil {
				return failErr
			}

			run := storage.RunRecord{
				Source:  src.url,
				Rows:    rows,
				Summary: lastSummary(outcome.Summaries),
			}
			msg := fmt.Sprintf("paginate %s: %d pages, %d rows, %s", name, outcome.Pages, len(rows), outcome.Status)
			return a.deliver(ctx, &out, run, storage.LogPagination, msg)
		},
	}
	src.register(cmd)
	out.register(cmd)
	f := cmd.Flags()
	f.StringVar(&control, "control", "", "Selector of the next-page control (click trigger)")
	f.IntVar(&maxPages, "max-pages", 0, "Pages to advance; 0 runs until the control disappears")
	f.DurationVar(&delay, "delay", 0, "Wait after each transition before extracting (default from config)")
	f.StringVar(&trigger, "trigger", string(paginate.TriggerClick), "Transition: click or scroll")
	f.BoolVar(&includeCurrent, "include-current", true, "Extract the starting page before the first transition")
	return cmd
}

// paginationError decides whether a finished session is a failure. A click
// session that ran out of "next" controls after extracting something has
// simply reached the last page.
func paginationError(o paginate.Outcome) error {
	if o.Status != paginate.StatusFailed {
		return nil
	}
	if errors.Is(o.Err, dom.ErrControlNotFound) && len(o.Summaries) > 0 {
		return nil
	}
	return o.Err
}

// lastSummary returns the summary of the highest page number.
func lastSummary(s map[int][]extracthtml.SummaryEntry) []extracthtml.SummaryEntry {
	if len(s) == 0 {
		return nil
	}
	pages := make([]int, 0, len(s))
	for p := range s {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return s[pages[len(pages)-1]]
}
