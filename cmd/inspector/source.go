package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inspector/internal/dom"
	"inspector/internal/dom/live"
	"inspector/internal/dom/static"
	"inspector/internal/export"
	"inspector/internal/extracthtml"
	"inspector/internal/logger"
	"inspector/internal/storage"
)

// sourceFlags select the rules and the document.
type sourceFlags struct {
	rulesPath string
	template  string
	url       string
	live      bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "Path to a rule file ({\"name\":..., \"selectors\":[...]})")
	cmd.Flags().StringVar(&f.template, "template", "", "Name of a saved template to use instead of --rules")
	cmd.Flags().StringVar(&f.url, "url", "", "Fetch the page from URL instead of stdin")
	cmd.Flags().BoolVar(&f.live, "live", false, "Load --url in a Chrome tab (runs scripts, supports scroll)")
}

// outputFlags control what happens with extracted rows.
type outputFlags struct {
	format  string
	meta    bool
	outer   bool
	dedupe  bool
	webhook string
	save    bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "json", "Output format: json or csv")
	cmd.Flags().BoolVar(&f.meta, "meta", false, "Add __meta_<field> selector/xpath details to each row")
	cmd.Flags().BoolVar(&f.outer, "outer", false, "Add __outer_<field> outer HTML to each row")
	cmd.Flags().BoolVar(&f.dedupe, "dedupe", false, "Drop rows whose field values repeat an earlier row")
	cmd.Flags().StringVar(&f.webhook, "webhook", "", "POST {data, summary} to this URL (overrides config)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Store the result in run history and the activity log")
}

func (f *outputFlags) validate() error {
	switch f.format {
	case "json", "csv":
		return nil
	default:
		return usagef("--format must be json or csv, got %q", f.format)
	}
}

func (f *outputFlags) options() extracthtml.Options {
	return extracthtml.Options{IncludeMetadata: f.meta, IncludeOuterHTML: f.outer}
}

// loadRules returns the rule set named by --rules or --template and a label
// for logs.
func (a *app) loadRules(ctx context.Context, f *sourceFlags) ([]extracthtml.FieldRule, string, error) {
	switch {
	case f.rulesPath != "" && f.template != "":
		return nil, "", usagef("use either --rules or --template, not both")
	case f.rulesPath != "":
		rf, err := extracthtml.LoadRuleFile(f.rulesPath)
		if err != nil {
			return nil, "", usageError{err: fmt.Errorf("load rules: %w", err)}
		}
		name := rf.Name
		if name == "" {
			name = f.rulesPath
		}
		return rf.Rules, name, nil
	case f.template != "":
		repo, err := a.repository(ctx)
		if err != nil {
			return nil, "", err
		}
		t, err := repo.GetTemplate(ctx, f.template)
		if err != nil {
			return nil, "", err
		}
		return t.Rules, t.Name, nil
	default:
		return nil, "", usagef("missing --rules or --template")
	}
}

// openPage returns the document named by f and a function releasing it.
func (a *app) openPage(ctx context.Context, f *sourceFlags) (dom.Page, func(), error) {
	if f.live {
		if strings.TrimSpace(f.url) == "" {
			return nil, nil, usagef("--live requires --url")
		}
		b, err := live.Launch(ctx, a.cfg.Browser, a.log)
		if err != nil {
			return nil, nil, err
		}
		p, err := b.Open(ctx, f.url)
		if err != nil {
			_ = b.Close()
			return nil, nil, err
		}
		release := func() {
			if err := p.Close(); err != nil {
				a.log.Debug("close tab", logger.Error(err))
			}
			if err := b.Close(); err != nil {
				a.log.Warn("close browser", logger.Error(err))
			}
		}
		return p, release, nil
	}

	loader := static.NewLoader(a.httpClient, a.cfg.HTTP.Timeout).WithUserAgent(a.cfg.HTTP.UserAgent)
	if f.url != "" {
		p, err := static.Open(ctx, loader, f.url)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}

	src, err := loader.Load(ctx, static.Input{Stdin: a.stdin})
	if err != nil {
		return nil, nil, err
	}
	p, err := static.FromHTML(loader, src, "")
	if err != nil {
		return nil, nil, err
	}
	return p, func() {}, nil
}

// writeRows prints rows to stdout in the requested format.
func (a *app) writeRows(rows []extracthtml.Row, format string) error {
	if format == "csv" {
		out := export.ToCSV(rows)
		if out == "" {
			return nil
		}
		_, err := fmt.Fprintln(a.stdout, out)
		return err
	}
	b, err := export.ToJSON(rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(b))
	return err
}

// deliver sends rows to the webhook and saves the run when requested. It
// runs even after an interrupt so partial results are not lost.
func (a *app) deliver(ctx context.Context, f *outputFlags, run storage.RunRecord, activityKind, activity string) error {
	ctx = context.WithoutCancel(ctx)

	url := f.webhook
	if url == "" {
		url = a.cfg.Webhook.URL
	}
	if url != "" {
		wh := export.NewWebhook(url,
			export.WithClient(a.httpClient),
			export.WithRetries(a.cfg.Webhook.Retries),
			export.WithBackoff(a.cfg.Webhook.Backoff),
			export.WithWebhookLogger(a.log),
		)
		if err := wh.Send(ctx, run.Rows, run.Summary); err != nil {
			return err
		}
	}

	if !f.save {
		return nil
	}
	repo, err := a.repository(ctx)
	if err != nil {
		return err
	}
	saved, err := repo.SaveRun(ctx, run)
	if err != nil {
		return err
	}
	a.log.Info("run saved", logger.String("run_id", saved.ID), logger.Int("rows", len(saved.Rows)))
	a.activity(ctx, activityKind, "%s", activity)
	return nil
}
