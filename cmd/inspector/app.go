package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"inspector/internal/config"
	"inspector/internal/logger"
	"inspector/internal/metrics"
	"inspector/internal/metrics/datadog"
	"inspector/internal/storage"
	_ "inspector/internal/storage/all"
)

// app carries what every subcommand needs. Config, logger and metrics are
// set up before a subcommand runs; storage opens on first use.
type app struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	httpClient *http.Client

	// persistent flags
	configPath string
	logLevel   string
	logFormat  string
	dbKind     string
	dbDSN      string
	metricTags string

	cfg     *config.Config
	log     logger.Logger
	repo    storage.Repository
	metrics *datadog.Backend
}

func newApp(stdin io.Reader, stdout, stderr io.Writer, httpClient *http.Client) *app {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &app{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		httpClient: httpClient,
		log:        logger.NewNop(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "inspector",
		Short: "Extract structured rows from web pages with selector rules",
		Long: `Inspector applies named CSS/XPath selector rules to a page and aligns the
matches into rows. It can follow "next" controls or infinite scroll, save rule
sets as templates, keep a run history and an activity log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format (json, console)")
	pf.StringVar(&a.dbKind, "db-kind", "", "Storage backend (sqlite, postgres, mssql)")
	pf.StringVar(&a.dbDSN, "db", "", "Storage DSN (sqlite: file path)")
	pf.StringVar(&a.metricTags, "metrics-tags", "", "Extra Datadog tags, comma separated (env:prod,team:data)")

	root.AddCommand(
		newExtractCmd(a),
		newPaginateCmd(a),
		newSelectCmd(a),
		newTemplateCmd(a),
		newLogsCmd(a),
		newRunsCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return usageError{err: err}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.dbKind != "" {
		cfg.Storage.Kind = a.dbKind
	}
	if a.dbDSN != "" {
		cfg.Storage.DSN = a.dbDSN
	}

	log, err := logger.New(cfg.Log, a.stderr)
	if err != nil {
		return usageError{err: err}
	}
	a.cfg = cfg
	a.log = log

	cfg.Metrics.Tags = append(cfg.Metrics.Tags, datadog.ParseTagsCSV(a.metricTags)...)
	if cfg.Metrics.Backend == "datadog" {
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.Job,
			Tags:       cfg.Metrics.Tags,
			FlushEvery: cfg.Metrics.FlushInterval,
		})
		if err != nil {
			return fmt.Errorf("datadog backend: %w", err)
		}
		metrics.SetBackend(b)
		a.metrics = b
	}
	return nil
}

// repository opens storage on first use and creates its schema.
func (a *app) repository(ctx context.Context) (storage.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	repo, err := storage.New(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	a.repo = repo
	return repo, nil
}

// activity appends to the activity log. Failures are logged, not returned.
func (a *app) activity(ctx context.Context, kind, format string, args ...any) {
	repo, err := a.repository(ctx)
	if err != nil {
		a.log.Warn("activity log unavailable", logger.Error(err))
		return
	}
	msg := fmt.Sprintf(format, args...)
	if _, err := repo.AppendLog(ctx, storage.LogEntry{Kind: kind, Message: msg}); err != nil {
		a.log.Warn("append activity log", logger.String("kind", kind), logger.Error(err))
	}
}

func (a *app) close() error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
		metrics.SetBackend(nil)
		a.metrics = nil
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
		a.repo = nil
	}
	_ = a.log.Sync()
	return errors.Join(errs...)
}

// usageArgs marks positional argument errors as usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}
