package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MaxLogEntries is the number of activity log entries a store keeps.
// Appending beyond it discards the oldest entries.
const MaxLogEntries = 100

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Config is the minimal configuration needed to open a repository.
//
// Kind must match a registered backend ("sqlite", "postgres", "mssql").
// DSN is passed through to the backend; validation is backend-specific.
type Config struct {
	Kind string `yaml:"kind" env:"INSPECTOR_STORAGE_KIND"`
	DSN  string `yaml:"dsn" env:"INSPECTOR_STORAGE_DSN"`
}

// Repository persists templates, run history and the activity log.
//
// Each backend implements these semantics in its own idiomatic way (SQLite
// ON CONFLICT upserts, SQL Server UPDATE-then-INSERT, etc).
type Repository interface {
	// Close releases backend resources. Call it once at shutdown.
	Close() error

	// EnsureSchema creates the tables the repository needs if they are missing.
	EnsureSchema(ctx context.Context) error

	// SaveTemplate stores t under its normalized name. Saving an existing
	// name replaces its rules and moves it to the front of ListTemplates.
	SaveTemplate(ctx context.Context, t Template) (Template, error)

	// GetTemplate returns the template saved under name, or ErrNotFound.
	GetTemplate(ctx context.Context, name string) (Template, error)

	// ListTemplates returns all templates, newest first.
	ListTemplates(ctx context.Context) ([]Template, error)

	// DeleteTemplate removes the template saved under name, or returns ErrNotFound.
	DeleteTemplate(ctx context.Context, name string) error

	// SaveRun stores one extraction result.
	SaveRun(ctx context.Context, run RunRecord) (RunRecord, error)

	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// AppendLog records one activity entry and trims the log to MaxLogEntries.
	AppendLog(ctx context.Context, e LogEntry) (LogEntry, error)

	// ListLogs returns the activity log, newest first.
	ListLogs(ctx context.Context) ([]LogEntry, error)

	// ClearLogs removes every activity entry.
	ClearLogs(ctx context.Context) error
}

// Factory opens a repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under kind. Call it from an init() function in
// the backend package.
//
// Registering the same kind twice, an empty kind or a nil factory panics.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a repository using the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
