package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"inspector/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite has no native timestamp type, so times are stored as fixed-width
// RFC3339 strings in UTC. They sort lexically in time order.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a file path or ":memory:").
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer at a time; this also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, now: time.Now}, nil
}

func (r *Repo) Close() error { return r.db.Close() }

// EnsureSchema creates the repository tables if they do not exist.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

func (r *Repo) SaveTemplate(ctx context.Context, t storage.Template) (storage.Template, error) {
	t, err := storage.PrepareTemplate(t, r.now())
	if err != nil {
		return storage.Template{}, err
	}
	rules, err := storage.EncodeRules(t.Rules)
	if err != nil {
		return storage.Template{}, err
	}

	// An existing name keeps its id; RETURNING reports whichever id won.
	row := r.db.QueryRowContext(ctx, buildUpsertTemplateSQL(),
		t.ID, t.Name, rules, formatSQLiteTime(t.CreatedAt))
	if err := row.Scan(&t.ID); err != nil {
		return storage.Template{}, fmt.Errorf("save template %q: %w", t.Name, err)
	}
	return t, nil
}

func (r *Repo) GetTemplate(ctx context.Context, name string) (storage.Template, error) {
	name = storage.NormalizeName(name)
	q := fmt.Sprintf(`SELECT id, name, rules, created_at FROM %s WHERE name = ?`, sqlIdent(storage.TableTemplates))
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, name))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Template{}, fmt.Errorf("template %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Template{}, fmt.Errorf("get template %q: %w", name, err)
	}
	return t, nil
}

func (r *Repo) ListTemplates(ctx context.Context) ([]storage.Template, error) {
	q := fmt.Sprintf(`SELECT id, name, rules, created_at FROM %s ORDER BY created_at DESC, seq DESC`,
		sqlIdent(storage.TableTemplates))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteTemplate(ctx context.Context, name string) error {
	name = storage.NormalizeName(name)
	q := fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, sqlIdent(storage.TableTemplates))
	res, err := r.db.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("delete template %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("template %q: %w", name, storage.ErrNotFound)
	}
	return nil
}

func (r *Repo) SaveRun(ctx context.Context, run storage.RunRecord) (storage.RunRecord, error) {
	run = storage.PrepareRun(run, r.now())
	data, summary, err := storage.EncodeRunData(run)
	if err != nil {
		return storage.RunRecord{}, err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, source, data, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		sqlIdent(storage.TableRuns))
	if _, err := r.db.ExecContext(ctx, q, run.ID, run.Source, data, summary, formatSQLiteTime(run.CreatedAt)); err != nil {
		return storage.RunRecord{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

func (r *Repo) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	q, args := buildListRunsSQL(limit)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.RunRecord{}
	for rows.Next() {
		var (
			run           storage.RunRecord
			data, summary string
			created       string
		)
		if err := rows.Scan(&run.ID, &run.Source, &data, &summary, &created); err != nil {
			return nil, err
		}
		if run.CreatedAt, err = parseSQLiteTime(created); err != nil {
			return nil, err
		}
		if err := storage.DecodeRunData(&run, data, summary); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// AppendLog inserts e and discards entries beyond storage.MaxLogEntries in
// one transaction.
func (r *Repo) AppendLog(ctx context.Context, e storage.LogEntry) (storage.LogEntry, error) {
	e, err := storage.PrepareLog(e, r.now())
	if err != nil {
		return storage.LogEntry{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.LogEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`INSERT INTO %s (id, kind, message, created_at) VALUES (?, ?, ?, ?)`, sqlIdent(storage.TableLogs))
	if _, err := tx.ExecContext(ctx, q, e.ID, e.Kind, e.Message, formatSQLiteTime(e.Timestamp)); err != nil {
		return storage.LogEntry{}, fmt.Errorf("append log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, buildTrimLogsSQL(), storage.MaxLogEntries); err != nil {
		return storage.LogEntry{}, fmt.Errorf("trim log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.LogEntry{}, err
	}
	return e, nil
}

func (r *Repo) ListLogs(ctx context.Context) ([]storage.LogEntry, error) {
	q := fmt.Sprintf(`SELECT id, kind, message, created_at FROM %s ORDER BY seq DESC`, sqlIdent(storage.TableLogs))
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.LogEntry{}
	for rows.Next() {
		var (
			e       storage.LogEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &created); err != nil {
			return nil, err
		}
		if e.Timestamp, err = parseSQLiteTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ClearLogs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM `+sqlIdent(storage.TableLogs))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s rowScanner) (storage.Template, error) {
	var (
		t       storage.Template
		rules   string
		created string
	)
	if err := s.Scan(&t.ID, &t.Name, &rules, &created); err != nil {
		return storage.Template{}, err
	}
	var err error
	if t.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return storage.Template{}, err
	}
	if t.Rules, err = storage.DecodeRules(rules); err != nil {
		return storage.Template{}, fmt.Errorf("template %q: %w", t.Name, err)
	}
	return t, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// buildCreateSQL generates the CREATE TABLE statement for t.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", t.Name)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ, err := sqliteType(c.Kind)
		if err != nil {
			return "", fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		parts = append(parts, sqlIdent(c.Name)+" "+typ)
	}
	if len(t.Unique) > 0 {
		parts = append(parts, "UNIQUE ("+joinIdentList(t.Unique)+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(t.Name), strings.Join(parts, ", ")), nil
}

func sqliteType(k storage.ColumnKind) (string, error) {
	switch k {
	case storage.KindSeq:
		return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
	case storage.KindID, storage.KindName, storage.KindText, storage.KindTime:
		return "TEXT NOT NULL", nil
	default:
		return "", fmt.Errorf("unsupported column kind %d", k)
	}
}

func joinIdentList(columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = sqlIdent(c)
	}
	return strings.Join(out, ", ")
}

func buildUpsertTemplateSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, name, rules, created_at) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET rules = excluded.rules, created_at = excluded.created_at
RETURNING id`, sqlIdent(storage.TableTemplates))
}

func buildListRunsSQL(limit int) (string, []any) {
	q := fmt.Sprintf(`SELECT id, source, data, summary, created_at FROM %s ORDER BY created_at DESC, seq DESC`,
		sqlIdent(storage.TableRuns))
	if limit > 0 {
		return q + ` LIMIT ?`, []any{limit}
	}
	return q, nil
}

// buildTrimLogsSQL keeps the newest N log rows, N bound as the only argument.
func buildTrimLogsSQL() string {
	t := sqlIdent(storage.TableLogs)
	return fmt.Sprintf(`DELETE FROM %s WHERE seq NOT IN (SELECT seq FROM %s ORDER BY seq DESC LIMIT ?)`, t, t)
}

// timeLayout is RFC3339 with a fixed nine-digit fraction so stored strings
// compare in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseSQLiteTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - the fixed-width layout we write
//   - RFC3339 / RFC3339Nano
//   - Common "SQLite-like" formats used by other tools/libs:
//     "2006-01-02 15:04:05Z07:00"
//     "2006-01-02 15:04:05.999999999Z07:00"
//     "2006-01-02 15:04:05" (interpreted as UTC)
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if layout == "2006-01-02 15:04:05" {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), nil
			}
			continue
		}
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
