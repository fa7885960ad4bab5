package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inspector/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

Templates upsert with ON CONFLICT (name). The activity log is appended and
trimmed inside one transaction so concurrent writers never leave more than
storage.MaxLogEntries rows behind.
*/
type Repo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New creates a new Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool, now: time.Now}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
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
	if err := r.pool.QueryRow(ctx, buildUpsertTemplateSQL(), t.ID, t.Name, rules, t.CreatedAt).Scan(&t.ID); err != nil {
		return storage.Template{}, fmt.Errorf("save template %q: %w", t.Name, err)
	}
	return t, nil
}

func (r *Repo) GetTemplate(ctx context.Context, name string) (storage.Template, error) {
	name = storage.NormalizeName(name)
	q := fmt.Sprintf(`SELECT id, name, rules, created_at FROM %s WHERE name = $1`, ident(storage.TableTemplates))
	t, err := scanTemplate(r.pool.QueryRow(ctx, q, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Template{}, fmt.Errorf("template %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Template{}, fmt.Errorf("get template %q: %w", name, err)
	}
	return t, nil
}

func (r *Repo) ListTemplates(ctx context.Context) ([]storage.Template, error) {
	q := fmt.Sprintf(`SELECT id, name, rules, created_at FROM %s ORDER BY created_at DESC, seq DESC`,
		ident(storage.TableTemplates))
	rows, err := r.pool.Query(ctx, q)
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
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE name = $1`, ident(storage.TableTemplates)), name)
	if err != nil {
		return fmt.Errorf("delete template %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
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
	q := buildInsertSQL(storage.TableRuns, []string{"id", "source", "data", "summary", "created_at"})
	if _, err := r.pool.Exec(ctx, q, run.ID, run.Source, data, summary, run.CreatedAt); err != nil {
		return storage.RunRecord{}, fmt.Errorf("save run: %w", err)
	}
	return run, nil
}

func (r *Repo) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	q, args := buildListRunsSQL(limit)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.RunRecord{}
	for rows.Next() {
		var (
			run           storage.RunRecord
			data, summary string
		)
		if err := rows.Scan(&run.ID, &run.Source, &data, &summary, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.CreatedAt = run.CreatedAt.UTC()
		if err := storage.DecodeRunData(&run, data, summary); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) AppendLog(ctx context.Context, e storage.LogEntry) (storage.LogEntry, error) {
	e, err := storage.PrepareLog(e, r.now())
	if err != nil {
		return storage.LogEntry{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return storage.LogEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := buildInsertSQL(storage.TableLogs, []string{"id", "kind", "message", "created_at"})
	if _, err := tx.Exec(ctx, q, e.ID, e.Kind, e.Message, e.Timestamp); err != nil {
		return storage.LogEntry{}, fmt.Errorf("append log: %w", err)
	}
	if _, err := tx.Exec(ctx, buildTrimLogsSQL(), storage.MaxLogEntries); err != nil {
		return storage.LogEntry{}, fmt.Errorf("trim log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.LogEntry{}, err
	}
	return e, nil
}

func (r *Repo) ListLogs(ctx context.Context) ([]storage.LogEntry, error) {
	q := fmt.Sprintf(`SELECT id, kind, message, created_at FROM %s ORDER BY seq DESC`, ident(storage.TableLogs))
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []storage.LogEntry{}
	for rows.Next() {
		var e storage.LogEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ClearLogs(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM `+ident(storage.TableLogs))
	return err
}

func scanTemplate(row pgx.Row) (storage.Template, error) {
	var (
		t     storage.Template
		rules string
	)
	if err := row.Scan(&t.ID, &t.Name, &rules, &t.CreatedAt); err != nil {
		return storage.Template{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	var err error
	if t.Rules, err = storage.DecodeRules(rules); err != nil {
		return storage.Template{}, fmt.Errorf("template %q: %w", t.Name, err)
	}
	return t, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildCreateSQL builds the CREATE TABLE statement for t.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	if len(t.Unique) > 0 {
		cols := make([]string, len(t.Unique))
		for i, c := range t.Unique {
			cols[i] = ident(c)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", ident(t.Name), strings.Join(defs, ",\n  ")), nil
}

func buildColumnDef(c storage.ColumnSpec) (string, error) {
	var typ string
	switch c.Kind {
	case storage.KindSeq:
		typ = "BIGSERIAL PRIMARY KEY"
	case storage.KindID:
		typ = "VARCHAR(36) NOT NULL"
	case storage.KindName:
		typ = "VARCHAR(255) NOT NULL"
	case storage.KindText:
		typ = "TEXT NOT NULL"
	case storage.KindTime:
		typ = "TIMESTAMPTZ NOT NULL"
	default:
		return "", fmt.Errorf("column %s: unsupported kind %d", c.Name, c.Kind)
	}
	return ident(c.Name) + " " + typ, nil
}

// buildInsertSQL builds a single-row INSERT with $n placeholders.
func buildInsertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = ident(c)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ident(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

func buildUpsertTemplateSQL() string {
	return buildInsertSQL(storage.TableTemplates, []string{"id", "name", "rules", "created_at"}) +
		` ON CONFLICT ("name") DO UPDATE SET "rules" = EXCLUDED."rules", "created_at" = EXCLUDED."created_at" RETURNING "id"`
}

func buildListRunsSQL(limit int) (string, []any) {
	q := fmt.Sprintf(`SELECT id, source, data, summary, created_at FROM %s ORDER BY created_at DESC, seq DESC`,
		ident(storage.TableRuns))
	if limit > 0 {
		return q + ` LIMIT $1`, []any{limit}
	}
	return q, nil
}

// buildTrimLogsSQL keeps the newest $1 log rows.
func buildTrimLogsSQL() string {
	t := ident(storage.TableLogs)
	return fmt.Sprintf(`DELETE FROM %s WHERE seq NOT IN (SELECT seq FROM %s ORDER BY seq DESC LIMIT $1)`, t, t)
}
