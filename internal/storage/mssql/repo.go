package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"inspector/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// SQL Server has no single-statement upsert that is safe without MERGE
// caveats, so SaveTemplate runs UPDATE-then-INSERT in a transaction. The
// UPDATE takes a HOLDLOCK range lock on the name so two writers for the same
// template serialize instead of racing to INSERT.
type Repo struct {
	db  dbConn
	now func() time.Time
}

func init() {
	storage.Register("mssql", New)
}

// New opens a SQL Server repository using the "sqlserver" driver and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)
	raw.SetMaxIdleConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}, now: time.Now}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates missing tables. It is idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range storage.Tables() {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("mssql: create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// SaveTemplate updates the template with the same name or inserts a new one.
func (r *Repo) SaveTemplate(ctx context.Context, t storage.Template) (storage.Template, error) {
	t, err := storage.PrepareTemplate(t, r.now())
	if err != nil {
		return storage.Template{}, err
	}
	rules, err := storage.EncodeRules(t.Rules)
	if err != nil {
		return storage.Template{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Template{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx, buildUpdateTemplateSQL(), rules, t.CreatedAt, t.Name).Scan(&existing)
	switch {
	case err == nil:
		t.ID = existing
	case errors.Is(err, sql.ErrNoRows):
		q := buildInsertSQL(storage.TableTemplates, []string{"id", "name", "rules", "created_at"})
		if _, err := tx.ExecContext(ctx, q, t.ID, t.Name, rules, t.CreatedAt); err != nil {
			return storage.Template{}, fmt.Errorf("mssql: insert template %q: %w", t.Name, err)
		}
	default:
		return storage.Template{}, fmt.Errorf("mssql: update template %q: %w", t.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Template{}, err
	}
	return t, nil
}

func (r *Repo) GetTemplate(ctx context.Context, name string) (storage.Template, error) {
	name = storage.NormalizeName(name)
	q := fmt.Sprintf("SELECT [id], [name], [rules], [created_at] FROM %s WHERE [name] = @p1", mssqlTableIdent(storage.TableTemplates))
	t, err := scanTemplate(r.db.QueryRowContext(ctx, q, name))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Template{}, fmt.Errorf("template %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return storage.Template{}, fmt.Errorf("mssql: get template %q: %w", name, err)
	}
	return t, nil
}

func (r *Repo) ListTemplates(ctx context.Context) ([]storage.Template, error) {
	q := fmt.Sprintf("SELECT [id], [name], [rules], [created_at] FROM %s ORDER BY [created_at] DESC, [seq] DESC",
		mssqlTableIdent(storage.TableTemplates))
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
	q := fmt.Sprintf("DELETE FROM %s WHERE [name] = @p1", mssqlTableIdent(storage.TableTemplates))
	res, err := r.db.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("mssql: delete template %q: %w", name, err)
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
	q := buildInsertSQL(storage.TableRuns, []string{"id", "source", "data", "summary", "created_at"})
	if _, err := r.db.ExecContext(ctx, q, run.ID, run.Source, data, summary, run.CreatedAt); err != nil {
		return storage.RunRecord{}, fmt.Errorf("mssql: save run: %w", err)
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

// AppendLog inserts e and trims the log to storage.MaxLogEntries in one transaction.
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

	q := buildInsertSQL(storage.TableLogs, []string{"id", "kind", "message", "created_at"})
	if _, err := tx.ExecContext(ctx, q, e.ID, e.Kind, e.Message, e.Timestamp); err != nil {
		return storage.LogEntry{}, fmt.Errorf("mssql: append log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, buildTrimLogsSQL(), storage.MaxLogEntries); err != nil {
		return storage.LogEntry{}, fmt.Errorf("mssql: trim log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.LogEntry{}, err
	}
	return e, nil
}

func (r *Repo) ListLogs(ctx context.Context) ([]storage.LogEntry, error) {
	q := fmt.Sprintf("SELECT [id], [kind], [message], [created_at] FROM %s ORDER BY [seq] DESC", mssqlTableIdent(storage.TableLogs))
	rows, err := r.db.QueryContext(ctx, q)
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
	_, err := r.db.ExecContext(ctx, "DELETE FROM "+mssqlTableIdent(storage.TableLogs))
	return err
}

func scanTemplate(s rowScanner) (storage.Template, error) {
	var (
		t     storage.Template
		rules string
	)
	if err := s.Scan(&t.ID, &t.Name, &rules, &t.CreatedAt); err != nil {
		return storage.Template{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	var err error
	if t.Rules, err = storage.DecodeRules(rules); err != nil {
		return storage.Template{}, fmt.Errorf("template %q: %w", t.Name, err)
	}
	return t, nil
}

// buildCreateSQL returns an idempotent CREATE TABLE for t.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", t.Name)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def, err := mssqlColumnDef(c)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	if len(t.Unique) > 0 {
		cols := make([]string, len(t.Unique))
		for i, c := range t.Unique {
			cols[i] = mssqlIdent(c)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	return wrapCreateIfMissing(t.Name, strings.Join(defs, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		tableName,
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func mssqlColumnDef(c storage.ColumnSpec) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("mssql: column name is empty")
	}
	var typ string
	switch c.Kind {
	case storage.KindSeq:
		typ = "BIGINT IDENTITY(1,1) PRIMARY KEY"
	case storage.KindID:
		typ = "NVARCHAR(36) NOT NULL"
	case storage.KindName:
		typ = "NVARCHAR(255) NOT NULL"
	case storage.KindText:
		typ = "NVARCHAR(MAX) NOT NULL"
	case storage.KindTime:
		typ = "DATETIMEOFFSET(7) NOT NULL"
	default:
		return "", fmt.Errorf("mssql: column %s: unsupported kind %d", c.Name, c.Kind)
	}
	return mssqlIdent(c.Name) + " " + typ, nil
}

// buildInsertSQL builds a single-row INSERT with @pN placeholders.
func buildInsertSQL(table string, columns []string) string {
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = mssqlIdent(c)
		ph[i] = fmt.Sprintf("@p%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", mssqlTableIdent(table), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

// buildUpdateTemplateSQL takes rules, created_at and name, and returns the
// updated row's id (no row when the name is new).
func buildUpdateTemplateSQL() string {
	return fmt.Sprintf(
		"UPDATE %s WITH (UPDLOCK, HOLDLOCK) SET [rules] = @p1, [created_at] = @p2 OUTPUT INSERTED.[id] WHERE [name] = @p3",
		mssqlTableIdent(storage.TableTemplates),
	)
}

func buildListRunsSQL(limit int) (string, []any) {
	cols := "[id], [source], [data], [summary], [created_at]"
	order := "ORDER BY [created_at] DESC, [seq] DESC"
	table := mssqlTableIdent(storage.TableRuns)
	if limit > 0 {
		return fmt.Sprintf("SELECT TOP (@p1) %s FROM %s %s", cols, table, order), []any{limit}
	}
	return fmt.Sprintf("SELECT %s FROM %s %s", cols, table, order), nil
}

func buildTrimLogsSQL() string {
	t := mssqlTableIdent(storage.TableLogs)
	return fmt.Sprintf("DELETE FROM %s WHERE [seq] NOT IN (SELECT TOP (@p1) [seq] FROM %s ORDER BY [seq] DESC)", t, t)
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.imports" -> [dbo].[imports]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) rowScanner
	Commit() error
	Rollback() error
}

// rowScanner is a narrow adapter over *sql.Row.Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) rowScanner {
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error { return s.tx.Commit() }

func (s *sqlTx) Rollback() error { return s.tx.Rollback() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sqlTx)(nil)
)
