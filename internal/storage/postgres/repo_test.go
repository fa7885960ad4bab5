package postgres

import (
	"strings"
	"testing"

	"inspector/internal/storage"
)

func tableSpec(t *testing.T, name string) storage.TableSpec {
	t.Helper()
	for _, spec := range storage.Tables() {
		if spec.Name == name {
			return spec
		}
	}
	t.Fatalf("no table %s", name)
	return storage.TableSpec{}
}

func TestBuildCreateSQL_Templates(t *testing.T) {
	t.Parallel()

	ddl, err := buildCreateSQL(tableSpec(t, storage.TableTemplates))
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "inspector_templates"`,
		`"seq" BIGSERIAL PRIMARY KEY`,
		`"id" VARCHAR(36) NOT NULL`,
		`"name" VARCHAR(255) NOT NULL`,
		`"created_at" TIMESTAMPTZ NOT NULL`,
		`UNIQUE ("name")`,
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("ddl missing %q:\n%s", want, ddl)
		}
	}
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	if _, err := buildCreateSQL(storage.TableSpec{}); err == nil {
		t.Fatalf("expected error for empty table name")
	}
	if _, err := buildCreateSQL(storage.TableSpec{Name: "x"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
	bad := storage.TableSpec{Name: "x", Columns: []storage.ColumnSpec{{Name: "c", Kind: storage.ColumnKind(99)}}}
	if _, err := buildCreateSQL(bad); err == nil {
		t.Fatalf("expected error for unknown column kind")
	}
}

func TestBuildInsertSQL_Placeholders(t *testing.T) {
	t.Parallel()

	got := buildInsertSQL("inspector_runs", []string{"id", "source", "data"})
	want := `INSERT INTO "inspector_runs" ("id", "source", "data") VALUES ($1, $2, $3)`
	if got != want {
		t.Fatalf("want %q\ngot  %q", want, got)
	}
}

func TestBuildUpsertTemplateSQL(t *testing.T) {
	t.Parallel()

	got := buildUpsertTemplateSQL()
	if !strings.Contains(got, `ON CONFLICT ("name") DO UPDATE`) || !strings.HasSuffix(got, `RETURNING "id"`) {
		t.Fatalf("unexpected upsert: %q", got)
	}
}

func TestBuildListRunsSQL(t *testing.T) {
	t.Parallel()

	q, args := buildListRunsSQL(0)
	if strings.Contains(q, "LIMIT") || len(args) != 0 {
		t.Fatalf("unexpected unlimited query: %q %v", q, args)
	}
	q, args = buildListRunsSQL(10)
	if !strings.HasSuffix(q, "LIMIT $1") || len(args) != 1 || args[0] != 10 {
		t.Fatalf("unexpected limited query: %q %v", q, args)
	}
}

func TestBuildTrimLogsSQL(t *testing.T) {
	t.Parallel()

	got := buildTrimLogsSQL()
	want := `DELETE FROM "inspector_activity_log" WHERE seq NOT IN (SELECT seq FROM "inspector_activity_log" ORDER BY seq DESC LIMIT $1)`
	if got != want {
		t.Fatalf("want %q\ngot  %q", want, got)
	}
}
