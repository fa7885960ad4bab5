package storage

// ColumnKind is a portable column type. Each backend maps it to its own SQL.
type ColumnKind int

const (
	// KindSeq is an auto-incrementing surrogate key that orders inserts.
	KindSeq ColumnKind = iota
	// KindID is a short identifier such as a UUID.
	KindID
	// KindName is a short indexed string.
	KindName
	// KindText is unbounded text.
	KindText
	// KindTime is a UTC timestamp.
	KindTime
)

// TableSpec describes one table the repository owns.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	// Unique lists columns that carry a UNIQUE constraint.
	Unique []string
}

type ColumnSpec struct {
	Name string
	Kind ColumnKind
}

// Table names.
const (
	TableTemplates = "inspector_templates"
	TableRuns      = "inspector_runs"
	TableLogs      = "inspector_activity_log"
)

// Tables returns the schema every backend creates in EnsureSchema.
func Tables() []TableSpec {
	return []TableSpec{
		{
			Name: TableTemplates,
			Columns: []ColumnSpec{
				{Name: "seq", Kind: KindSeq},
				{Name: "id", Kind: KindID},
				{Name: "name", Kind: KindName},
				{Name: "rules", Kind: KindText},
				{Name: "created_at", Kind: KindTime},
			},
			Unique: []string{"name"},
		},
		{
			Name: TableRuns,
			Columns: []ColumnSpec{
				{Name: "seq", Kind: KindSeq},
				{Name: "id", Kind: KindID},
				{Name: "source", Kind: KindText},
				{Name: "data", Kind: KindText},
				{Name: "summary", Kind: KindText},
				{Name: "created_at", Kind: KindTime},
			},
			Unique: []string{"id"},
		},
		{
			Name: TableLogs,
			Columns: []ColumnSpec{
				{Name: "seq", Kind: KindSeq},
				{Name: "id", Kind: KindID},
				{Name: "kind", Kind: KindName},
				{Name: "message", Kind: KindText},
				{Name: "created_at", Kind: KindTime},
			},
			Unique: []string{"id"},
		},
	}
}
