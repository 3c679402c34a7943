package domain

// TextNormUpdate rewrites the normalized text of one unit. text_raw is never
// touched by curation.
type TextNormUpdate struct {
	UnitID   int64
	TextNorm string
}

// AlignExportRow is one alignment dump row (CSV/TSV export).
type AlignExportRow struct {
	LinkID       int64
	ExternalID   *int64
	PivotDocID   int64
	TargetDocID  int64
	PivotUnitID  int64
	TargetUnitID int64
	PivotText    string
	TargetText   string
	Status       *string
}

// AlignExportFilter scopes an alignment dump.
type AlignExportFilter struct {
	PivotDocID  *int64
	TargetDocID *int64
	ExternalID  *int64
}
