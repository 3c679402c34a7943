package sqlite

import (
	"context"
	"fmt"
)

// Diagnostics is a read-only operational health report for a corpus DB.
type Diagnostics struct {
	Integrity         string `json:"integrity"`
	MigrationVersions []int  `json:"migration_versions"`
	Documents         int64  `json:"documents"`
	Units             int64  `json:"units"`
	LineUnits         int64  `json:"line_units"`
	StructureUnits    int64  `json:"structure_units"`
	Runs              int64  `json:"runs"`
	AlignmentLinks    int64  `json:"alignment_links"`
	FTSRows           int64  `json:"fts_rows"`
	MissingLineUnits  int64  `json:"missing_line_units"`
	OrphanFTSRows     int64  `json:"orphan_fts_rows"`
	FTSRowDelta       int64  `json:"fts_row_delta"`
	FTSStale          bool   `json:"fts_stale"`
}

// CollectDiagnostics gathers health signals without mutating domain data.
func (s *Store) CollectDiagnostics(ctx context.Context) (*Diagnostics, error) {
	d := &Diagnostics{}

	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&d.Integrity); err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}

	versions, err := s.AppliedMigrations()
	if err != nil {
		return nil, err
	}
	d.MigrationVersions = versions

	counts := []struct {
		dest *int64
		sql  string
	}{
		{&d.Documents, "SELECT COUNT(*) FROM documents"},
		{&d.Units, "SELECT COUNT(*) FROM units"},
		{&d.LineUnits, "SELECT COUNT(*) FROM units WHERE unit_type = 'line'"},
		{&d.StructureUnits, "SELECT COUNT(*) FROM units WHERE unit_type = 'structure'"},
		{&d.Runs, "SELECT COUNT(*) FROM runs"},
		{&d.AlignmentLinks, "SELECT COUNT(*) FROM alignment_links"},
		{&d.FTSRows, "SELECT COUNT(*) FROM fts_units"},
		{&d.MissingLineUnits, `
			SELECT COUNT(*)
			FROM units u
			LEFT JOIN fts_units f ON f.rowid = u.unit_id
			WHERE u.unit_type = 'line' AND f.rowid IS NULL
		`},
		{&d.OrphanFTSRows, `
			SELECT COUNT(*)
			FROM fts_units f
			LEFT JOIN units u ON u.unit_id = f.rowid
			WHERE u.unit_id IS NULL OR u.unit_type != 'line'
		`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.sql).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("collecting count: %w", err)
		}
	}

	d.FTSRowDelta = d.FTSRows - d.LineUnits
	d.FTSStale = d.MissingLineUnits > 0 || d.OrphanFTSRows > 0 || d.FTSRowDelta != 0

	return d, nil
}
