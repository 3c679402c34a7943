package domain

import "time"

// AlignStrategy selects how pivot and target units are paired.
type AlignStrategy string

// Supported alignment strategies.
const (
	AlignExternalID             AlignStrategy = "external_id"
	AlignExternalIDThenPosition AlignStrategy = "external_id_then_position"
	AlignPosition               AlignStrategy = "position"
	AlignSimilarity             AlignStrategy = "similarity"
)

// ValidAlignStrategy reports whether s names a supported strategy.
func ValidAlignStrategy(s AlignStrategy) bool {
	switch s {
	case AlignExternalID, AlignExternalIDThenPosition, AlignPosition, AlignSimilarity:
		return true
	}
	return false
}

// Link review statuses. The zero value (unreviewed) is stored as NULL.
const (
	LinkAccepted = "accepted"
	LinkRejected = "rejected"
)

// AlignmentLink is a one-to-one correspondence between a pivot unit and a
// target unit, created by one alignment run. Status is nil until a reviewer
// accepts or rejects the link.
type AlignmentLink struct {
	ID           int64     `json:"link_id"`
	RunID        string    `json:"run_id"`
	PivotUnitID  int64     `json:"pivot_unit_id"`
	TargetUnitID int64     `json:"target_unit_id"`
	ExternalID   *int64    `json:"external_id"`
	PivotDocID   int64     `json:"pivot_doc_id"`
	TargetDocID  int64     `json:"target_doc_id"`
	CreatedAt    time.Time `json:"created_at"`
	Status       *string   `json:"status"`
}

// NewLink is a link before the storage layer assigns its identity.
type NewLink struct {
	PivotUnitID  int64
	TargetUnitID int64
	ExternalID   *int64
}

// SampleLink is one debug-payload example of a created link.
type SampleLink struct {
	Phase        string   `json:"phase"`
	PivotUnitID  int64    `json:"pivot_unit_id"`
	TargetUnitID int64    `json:"target_unit_id"`
	ExternalID   *int64   `json:"external_id,omitempty"`
	Position     *int     `json:"position,omitempty"`
	Score        *float64 `json:"score,omitempty"`
}

// SimilarityStats summarises the matched scores of one similarity run.
type SimilarityStats struct {
	MatchedCount int     `json:"matched_count"`
	ScoreMin     float64 `json:"score_min,omitempty"`
	ScoreMax     float64 `json:"score_max,omitempty"`
	ScoreMean    float64 `json:"score_mean,omitempty"`
}

// AlignmentDebug is the optional diagnostic payload of one pair alignment.
type AlignmentDebug struct {
	Strategy        AlignStrategy    `json:"strategy"`
	Threshold       *float64         `json:"threshold,omitempty"`
	LinkSources     map[string]int   `json:"link_sources"`
	SimilarityStats *SimilarityStats `json:"similarity_stats,omitempty"`
	SampleLinks     []SampleLink     `json:"sample_links"`
}

// AlignmentReport is the coverage and diagnostics report for one
// (pivot, target) document pair.
type AlignmentReport struct {
	PivotDocID       int64           `json:"pivot_doc_id"`
	TargetDocID      int64           `json:"target_doc_id"`
	PivotTitle       string          `json:"pivot_title"`
	TargetTitle      string          `json:"target_title"`
	PivotLineCount   int             `json:"pivot_line_count"`
	TargetLineCount  int             `json:"target_line_count"`
	LinksCreated     int             `json:"links_created"`
	LinksSkipped     int             `json:"links_skipped"`
	CoveragePct      float64         `json:"coverage_pct"`
	Matched          []int64         `json:"matched"`
	MissingInTarget  []int64         `json:"missing_in_target"`
	MissingInPivot   []int64         `json:"missing_in_pivot"`
	DuplicatesPivot  []int64         `json:"duplicates_pivot"`
	DuplicatesTarget []int64         `json:"duplicates_target"`
	Warnings         []string        `json:"warnings"`
	Debug            *AlignmentDebug `json:"debug,omitempty"`
}

// Finalize fills the derived counters: LinksSkipped and CoveragePct.
func (r *AlignmentReport) Finalize() {
	r.LinksSkipped = r.PivotLineCount - r.LinksCreated
	if r.LinksSkipped < 0 {
		r.LinksSkipped = 0
	}
	if r.PivotLineCount > 0 {
		r.CoveragePct = round2(float64(r.LinksCreated) / float64(r.PivotLineCount) * 100)
	}
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// AuditRow is one paginated audit listing row, carrying both link endpoints'
// normalized text for side-by-side review.
type AuditRow struct {
	LinkID       int64   `json:"link_id"`
	ExternalID   *int64  `json:"external_id"`
	PivotUnitID  int64   `json:"pivot_unit_id"`
	TargetUnitID int64   `json:"target_unit_id"`
	PivotText    string  `json:"pivot_text"`
	TargetText   string  `json:"target_text"`
	Status       *string `json:"status"`
}

// AuditFilter scopes an audit listing.
type AuditFilter struct {
	PivotDocID  int64
	TargetDocID int64
	ExternalID  *int64
	// Status filters on review state: nil = all, "unreviewed", "accepted",
	// "rejected".
	Status *string
	Limit  int
	Offset int
}

// OrphanUnit is a sample unit with no link in a quality report.
type OrphanUnit struct {
	UnitID     int64  `json:"unit_id"`
	ExternalID *int64 `json:"external_id"`
	Text       string `json:"text"`
}

// QualityStats holds the coverage metrics of one pivot↔target pair.
type QualityStats struct {
	TotalPivotUnits    int64            `json:"total_pivot_units"`
	TotalTargetUnits   int64            `json:"total_target_units"`
	TotalLinks         int64            `json:"total_links"`
	CoveredPivotUnits  int64            `json:"covered_pivot_units"`
	CoveredTargetUnits int64            `json:"covered_target_units"`
	CoveragePct        float64          `json:"coverage_pct"`
	OrphanPivotCount   int64            `json:"orphan_pivot_count"`
	OrphanTargetCount  int64            `json:"orphan_target_count"`
	CollisionCount     int64            `json:"collision_count"`
	StatusCounts       map[string]int64 `json:"status_counts"`
}

// QualityReport is the full audit-quality payload for one pair.
type QualityReport struct {
	PivotDocID         int64        `json:"pivot_doc_id"`
	TargetDocID        int64        `json:"target_doc_id"`
	RunID              string       `json:"run_id,omitempty"`
	Stats              QualityStats `json:"stats"`
	SampleOrphanPivot  []OrphanUnit `json:"sample_orphan_pivot"`
	SampleOrphanTarget []OrphanUnit `json:"sample_orphan_target"`
}
