package domain

// QueryMode selects the projection of search hits.
type QueryMode string

const (
	// ModeSegment returns the full unit text with matches wrapped in the
	// inline << >> markers.
	ModeSegment QueryMode = "segment"

	// ModeKWIC returns left/match/right context windows.
	ModeKWIC QueryMode = "kwic"
)

// Query parameter bounds and defaults. The recommended window is 3..25 but
// 1 and 2 are accepted: tight single-token concordance windows are a real
// use case.
const (
	DefaultKWICWindow   = 10
	MinKWICWindow       = 1
	MaxKWICWindow       = 25
	DefaultQueryLimit   = 50
	MaxQueryLimit       = 200
	DefaultAlignedLimit = 20
)

// QueryOptions configures one search request.
type QueryOptions struct {
	Q              string    `json:"q"`
	Mode           QueryMode `json:"mode"`
	Window         int       `json:"window"`
	Language       string    `json:"language,omitempty"`
	DocID          *int64    `json:"doc_id,omitempty"`
	ResourceType   string    `json:"resource_type,omitempty"`
	DocRole        string    `json:"doc_role,omitempty"`
	IncludeAligned bool      `json:"include_aligned"`
	AlignedLimit   int       `json:"aligned_limit"`
	AllOccurrences bool      `json:"all_occurrences"`
	Limit          int       `json:"limit"`
	Offset         int       `json:"offset"`
}

// AlignedUnit is one sibling unit attached to a hit via alignment links.
type AlignedUnit struct {
	UnitID     int64  `json:"unit_id"`
	DocID      int64  `json:"doc_id"`
	ExternalID *int64 `json:"external_id"`
	Language   string `json:"language"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// Hit is one search result. Segment mode fills Text; KWIC mode fills
// Left/Match/Right. TextNorm always carries the unmarked unit text.
type Hit struct {
	DocID      int64  `json:"doc_id"`
	UnitID     int64  `json:"unit_id"`
	ExternalID *int64 `json:"external_id"`
	Language   string `json:"language"`
	Title      string `json:"title"`

	Text  string `json:"text,omitempty"`
	Left  string `json:"left,omitempty"`
	Match string `json:"match,omitempty"`
	Right string `json:"right,omitempty"`

	TextNorm string        `json:"text_norm"`
	Aligned  []AlignedUnit `json:"aligned,omitempty"`
}

// QueryPage is one paginated search response. Total is nil by design: the
// engine does not run a global count.
type QueryPage struct {
	Hits       []Hit  `json:"hits"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	NextOffset *int   `json:"next_offset"`
	HasMore    bool   `json:"has_more"`
	Total      *int64 `json:"total"`
	FTSStale   bool   `json:"fts_stale"`
}

// IndexRow is the raw match row the storage layer returns for one FTS hit,
// before projection into segment or KWIC shape.
type IndexRow struct {
	UnitID     int64
	DocID      int64
	ExternalID *int64
	TextNorm   string
	TextRaw    string
	Language   string
	Title      string
}

// IndexFilter narrows FTS matches to a document subset.
type IndexFilter struct {
	Language     string
	DocID        *int64
	ResourceType string
	DocRole      string
}
