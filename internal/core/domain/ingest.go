package domain

// ImportMode names the supported ingestion formats.
type ImportMode string

// Supported import modes.
const (
	ImportDocxNumbered ImportMode = "docx_numbered_lines"
	ImportTxtNumbered  ImportMode = "txt_numbered_lines"
	ImportDocxParas    ImportMode = "docx_paragraphs"
	ImportTEI          ImportMode = "tei"
)

// ValidImportMode reports whether m names a supported format.
func ValidImportMode(m ImportMode) bool {
	switch m {
	case ImportDocxNumbered, ImportTxtNumbered, ImportDocxParas, ImportTEI:
		return true
	}
	return false
}

// ImportRequest carries the parameters of one ingestion invocation.
type ImportRequest struct {
	Mode         ImportMode `json:"mode"`
	Path         string     `json:"path"`
	Language     string     `json:"language,omitempty"`
	Title        string     `json:"title,omitempty"`
	DocRole      DocRole    `json:"doc_role,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	// TEIUnit selects the TEI unit element: "p" (default) or "s".
	TEIUnit string `json:"tei_unit,omitempty"`
}

// ImportReport is the diagnostics summary of one ingestion.
type ImportReport struct {
	DocID          int64    `json:"doc_id"`
	UnitsTotal     int      `json:"units_total"`
	UnitsLine      int      `json:"units_line"`
	UnitsStructure int      `json:"units_structure"`
	Duplicates     []int64  `json:"duplicates"`
	Holes          []int64  `json:"holes"`
	NonMonotonic   []int64  `json:"non_monotonic"`
	Warnings       []string `json:"warnings"`
	Encoding       string   `json:"encoding,omitempty"`
	EncodingMethod string   `json:"enc_method,omitempty"`
}

// SegmentationReport is the result of resegmenting one document into
// sentence-level units.
type SegmentationReport struct {
	DocID        int64    `json:"doc_id"`
	UnitsInput   int      `json:"units_input"`
	UnitsOutput  int      `json:"units_output"`
	LinksDropped int64    `json:"links_dropped"`
	Warnings     []string `json:"warnings"`
}

// MetaValidationResult reports advisory metadata warnings for one document.
// IsValid is false only when a required field is missing.
type MetaValidationResult struct {
	DocID    int64    `json:"doc_id"`
	Title    string   `json:"title"`
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
}
