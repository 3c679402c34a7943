package domain

// JobStatus is the lifecycle state of an async job.
type JobStatus string

// Job states. Done, error, and canceled are terminal and immutable.
const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobError    JobStatus = "error"
	JobCanceled JobStatus = "canceled"
)

// Terminal reports whether s is a terminal job state.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError || s == JobCanceled
}

// JobKind names the operations the job runtime can execute.
type JobKind string

// Supported job kinds.
const (
	JobImport          JobKind = "import"
	JobIndex           JobKind = "index"
	JobCurate          JobKind = "curate"
	JobValidateMeta    JobKind = "validate-meta"
	JobSegment         JobKind = "segment"
	JobAlign           JobKind = "align"
	JobExportTEI       JobKind = "export_tei"
	JobExportAlignCSV  JobKind = "export_align_csv"
	JobExportRunReport JobKind = "export_run_report"
)

// ValidJobKind reports whether k is a supported job kind.
func ValidJobKind(k JobKind) bool {
	switch k {
	case JobImport, JobIndex, JobCurate, JobValidateMeta, JobSegment,
		JobAlign, JobExportTEI, JobExportAlignCSV, JobExportRunReport:
		return true
	}
	return false
}

// Job is the transient in-memory record of one async operation. Timestamps
// are UTC ISO-8601 strings, matching the wire format.
type Job struct {
	ID              string         `json:"job_id"`
	Kind            JobKind        `json:"kind"`
	Status          JobStatus      `json:"status"`
	ProgressPct     int            `json:"progress_pct"`
	ProgressMessage string         `json:"progress_message,omitempty"`
	Params          map[string]any `json:"params"`
	Result          map[string]any `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	ErrorCode       string         `json:"error_code,omitempty"`
	CreatedAt       string         `json:"created_at"`
	StartedAt       string         `json:"started_at,omitempty"`
	FinishedAt      string         `json:"finished_at,omitempty"`
}
