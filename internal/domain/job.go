package domain

import "time"

// JobStatus represents the status of an import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusValidating JobStatus = "validating"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further automatic transition happens from s.
// A failed job may still be retried explicitly while under the retry limit.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SourceKind identifies where the import payload came from.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindURL  SourceKind = "url"
	SourceKindGit  SourceKind = "git"
	SourceKindRaw  SourceKind = "raw"
)

// Format identifies the declared document format of an import payload.
type Format string

const (
	FormatOpenAPIJSON Format = "openapi-json"
	FormatOpenAPIYAML Format = "openapi-yaml"
	FormatPostmanJSON Format = "postman-json"
	FormatUnknown     Format = "unknown"
)

// ValidSourceKinds contains all valid import source kinds.
var ValidSourceKinds = []SourceKind{SourceKindFile, SourceKindURL, SourceKindGit, SourceKindRaw}

// ValidFormats contains all recognized declared formats.
var ValidFormats = []Format{FormatOpenAPIJSON, FormatOpenAPIYAML, FormatPostmanJSON, FormatUnknown}

// IsValidSourceKind checks if a source kind is valid.
func IsValidSourceKind(kind string) bool {
	for _, k := range ValidSourceKinds {
		if string(k) == kind {
			return true
		}
	}
	return false
}

// IsValidFormat checks if a declared format is recognized.
func IsValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if string(f) == format {
			return true
		}
	}
	return false
}

// ValidationReport is the outcome of one validation attempt. It is
// produced fresh per attempt and never mutated afterwards.
type ValidationReport struct {
	Valid               bool     `json:"valid"`
	Errors              []string `json:"errors,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
	MissingDependencies []string `json:"missing_dependencies,omitempty"`
}

// ImportJob represents one attempt to import an API specification
// document and materialize it into a collection graph. Jobs are mutated
// exclusively through the transition functions below; Version increases
// on every persisted write and backs the optimistic claim.
type ImportJob struct {
	ID                       string            `json:"id"`
	SourceKind               SourceKind        `json:"source_kind"`
	Format                   Format            `json:"format"`
	Status                   JobStatus         `json:"status"`
	Principal                string            `json:"principal"`
	Payload                  []byte            `json:"-"`
	CollectionID             string            `json:"collection_id,omitempty"`
	CollectionName           string            `json:"collection_name"`
	EndpointsImported        int               `json:"endpoints_imported"`
	FoldersCreated           int               `json:"folders_created"`
	ImplementationsGenerated int               `json:"implementations_generated"`
	Filename                 string            `json:"filename,omitempty"`
	SizeBytes                int64             `json:"size_bytes"`
	ErrorMessage             *string           `json:"error_message,omitempty"`
	Report                   *ValidationReport `json:"report,omitempty"`
	RetryCount               int               `json:"retry_count"`
	Version                  int64             `json:"version"`
	CreatedAt                time.Time         `json:"created_at"`
	StartedAt                *time.Time        `json:"started_at,omitempty"`
	CompletedAt              *time.Time        `json:"completed_at,omitempty"`
}

// Retryable reports whether a failed job may still be re-claimed for
// another attempt under the given retry limit.
func (j ImportJob) Retryable(retryLimit int) bool {
	return j.Status == JobStatusFailed && j.RetryCount <= retryLimit
}

// PermanentlyFailed reports whether the job has exhausted its retries.
func (j ImportJob) PermanentlyFailed(retryLimit int) bool {
	return j.Status == JobStatusFailed && j.RetryCount > retryLimit
}

// BeginValidation claims a pending job for the validation phase.
func BeginValidation(j ImportJob, now time.Time) (ImportJob, error) {
	if j.Status != JobStatusPending {
		return j, ErrInvalidState
	}
	j.Status = JobStatusValidating
	j.StartedAt = &now
	return j, nil
}

// BeginProcessing records a passing validation report and moves the job
// into the graph-building phase.
func BeginProcessing(j ImportJob, report ValidationReport, now time.Time) (ImportJob, error) {
	if j.Status != JobStatusValidating {
		return j, ErrInvalidState
	}
	j.Status = JobStatusProcessing
	j.Report = &report
	return j, nil
}

// Complete finishes a processing job with the generated graph counters.
func Complete(j ImportJob, collectionID string, counters GraphCounters, now time.Time) (ImportJob, error) {
	if j.Status != JobStatusProcessing {
		return j, ErrInvalidState
	}
	j.Status = JobStatusCompleted
	j.CollectionID = collectionID
	j.EndpointsImported = counters.EndpointsImported
	j.FoldersCreated = counters.FoldersCreated
	j.ImplementationsGenerated = counters.ImplementationsGenerated
	j.CompletedAt = &now
	return j, nil
}

// Fail marks a validating or processing job as failed, increments the
// retry counter and records the failure message. The validation report
// is attached when the failure originated in the validation phase.
func Fail(j ImportJob, reason string, report *ValidationReport, now time.Time) (ImportJob, error) {
	if j.Status != JobStatusValidating && j.Status != JobStatusProcessing {
		return j, ErrInvalidState
	}
	if reason == "" {
		reason = "import failed"
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = &reason
	if report != nil {
		j.Report = report
	}
	j.RetryCount++
	j.CompletedAt = &now
	return j, nil
}

// ResetForRetry re-claims a failed job below the retry limit back into
// the validation phase. The retry counter is preserved.
func ResetForRetry(j ImportJob, retryLimit int, now time.Time) (ImportJob, error) {
	if !j.Retryable(retryLimit) {
		return j, ErrInvalidState
	}
	j.Status = JobStatusValidating
	j.ErrorMessage = nil
	j.Report = nil
	j.CollectionID = ""
	j.EndpointsImported = 0
	j.FoldersCreated = 0
	j.ImplementationsGenerated = 0
	j.StartedAt = &now
	j.CompletedAt = nil
	return j, nil
}

// ImportHistory is an immutable record of one finished import job,
// appended atomically with the job's terminal transition.
type ImportHistory struct {
	ID                       string                 `json:"id"`
	JobID                    string                 `json:"job_id"`
	SourceKind               SourceKind             `json:"source_kind"`
	Format                   Format                 `json:"format"`
	CollectionID             string                 `json:"collection_id,omitempty"`
	CollectionName           string                 `json:"collection_name"`
	Status                   JobStatus              `json:"status"`
	EndpointsImported        int                    `json:"endpoints_imported"`
	FoldersCreated           int                    `json:"folders_created"`
	ImplementationsGenerated int                    `json:"implementations_generated"`
	Metadata                 map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt                time.Time              `json:"created_at"`
}

// NewHistory builds the history record for a job that reached a
// terminal state.
func NewHistory(id string, j ImportJob, now time.Time) ImportHistory {
	rec := ImportHistory{
		ID:                       id,
		JobID:                    j.ID,
		SourceKind:               j.SourceKind,
		Format:                   j.Format,
		CollectionID:             j.CollectionID,
		CollectionName:           j.CollectionName,
		Status:                   j.Status,
		EndpointsImported:        j.EndpointsImported,
		FoldersCreated:           j.FoldersCreated,
		ImplementationsGenerated: j.ImplementationsGenerated,
		Metadata: map[string]interface{}{
			"filename":    j.Filename,
			"size_bytes":  j.SizeBytes,
			"principal":   j.Principal,
			"retry_count": j.RetryCount,
		},
		CreatedAt: now,
	}
	if j.ErrorMessage != nil {
		rec.Metadata["error"] = *j.ErrorMessage
	}
	return rec
}
