package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes the two pipeline job types.
type JobKind string

const (
	JobKindTranslation JobKind = "translation"
	JobKindSynthesis   JobKind = "synthesis"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	ChunkStatusPending    = "pending"
	ChunkStatusInProgress = "in_progress"
	ChunkStatusCompleted  = "completed"
	ChunkStatusFailed     = "failed"
)

// ErrMsgCancelled is the error message recorded on jobs failed by cancellation.
const ErrMsgCancelled = "cancelled"

// Job tracks async chapter-processing work. The API returns a job id on
// enqueue; the client polls GET /api/v1/jobs/{job_id} until status is
// completed or failed. One job covers all chunks of one chapter.
type Job struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	Kind          JobKind    `db:"kind"           json:"kind"`
	BookID        string     `db:"book_id"        json:"book_id"`
	ChapterID     string     `db:"chapter_id"     json:"chapter_id"`
	TranslationID *uuid.UUID `db:"translation_id" json:"translation_id,omitempty"`
	Status        string     `db:"status"         json:"status"`
	Progress      float64    `db:"progress"       json:"progress"`
	TotalChunks   int        `db:"total_chunks"   json:"total_chunks"`
	ResultRef     *string    `db:"result_ref"     json:"result_ref,omitempty"`
	DurationSecs  *float64   `db:"duration_secs"  json:"duration_secs,omitempty"`
	ErrorMessage  *string    `db:"error_message"  json:"error_message,omitempty"`
	StartedAt     *time.Time `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at"   json:"completed_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"     json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ChunkResult is the per-chunk record inside a job. Index is the chunk's
// position in the original text and is the sole basis for reassembly;
// completion order is never reassembly order.
type ChunkResult struct {
	JobID        uuid.UUID `db:"job_id"        json:"job_id"`
	Index        int       `db:"idx"           json:"index"`
	Status       string    `db:"status"        json:"status"`
	PayloadRef   *string   `db:"payload_ref"   json:"payload_ref,omitempty"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
	Attempts     int       `db:"attempts"      json:"attempts"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}

// JobStatus is the read-only snapshot served to pollers. This is the only
// job data the HTTP boundary ever sees.
type JobStatus struct {
	JobID        uuid.UUID `json:"job_id"`
	Kind         JobKind   `json:"kind"`
	Status       string    `json:"status"`
	Progress     float64   `json:"progress"`
	ResultRef    *string   `json:"result_ref,omitempty"`
	DurationSecs *float64  `json:"duration_secs,omitempty"`
	ErrorMessage *string   `json:"error_message,omitempty"`
}

// Snapshot builds the poller-facing view of a job.
func (j *Job) Snapshot() JobStatus {
	return JobStatus{
		JobID:        j.ID,
		Kind:         j.Kind,
		Status:       j.Status,
		Progress:     j.Progress,
		ResultRef:    j.ResultRef,
		DurationSecs: j.DurationSecs,
		ErrorMessage: j.ErrorMessage,
	}
}
