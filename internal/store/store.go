package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// ErrJobNotActive is returned when a mutation targets a job that has already
// reached a terminal state. Runners treat it as "discard this write".
var ErrJobNotActive = errors.New("job is not active")

// Store is the job registry. It is the only mutable shared state of the
// pipeline: runners write chunk results through it, the status boundary
// reads from it, and every mutation is atomic and conditional on the job
// still being active.
type Store interface {
	Ping(ctx context.Context) error

	// CreateJob inserts job unless a non-terminal job already exists for the
	// same (book, chapter, kind), in which case the existing job is returned
	// instead (idempotent enqueue). The bool reports whether a row was
	// created.
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, bool, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)

	// StartJob moves a pending job to in_progress and creates totalChunks
	// pending chunk rows.
	StartJob(ctx context.Context, id uuid.UUID, totalChunks int) error
	// StartChunk moves one chunk to in_progress and bumps its attempt count.
	StartChunk(ctx context.Context, id uuid.UUID, index int) error
	// CompleteChunk records one chunk's payload and recomputes job progress
	// in the same transaction.
	CompleteChunk(ctx context.Context, id uuid.UUID, index int, payloadRef string) error
	// FailChunk marks one chunk permanently failed.
	FailChunk(ctx context.Context, id uuid.UUID, index int, errMsg string) error

	CompleteJob(ctx context.Context, id uuid.UUID, resultRef string, durationSecs *float64) error
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error

	GetChunks(ctx context.Context, id uuid.UUID) ([]models.ChunkResult, error)

	// LatestCompletedJob returns the most recently completed job for a
	// chapter and kind, or ErrNotFound.
	LatestCompletedJob(ctx context.Context, bookID, chapterID string, kind models.JobKind) (*models.Job, error)
}
