package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiranshivaraju/bookvoice/pkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, kind, book_id, chapter_id, translation_id, status, progress, total_chunks,
	 result_ref, duration_secs, error_message, started_at, completed_at, created_at, updated_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateJob inserts a job, deferring to the partial unique index on active
// (book, chapter, kind) subjects: when an active job already exists, that
// job is returned and nothing is written.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) (*models.Job, bool, error) {
	var created models.Job
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, kind, book_id, chapter_id, translation_id, status, progress, total_chunks, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (book_id, chapter_id, kind) WHERE status IN ('pending', 'in_progress') DO NOTHING
		 RETURNING `+jobColumns,
		job.ID, job.Kind, job.BookID, job.ChapterID, job.TranslationID,
		job.Status, job.Progress, job.TotalChunks, job.CreatedAt, job.UpdatedAt,
	).Scan(scanDest(&created)...)
	if err == nil {
		return &created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	// Conflict: hand back the active job for this subject.
	existing, err := s.activeJob(ctx, job.BookID, job.ChapterID, job.Kind)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) activeJob(ctx context.Context, bookID, chapterID string, kind models.JobKind) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE book_id = $1 AND chapter_id = $2 AND kind = $3 AND status IN ('pending', 'in_progress')`,
		bookID, chapterID, kind,
	).Scan(scanDest(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
	).Scan(scanDest(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// StartJob transitions pending -> in_progress and creates the chunk rows.
func (s *PostgresStore) StartJob(ctx context.Context, id uuid.UUID, totalChunks int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin start job: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = 'in_progress', total_chunks = $2, started_at = $3, updated_at = $3
		 WHERE id = $1 AND status = 'pending'`, id, totalChunks, now)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO job_chunks (job_id, idx, status, updated_at)
		 SELECT $1, g, 'pending', $3 FROM generate_series(0, $2 - 1) AS g`,
		id, totalChunks, now)
	if err != nil {
		return fmt.Errorf("create job chunks: %w", err)
	}

	return tx.Commit(ctx)
}

// StartChunk marks one chunk in_progress. Each retry attempt passes through
// here, so attempts counts provider calls, not chunks.
func (s *PostgresStore) StartChunk(ctx context.Context, id uuid.UUID, index int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_chunks SET status = 'in_progress', attempts = attempts + 1, updated_at = $3
		 WHERE job_id = $1 AND idx = $2
		   AND EXISTS (SELECT 1 FROM jobs WHERE id = $1 AND status = 'in_progress')`,
		id, index, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("start chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}
	return nil
}

// CompleteChunk writes the chunk payload and recomputes job progress in one
// transaction. Writes against a terminal job are rejected, which is how
// results of cancelled or failed jobs get discarded.
func (s *PostgresStore) CompleteChunk(ctx context.Context, id uuid.UUID, index int, payloadRef string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete chunk: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx,
		`UPDATE job_chunks SET status = 'completed', payload_ref = $3, updated_at = $4
		 WHERE job_id = $1 AND idx = $2
		   AND EXISTS (SELECT 1 FROM jobs WHERE id = $1 AND status = 'in_progress')`,
		id, index, payloadRef, now)
	if err != nil {
		return fmt.Errorf("complete chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}

	// Progress is derived solely from completed chunk counts; recomputing it
	// here keeps it atomic with the chunk write and monotonic.
	_, err = tx.Exec(ctx,
		`UPDATE jobs SET progress = (
		     SELECT COUNT(*) FILTER (WHERE status = 'completed')::float / NULLIF(COUNT(*), 0)
		     FROM job_chunks WHERE job_id = $1
		 ), updated_at = $2
		 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("recompute progress: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) FailChunk(ctx context.Context, id uuid.UUID, index int, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_chunks SET status = 'failed', error_message = $3, updated_at = $4
		 WHERE job_id = $1 AND idx = $2
		   AND EXISTS (SELECT 1 FROM jobs WHERE id = $1 AND status = 'in_progress')`,
		id, index, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("fail chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, resultRef string, durationSecs *float64) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', progress = 1.0, result_ref = $2,
		        duration_secs = $3, completed_at = $4, updated_at = $4
		 WHERE id = $1 AND status = 'in_progress'`,
		id, resultRef, durationSecs, now)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_message = $2, completed_at = $3, updated_at = $3
		 WHERE id = $1 AND status IN ('pending', 'in_progress')`,
		id, errMsg, now)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotActive
	}
	return nil
}

func (s *PostgresStore) GetChunks(ctx context.Context, id uuid.UUID) ([]models.ChunkResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, idx, status, payload_ref, error_message, attempts, updated_at
		 FROM job_chunks WHERE job_id = $1 ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ChunkResult
	for rows.Next() {
		var c models.ChunkResult
		if err := rows.Scan(&c.JobID, &c.Index, &c.Status, &c.PayloadRef,
			&c.ErrorMessage, &c.Attempts, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresStore) LatestCompletedJob(ctx context.Context, bookID, chapterID string, kind models.JobKind) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE book_id = $1 AND chapter_id = $2 AND kind = $3 AND status = 'completed'
		 ORDER BY completed_at DESC LIMIT 1`,
		bookID, chapterID, kind,
	).Scan(scanDest(&j)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed job: %w", err)
	}
	return &j, nil
}

// scanDest returns scan targets matching jobColumns order.
func scanDest(j *models.Job) []any {
	return []any{
		&j.ID, &j.Kind, &j.BookID, &j.ChapterID, &j.TranslationID,
		&j.Status, &j.Progress, &j.TotalChunks,
		&j.ResultRef, &j.DurationSecs, &j.ErrorMessage,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	}
}

var _ Store = (*PostgresStore)(nil)
