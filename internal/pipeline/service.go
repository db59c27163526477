// Package pipeline orchestrates the chapter processing jobs: chunking,
// translation, speech synthesis, and chapter audio assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bookvoice/internal/artifact"
	"github.com/kiranshivaraju/bookvoice/internal/audio"
	"github.com/kiranshivaraju/bookvoice/internal/cache"
	"github.com/kiranshivaraju/bookvoice/internal/chunker"
	"github.com/kiranshivaraju/bookvoice/internal/config"
	"github.com/kiranshivaraju/bookvoice/internal/library"
	"github.com/kiranshivaraju/bookvoice/internal/store"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
	"golang.org/x/sync/errgroup"
)

const statusTTL = 30 * time.Minute

// Merger assembles ordered audio segments into one chapter file.
type Merger interface {
	Merge(ctx context.Context, segmentPaths []string, gap time.Duration, bitrate, outPath string) error
	Duration(ctx context.Context, path string) (float64, error)
}

// Settings are the tunables of the chunk runners.
type Settings struct {
	MaxChunkChars      int
	Workers            int
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	TranslationTimeout time.Duration
	SynthesisTimeout   time.Duration
	TargetLang         string
	Voice              string
	Speed              float64
	SegmentGap         time.Duration
}

// SettingsFromConfig pulls runner settings out of the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MaxChunkChars:      cfg.Pipeline.MaxChunkChars,
		Workers:            cfg.Pipeline.Workers,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		BackoffBase:        cfg.Pipeline.BackoffBase,
		BackoffCap:         cfg.Pipeline.BackoffCap,
		TranslationTimeout: cfg.Translation.CallTimeout,
		SynthesisTimeout:   cfg.TTS.CallTimeout,
		TargetLang:         cfg.Translation.TargetLang,
		Voice:              cfg.TTS.Voice,
		Speed:              cfg.TTS.Speed,
		SegmentGap:         cfg.Audio.SegmentGap,
	}
}

// Service runs translation and synthesis jobs. Enqueue operations create a
// pending job and dispatch a background runner; clients poll job status
// until it turns terminal.
type Service struct {
	store      store.Store
	cache      cache.Cache
	translator models.TranslationProvider
	speech     models.SpeechProvider
	artifacts  artifact.Store
	chapters   library.Source
	merger     Merger
	settings   Settings
	logger     *slog.Logger
}

func NewService(st store.Store, ca cache.Cache, translator models.TranslationProvider,
	speech models.SpeechProvider, artifacts artifact.Store, chapters library.Source,
	merger Merger, settings Settings, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		cache:      ca,
		translator: translator,
		speech:     speech,
		artifacts:  artifacts,
		chapters:   chapters,
		merger:     merger,
		settings:   settings,
		logger:     logger,
	}
}

// EnqueueTranslation creates a translation job for one chapter and dispatches
// it in a background goroutine. When a job for the same chapter is already
// pending or running, that job is returned instead of a new one.
func (s *Service) EnqueueTranslation(ctx context.Context, bookID, chapterID string) (*models.Job, bool, error) {
	// Reject unknown chapters before creating registry state.
	if _, err := s.chapters.GetText(ctx, bookID, chapterID); err != nil {
		return nil, false, err
	}

	job, isNew, err := s.store.CreateJob(ctx, newJob(models.JobKindTranslation, bookID, chapterID, nil))
	if err != nil {
		return nil, false, fmt.Errorf("creating translation job: %w", err)
	}
	if !isNew {
		return job, false, nil
	}

	go s.runTranslation(job)
	return job, true, nil
}

// EnqueueSynthesis creates a synthesis job for one chapter. The source
// translation is either the given job id or, when nil, the chapter's most
// recent completed translation. ErrTranslationNotReady is returned when no
// usable translation exists.
func (s *Service) EnqueueSynthesis(ctx context.Context, bookID, chapterID string, translationID *uuid.UUID) (*models.Job, bool, error) {
	translation, err := s.resolveTranslation(ctx, bookID, chapterID, translationID)
	if err != nil {
		return nil, false, err
	}

	job, isNew, err := s.store.CreateJob(ctx, newJob(models.JobKindSynthesis, bookID, chapterID, &translation.ID))
	if err != nil {
		return nil, false, fmt.Errorf("creating synthesis job: %w", err)
	}
	if !isNew {
		return job, false, nil
	}

	go s.runSynthesis(job, translation)
	return job, true, nil
}

// Status returns the poller-facing snapshot of a job. Terminal snapshots are
// served from cache; in-flight progress always comes from the store.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (*models.JobStatus, error) {
	if s.cache != nil {
		if snap, found, err := s.cache.GetJobStatus(ctx, jobID); err == nil && found {
			return snap, nil
		}
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snap := job.Snapshot()
	if job.Terminal() {
		s.cacheStatus(ctx, &snap)
	}
	return &snap, nil
}

// Cancel marks an active job failed with a cancellation message. Running
// chunk work notices on its next registry write and discards its results.
// store.ErrJobNotActive is returned for jobs already terminal.
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	if err := s.store.FailJob(ctx, jobID, models.ErrMsgCancelled); err != nil {
		return err
	}
	s.logger.Info("job cancelled", "job_id", jobID)
	if job, err := s.store.GetJob(ctx, jobID); err == nil {
		snap := job.Snapshot()
		s.cacheStatus(ctx, &snap)
	}
	return nil
}

func (s *Service) resolveTranslation(ctx context.Context, bookID, chapterID string, translationID *uuid.UUID) (*models.Job, error) {
	if translationID == nil {
		t, err := s.store.LatestCompletedJob(ctx, bookID, chapterID, models.JobKindTranslation)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTranslationNotReady
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	t, err := s.store.GetJob(ctx, *translationID)
	if err != nil {
		return nil, err
	}
	if t.Kind != models.JobKindTranslation || t.BookID != bookID || t.ChapterID != chapterID {
		return nil, store.ErrNotFound
	}
	if t.Status != models.JobStatusCompleted || t.ResultRef == nil {
		return nil, ErrTranslationNotReady
	}
	return t, nil
}

// --- runners ---

// runTranslation chunks the chapter text, translates every chunk through the
// worker pool, and reassembles the results in chunk-index order.
func (s *Service) runTranslation(job *models.Job) {
	ctx := context.Background()
	defer s.recoverJob(ctx, job.ID)

	text, err := s.chapters.GetText(ctx, job.BookID, job.ChapterID)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("reading chapter: %v", err))
		return
	}
	chunks, err := chunker.Split(text, s.settings.MaxChunkChars)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("chunking chapter: %v", err))
		return
	}

	if err := s.start(ctx, job, len(chunks)); err != nil {
		return
	}

	err = s.runChunks(ctx, len(chunks), func(ctx context.Context, i int) error {
		return s.translateChunk(ctx, job.ID, i, chunks[i])
	})
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return
	}

	s.assembleTranslation(ctx, job)
}

// runSynthesis chunks the completed translation, synthesizes every chunk,
// and merges the audio segments into one chapter MP3.
func (s *Service) runSynthesis(job *models.Job, translation *models.Job) {
	ctx := context.Background()
	defer s.recoverJob(ctx, job.ID)

	data, err := s.artifacts.Get(ctx, *translation.ResultRef)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("reading translation: %v", err))
		return
	}
	chunks, err := chunker.Split(string(data), s.settings.MaxChunkChars)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("chunking translation: %v", err))
		return
	}

	if err := s.start(ctx, job, len(chunks)); err != nil {
		return
	}

	err = s.runChunks(ctx, len(chunks), func(ctx context.Context, i int) error {
		return s.synthesizeChunk(ctx, job.ID, i, chunks[i])
	})
	if err != nil {
		s.failJob(ctx, job.ID, err.Error())
		return
	}

	s.assembleSynthesis(ctx, job)
}

func (s *Service) start(ctx context.Context, job *models.Job, totalChunks int) error {
	err := s.store.StartJob(ctx, job.ID, totalChunks)
	if errors.Is(err, store.ErrJobNotActive) {
		// Cancelled before the runner got here.
		s.logger.Info("job no longer pending, not starting", "job_id", job.ID)
		return err
	}
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("starting job: %v", err))
		return err
	}
	s.logger.Info("job started", "job_id", job.ID, "kind", job.Kind,
		"book_id", job.BookID, "chapter_id", job.ChapterID, "chunks", totalChunks)
	return nil
}

// runChunks fans the chunk indexes out over a bounded worker pool. The first
// chunk error cancels the remaining work.
func (s *Service) runChunks(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error { return fn(ctx, i) })
	}
	return g.Wait()
}

func (s *Service) translateChunk(ctx context.Context, jobID uuid.UUID, idx int, text string) error {
	var translated string
	err := callWithRetry(ctx, s.settings.MaxRetries, s.settings.BackoffBase, s.settings.BackoffCap,
		s.settings.TranslationTimeout,
		func(ctx context.Context) error {
			var err error
			translated, err = s.translator.Translate(ctx, text, s.settings.TargetLang)
			return err
		},
		func(attempt int) error {
			if attempt > 1 {
				s.logger.Warn("retrying translation chunk", "job_id", jobID, "chunk", idx, "attempt", attempt)
			}
			return s.store.StartChunk(ctx, jobID, idx)
		})
	if err != nil {
		return s.chunkFailed(ctx, jobID, idx, err)
	}

	ref, err := s.artifacts.Put(ctx, []byte(translated), ".txt")
	if err != nil {
		return s.chunkFailed(ctx, jobID, idx, err)
	}
	return s.store.CompleteChunk(ctx, jobID, idx, ref)
}

func (s *Service) synthesizeChunk(ctx context.Context, jobID uuid.UUID, idx int, text string) error {
	var sound []byte
	err := callWithRetry(ctx, s.settings.MaxRetries, s.settings.BackoffBase, s.settings.BackoffCap,
		s.settings.SynthesisTimeout,
		func(ctx context.Context) error {
			var err error
			sound, err = s.speech.Synthesize(ctx, models.SynthesizeRequest{
				Text:  text,
				Voice: s.settings.Voice,
				Speed: s.settings.Speed,
			})
			return err
		},
		func(attempt int) error {
			if attempt > 1 {
				s.logger.Warn("retrying synthesis chunk", "job_id", jobID, "chunk", idx, "attempt", attempt)
			}
			return s.store.StartChunk(ctx, jobID, idx)
		})
	if err != nil {
		return s.chunkFailed(ctx, jobID, idx, err)
	}

	ref, err := s.artifacts.Put(ctx, sound, ".wav")
	if err != nil {
		return s.chunkFailed(ctx, jobID, idx, err)
	}
	return s.store.CompleteChunk(ctx, jobID, idx, ref)
}

func (s *Service) chunkFailed(ctx context.Context, jobID uuid.UUID, idx int, err error) error {
	if errors.Is(err, store.ErrJobNotActive) {
		return err
	}
	_ = s.store.FailChunk(ctx, jobID, idx, err.Error())
	return fmt.Errorf("chunk %d: %w", idx, err)
}

// assembleTranslation joins the chunk payloads in index order into the final
// chapter translation artifact.
func (s *Service) assembleTranslation(ctx context.Context, job *models.Job) {
	parts, err := s.chunkPayloads(ctx, job.ID)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("assembling translation: %v", err))
		return
	}

	texts := make([]string, len(parts))
	for i, ref := range parts {
		data, err := s.artifacts.Get(ctx, ref)
		if err != nil {
			s.failJob(ctx, job.ID, fmt.Sprintf("reading chunk payload: %v", err))
			return
		}
		texts[i] = string(data)
	}

	ref, err := s.artifacts.Put(ctx, []byte(chunker.Join(texts)), ".txt")
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("storing translation: %v", err))
		return
	}
	s.completeJob(ctx, job, ref, nil)
}

// assembleSynthesis merges the audio segments in index order into the final
// chapter MP3.
func (s *Service) assembleSynthesis(ctx context.Context, job *models.Job) {
	parts, err := s.chunkPayloads(ctx, job.ID)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("assembling audio: %v", err))
		return
	}

	paths := make([]string, len(parts))
	for i, ref := range parts {
		p, err := s.artifacts.Path(ref)
		if err != nil {
			s.failJob(ctx, job.ID, fmt.Sprintf("resolving segment: %v", err))
			return
		}
		paths[i] = p
	}

	ref := s.artifacts.NewRef(".mp3")
	outPath, err := s.artifacts.Path(ref)
	if err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("resolving output: %v", err))
		return
	}
	if err := s.merger.Merge(ctx, paths, s.settings.SegmentGap, audio.ChapterBitrate, outPath); err != nil {
		s.failJob(ctx, job.ID, fmt.Sprintf("merging audio: %v", err))
		return
	}

	var duration *float64
	if secs, err := s.merger.Duration(ctx, outPath); err == nil {
		duration = &secs
	} else {
		s.logger.Warn("could not probe chapter duration", "job_id", job.ID, "error", err)
	}
	s.completeJob(ctx, job, ref, duration)
}

// chunkPayloads returns the payload refs of all chunks in index order.
func (s *Service) chunkPayloads(ctx context.Context, jobID uuid.UUID) ([]string, error) {
	chunks, err := s.store.GetChunks(ctx, jobID)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(chunks))
	for i, c := range chunks {
		if c.Status != models.ChunkStatusCompleted || c.PayloadRef == nil {
			return nil, fmt.Errorf("chunk %d not completed", c.Index)
		}
		refs[i] = *c.PayloadRef
	}
	return refs, nil
}

func (s *Service) completeJob(ctx context.Context, job *models.Job, resultRef string, duration *float64) {
	if err := s.store.CompleteJob(ctx, job.ID, resultRef, duration); err != nil {
		if !errors.Is(err, store.ErrJobNotActive) {
			s.logger.Error("completing job failed", "job_id", job.ID, "error", err)
		}
		return
	}
	s.logger.Info("job completed", "job_id", job.ID, "kind", job.Kind, "result_ref", resultRef)
	s.refreshCachedStatus(ctx, job.ID)
}

// failJob marks the job failed unless it is already terminal; a cancelled
// job keeps its cancellation message.
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	err := s.store.FailJob(ctx, jobID, msg)
	if errors.Is(err, store.ErrJobNotActive) {
		return
	}
	if err != nil {
		s.logger.Error("failing job failed", "job_id", jobID, "error", err)
		return
	}
	s.logger.Warn("job failed", "job_id", jobID, "error", msg)
	s.refreshCachedStatus(ctx, jobID)
}

func (s *Service) refreshCachedStatus(ctx context.Context, jobID uuid.UUID) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil || !job.Terminal() {
		return
	}
	snap := job.Snapshot()
	s.cacheStatus(ctx, &snap)
}

func (s *Service) cacheStatus(ctx context.Context, snap *models.JobStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJobStatus(ctx, snap.JobID, *snap, statusTTL); err != nil {
		s.logger.Warn("status cache write failed", "job_id", snap.JobID, "error", err)
	}
}

// recoverJob converts a runner panic into a failed job.
func (s *Service) recoverJob(ctx context.Context, jobID uuid.UUID) {
	if r := recover(); r != nil {
		s.logger.Error("panic in job runner", "job_id", jobID, "error", r)
		s.failJob(ctx, jobID, fmt.Sprintf("panic: %v", r))
	}
}

func newJob(kind models.JobKind, bookID, chapterID string, translationID *uuid.UUID) *models.Job {
	now := time.Now().UTC()
	return &models.Job{
		ID:            uuid.New(),
		Kind:          kind,
		BookID:        bookID,
		ChapterID:     chapterID,
		TranslationID: translationID,
		Status:        models.JobStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
