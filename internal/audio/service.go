package audio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/bookvoice/internal/cache"
	"github.com/kiranshivaraju/bookvoice/internal/library"
	"github.com/kiranshivaraju/bookvoice/internal/store"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// ErrNoAudio is returned when a chapter or book has no completed synthesis.
var ErrNoAudio = errors.New("no synthesized audio available")

const playlistTTL = 30 * time.Second

// JobFinder looks up completed synthesis jobs in the registry.
type JobFinder interface {
	LatestCompletedJob(ctx context.Context, bookID, chapterID string, kind models.JobKind) (*models.Job, error)
}

// ArtifactResolver resolves artifact refs to filesystem paths.
type ArtifactResolver interface {
	Path(ref string) (string, error)
	NewRef(ext string) string
}

// segmentMerger abstracts the ffmpeg merger for testability.
type segmentMerger interface {
	Merge(ctx context.Context, segmentPaths []string, gap time.Duration, bitrate, outPath string) error
	Duration(ctx context.Context, path string) (float64, error)
}

// Service serves chapter audio lookups, book playlists, and whole-book merges
// on top of the job registry and the artifact store.
type Service struct {
	jobs      JobFinder
	chapters  library.Source
	artifacts ArtifactResolver
	merger    segmentMerger
	cache     cache.Cache
	bookGap   time.Duration
	logger    *slog.Logger
}

func NewService(jobs JobFinder, chapters library.Source, artifacts ArtifactResolver,
	merger segmentMerger, c cache.Cache, bookGap time.Duration, logger *slog.Logger) *Service {
	return &Service{
		jobs:      jobs,
		chapters:  chapters,
		artifacts: artifacts,
		merger:    merger,
		cache:     c,
		bookGap:   bookGap,
		logger:    logger,
	}
}

// ChapterAudio returns the most recent completed synthesis artifact for one
// chapter, or ErrNoAudio.
func (s *Service) ChapterAudio(ctx context.Context, bookID, chapterID string) (*models.ChapterAudio, error) {
	job, err := s.jobs.LatestCompletedJob(ctx, bookID, chapterID, models.JobKindSynthesis)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoAudio
	}
	if err != nil {
		return nil, err
	}
	if job.ResultRef == nil {
		return nil, ErrNoAudio
	}

	ca := &models.ChapterAudio{
		BookID:    bookID,
		ChapterID: chapterID,
		AudioRef:  *job.ResultRef,
	}
	if job.DurationSecs != nil {
		ca.DurationSecs = *job.DurationSecs
	}
	return ca, nil
}

// AudioPath resolves a chapter's audio artifact to a filesystem path for
// serving.
func (s *Service) AudioPath(ctx context.Context, bookID, chapterID string) (string, error) {
	ca, err := s.ChapterAudio(ctx, bookID, chapterID)
	if err != nil {
		return "", err
	}
	return s.artifacts.Path(ca.AudioRef)
}

// Playlist lists the book's chapters in reading order with their synthesized
// audio. Chapters that have no completed synthesis yet are skipped.
func (s *Service) Playlist(ctx context.Context, bookID string) (*models.BookPlaylist, error) {
	if cached, ok := s.cachedPlaylist(ctx, bookID); ok {
		return cached, nil
	}

	chapters, err := s.chapters.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}

	playlist := &models.BookPlaylist{BookID: bookID, Items: []models.PlaylistItem{}}
	for _, ch := range chapters {
		ca, err := s.ChapterAudio(ctx, bookID, ch.ID)
		if errors.Is(err, ErrNoAudio) {
			continue
		}
		if err != nil {
			return nil, err
		}
		playlist.Items = append(playlist.Items, models.PlaylistItem{
			ChapterID:    ch.ID,
			ChapterTitle: ch.Title,
			AudioRef:     ca.AudioRef,
			DurationSecs: ca.DurationSecs,
			Order:        ch.Order,
		})
		playlist.TotalDurationSecs += ca.DurationSecs
	}

	s.storePlaylist(ctx, bookID, playlist)
	return playlist, nil
}

// MergeBook concatenates every chapter's synthesized audio, in reading order,
// into a single book MP3. Chapters without audio are skipped; a book with no
// audio at all is ErrNoAudio.
func (s *Service) MergeBook(ctx context.Context, bookID string) (*models.ChapterAudio, error) {
	chapters, err := s.chapters.ListChapters(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, ch := range chapters {
		ca, err := s.ChapterAudio(ctx, bookID, ch.ID)
		if errors.Is(err, ErrNoAudio) {
			s.logger.Warn("skipping chapter without audio", "book_id", bookID, "chapter_id", ch.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		p, err := s.artifacts.Path(ca.AudioRef)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, ErrNoAudio
	}

	ref := s.artifacts.NewRef(".mp3")
	outPath, err := s.artifacts.Path(ref)
	if err != nil {
		return nil, err
	}
	if err := s.merger.Merge(ctx, paths, s.bookGap, BookBitrate, outPath); err != nil {
		return nil, err
	}

	duration, err := s.merger.Duration(ctx, outPath)
	if err != nil {
		s.logger.Warn("could not probe merged book duration", "book_id", bookID, "error", err)
		duration = 0
	}

	s.logger.Info("merged book audio", "book_id", bookID, "segments", len(paths), "ref", ref)
	return &models.ChapterAudio{BookID: bookID, AudioRef: ref, DurationSecs: duration}, nil
}

func (s *Service) cachedPlaylist(ctx context.Context, bookID string) (*models.BookPlaylist, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, cache.PlaylistKey(bookID))
	if err != nil || !found {
		return nil, false
	}
	var playlist models.BookPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, false
	}
	return &playlist, true
}

func (s *Service) storePlaylist(ctx context.Context, bookID string, playlist *models.BookPlaylist) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(playlist)
	if err != nil {
		return
	}
	// Cache failures only cost us a recompute.
	if err := s.cache.Set(ctx, cache.PlaylistKey(bookID), data, playlistTTL); err != nil {
		s.logger.Warn("playlist cache write failed", "book_id", bookID, "error", err)
	}
}
