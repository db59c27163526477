package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/bookvoice/internal/api/response"
	"github.com/kiranshivaraju/bookvoice/internal/audio"
	"github.com/kiranshivaraju/bookvoice/internal/library"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// AudioLibrary is the audio-side interface the handlers depend on.
type AudioLibrary interface {
	ChapterAudio(ctx context.Context, bookID, chapterID string) (*models.ChapterAudio, error)
	AudioPath(ctx context.Context, bookID, chapterID string) (string, error)
	Playlist(ctx context.Context, bookID string) (*models.BookPlaylist, error)
	MergeBook(ctx context.Context, bookID string) (*models.ChapterAudio, error)
}

// NewChapterAudioHandler returns the handler for
// GET /api/v1/books/{bookID}/chapters/{chapterID}/audio. It streams the
// chapter's merged MP3.
func NewChapterAudioHandler(svc AudioLibrary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := chi.URLParam(r, "bookID")
		chapterID := chi.URLParam(r, "chapterID")

		path, err := svc.AudioPath(r.Context(), bookID, chapterID)
		if err != nil {
			if errors.Is(err, audio.ErrNoAudio) {
				response.Error(w, http.StatusNotFound, "NO_AUDIO",
					"The chapter has no synthesized audio", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeFile(w, r, path)
	}
}

// NewPlaylistHandler returns the handler for GET /api/v1/books/{bookID}/playlist.
func NewPlaylistHandler(svc AudioLibrary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := chi.URLParam(r, "bookID")

		playlist, err := svc.Playlist(r.Context(), bookID)
		if err != nil {
			if errors.Is(err, library.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "BOOK_NOT_FOUND",
					"The requested book does not exist", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, playlist)
	}
}

// NewMergeBookHandler returns the handler for
// POST /api/v1/books/{bookID}/audio/merge. The merge runs synchronously and
// returns the resulting artifact.
func NewMergeBookHandler(svc AudioLibrary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := chi.URLParam(r, "bookID")

		merged, err := svc.MergeBook(r.Context(), bookID)
		if err != nil {
			switch {
			case errors.Is(err, library.ErrNotFound):
				response.Error(w, http.StatusNotFound, "BOOK_NOT_FOUND",
					"The requested book does not exist", nil)
			case errors.Is(err, audio.ErrNoAudio):
				response.Error(w, http.StatusConflict, "NO_AUDIO",
					"No chapter of this book has synthesized audio yet", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, merged)
	}
}
