// Package handler implements the HTTP handlers. Each handler depends on a
// narrow interface so tests can drive it without the full service stack.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/bookvoice/internal/api/response"
	"github.com/kiranshivaraju/bookvoice/internal/library"
	"github.com/kiranshivaraju/bookvoice/internal/pipeline"
	"github.com/kiranshivaraju/bookvoice/internal/store"
	"github.com/kiranshivaraju/bookvoice/pkg/models"
)

// Pipeline is the job-side interface the handlers depend on.
type Pipeline interface {
	EnqueueTranslation(ctx context.Context, bookID, chapterID string) (*models.Job, bool, error)
	EnqueueSynthesis(ctx context.Context, bookID, chapterID string, translationID *uuid.UUID) (*models.Job, bool, error)
	Status(ctx context.Context, jobID uuid.UUID) (*models.JobStatus, error)
	Cancel(ctx context.Context, jobID uuid.UUID) error
}

// enqueueResponse is returned by both enqueue endpoints. Duplicate enqueues
// return the already-active job's id with the same shape.
type enqueueResponse struct {
	JobID     uuid.UUID      `json:"job_id"`
	Kind      models.JobKind `json:"kind"`
	Status    string         `json:"status"`
	BookID    string         `json:"book_id"`
	ChapterID string         `json:"chapter_id"`
}

// NewTranslateHandler returns the handler for
// POST /api/v1/books/{bookID}/chapters/{chapterID}/translate.
func NewTranslateHandler(svc Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := chi.URLParam(r, "bookID")
		chapterID := chi.URLParam(r, "chapterID")

		job, _, err := svc.EnqueueTranslation(r.Context(), bookID, chapterID)
		if err != nil {
			switch {
			case errors.Is(err, library.ErrNotFound):
				response.Error(w, http.StatusNotFound, "CHAPTER_NOT_FOUND",
					"The requested chapter does not exist", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, enqueueResponse{
			JobID:     job.ID,
			Kind:      job.Kind,
			Status:    job.Status,
			BookID:    job.BookID,
			ChapterID: job.ChapterID,
		})
	}
}

// NewSynthesizeHandler returns the handler for
// POST /api/v1/books/{bookID}/chapters/{chapterID}/audio. The body is
// optional JSON: {"translation_id": "<uuid>"} pins a specific translation;
// without it the chapter's latest completed translation is used.
func NewSynthesizeHandler(svc Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID := chi.URLParam(r, "bookID")
		chapterID := chi.URLParam(r, "chapterID")

		var req struct {
			TranslationID *uuid.UUID `json:"translation_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		job, _, err := svc.EnqueueSynthesis(r.Context(), bookID, chapterID, req.TranslationID)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrTranslationNotReady):
				response.Error(w, http.StatusConflict, "TRANSLATION_NOT_READY",
					"The chapter has no completed translation to synthesize", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "TRANSLATION_NOT_FOUND",
					"The referenced translation job does not exist for this chapter", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, enqueueResponse{
			JobID:     job.ID,
			Kind:      job.Kind,
			Status:    job.Status,
			BookID:    job.BookID,
			ChapterID: job.ChapterID,
		})
	}
}

// NewJobStatusHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewJobStatusHandler(svc Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		snap, err := svc.Status(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, snap)
	}
}

// NewCancelJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
func NewCancelJobHandler(svc Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		if err := svc.Cancel(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			case errors.Is(err, store.ErrJobNotActive):
				response.Error(w, http.StatusConflict, "JOB_ALREADY_TERMINAL",
					"The job has already completed or failed", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, map[string]any{
			"job_id": jobID,
			"status": models.JobStatusFailed,
			"error":  models.ErrMsgCancelled,
		})
	}
}
