package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/bookvoice/internal/api/middleware"
	"github.com/kiranshivaraju/bookvoice/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	TranslateHandler    http.HandlerFunc
	SynthesizeHandler   http.HandlerFunc
	JobStatusHandler    http.HandlerFunc
	CancelJobHandler    http.HandlerFunc
	ChapterAudioHandler http.HandlerFunc
	PlaylistHandler     http.HandlerFunc
	MergeBookHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Route("/api/v1/books/{bookID}", func(r chi.Router) {
			r.Post("/chapters/{chapterID}/translate", orNotImplemented(deps.TranslateHandler))
			r.Post("/chapters/{chapterID}/audio", orNotImplemented(deps.SynthesizeHandler))
			r.Get("/chapters/{chapterID}/audio", orNotImplemented(deps.ChapterAudioHandler))
			r.Get("/playlist", orNotImplemented(deps.PlaylistHandler))
			r.Post("/audio/merge", orNotImplemented(deps.MergeBookHandler))
		})

		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.JobStatusHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.CancelJobHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
