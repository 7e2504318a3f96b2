package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(ZapLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(CollectNotices)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/genres", apiHandler.ListGenresHandler)
		r.Get("/statistics", apiHandler.StatisticsHandler)

		r.Route("/stories", func(r chi.Router) {
			r.Get("/", apiHandler.ListStoriesHandler)
			r.Post("/", apiHandler.CreateStoryHandler)
			r.Get("/search", apiHandler.SearchStoriesHandler)
			r.Delete("/current", apiHandler.CloseStoryHandler)

			r.Get("/{storyID}", apiHandler.GetStoryHandler)
			r.Post("/{storyID}/chapters", apiHandler.AddChapterHandler)
			r.Post("/{storyID}/like", apiHandler.LikeStoryHandler)
			r.Post("/{storyID}/report", apiHandler.ReportStoryHandler)
			r.Get("/{storyID}/prompt-suggestion", apiHandler.PromptSuggestionHandler)
		})
	})

	return r
}
