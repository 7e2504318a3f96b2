package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gwi.com/story-weaver/internal/core"
	"gwi.com/story-weaver/internal/store"
)

type APIHandler struct {
	manager *core.StoryManager
	logger  *zap.Logger
}

func NewAPIHandler(manager *core.StoryManager, logger *zap.Logger) *APIHandler {
	return &APIHandler{manager: manager, logger: logger.Named("api")}
}

type ErrorResponse struct {
	Error   string        `json:"error"`
	Details []string      `json:"details,omitempty"`
	Notices []core.Notice `json:"notices,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Notices: core.CollectedNotices(r.Context())}
	status := http.StatusInternalServerError

	var verr *core.ValidationError
	var nf *core.NotFoundError
	var serr *store.StoreError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		resp.Error = "Invalid input"
		resp.Details = verr.Problems
	case errors.As(err, &nf):
		status = http.StatusNotFound
		resp.Error = core.MessageStoryNotFound
	case errors.Is(err, core.ErrSuggestionsDisabled):
		status = http.StatusServiceUnavailable
		resp.Error = "Prompt suggestions are not enabled on this server"
	case errors.As(err, &serr):
		status = http.StatusBadGateway
		resp.Error = store.UserMessage(err)
	default:
		resp.Error = store.FallbackMessage
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &core.ValidationError{Problems: []string{"Invalid request body: " + err.Error()}}
	}
	return nil
}

type GenresResponse struct {
	Genres []string `json:"genres"`
}

func (h *APIHandler) ListGenresHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GenresResponse{Genres: core.Genres})
}

type StatisticsResponse struct {
	core.Statistics
	Notices []core.Notice `json:"notices,omitempty"`
}

func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.manager.GetStatistics(r.Context())
	writeJSON(w, http.StatusOK, StatisticsResponse{Statistics: stats, Notices: core.CollectedNotices(r.Context())})
}

type StoriesResponse struct {
	Stories []core.Story  `json:"stories"`
	Notices []core.Notice `json:"notices,omitempty"`
}

func (h *APIHandler) ListStoriesHandler(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimSpace(r.URL.Query().Get("genre"))
	if genre != "" && !core.IsGenre(genre) {
		h.writeError(w, r, &core.ValidationError{Problems: []string{
			"Genre must be one of: " + strings.Join(core.Genres, ", "),
		}})
		return
	}
	filters := core.StoryFilters{
		Genre: genre,
		Sort:  core.SortOrder(strings.TrimSpace(r.URL.Query().Get("sort"))),
	}

	stories := h.manager.GetStories(r.Context(), filters)
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories, Notices: core.CollectedNotices(r.Context())})
}

func (h *APIHandler) SearchStoriesHandler(w http.ResponseWriter, r *http.Request) {
	stories := h.manager.SearchStories(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, StoriesResponse{Stories: stories, Notices: core.CollectedNotices(r.Context())})
}

type CreatedResponse struct {
	ID            string        `json:"id"`
	ChapterNumber int           `json:"chapter_number,omitempty"`
	Notices       []core.Notice `json:"notices,omitempty"`
}

func (h *APIHandler) CreateStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req core.StoryInput
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := core.ValidateStoryInput(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.manager.CreateStory(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: id, Notices: core.CollectedNotices(r.Context())})
}

type StoryResponse struct {
	*core.StoryDetails
	Notices []core.Notice `json:"notices,omitempty"`
}

func (h *APIHandler) GetStoryHandler(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "storyID")

	details, err := h.manager.GetStoryWithChapters(r.Context(), storyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StoryResponse{StoryDetails: details, Notices: core.CollectedNotices(r.Context())})
}

func (h *APIHandler) CloseStoryHandler(w http.ResponseWriter, r *http.Request) {
	h.manager.CloseStory()
	w.WriteHeader(http.StatusNoContent)
}

// AddChapterHandler numbers the chapter itself when the request leaves
// chapter_number out.
func (h *APIHandler) AddChapterHandler(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "storyID")

	var req core.ChapterInput
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := core.ValidateChapterInput(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.ChapterNumber == 0 {
		next, err := h.manager.NextChapterNumber(r.Context(), storyID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.ChapterNumber = next
	}

	id, err := h.manager.AddChapter(r.Context(), storyID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedResponse{
		ID:            id,
		ChapterNumber: req.ChapterNumber,
		Notices:       core.CollectedNotices(r.Context()),
	})
}

type AcceptedResponse struct {
	Status  string        `json:"status"`
	Notices []core.Notice `json:"notices,omitempty"`
}

func (h *APIHandler) LikeStoryHandler(w http.ResponseWriter, r *http.Request) {
	h.manager.LikeStory(r.Context(), chi.URLParam(r, "storyID"))
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Notices: core.CollectedNotices(r.Context())})
}

type ReportRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandler) ReportStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		h.writeError(w, r, &core.ValidationError{Problems: []string{"Please give a reason for the report"}})
		return
	}

	h.manager.ReportStory(r.Context(), chi.URLParam(r, "storyID"), req.Reason)
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Notices: core.CollectedNotices(r.Context())})
}

type PromptSuggestionResponse struct {
	Prompt string `json:"prompt"`
}

func (h *APIHandler) PromptSuggestionHandler(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.manager.SuggestNextPrompt(r.Context(), chi.URLParam(r, "storyID"))
	if err != nil {
		var nf *core.NotFoundError
		var serr *store.StoreError
		if errors.Is(err, core.ErrSuggestionsDisabled) || errors.As(err, &nf) || errors.As(err, &serr) {
			h.writeError(w, r, err)
			return
		}
		h.logger.Error("Prompt suggestion failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "Could not suggest a prompt right now. Please try again later.",
			Notices: core.CollectedNotices(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusOK, PromptSuggestionResponse{Prompt: prompt})
}
