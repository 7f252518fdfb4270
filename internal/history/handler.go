package history

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/pkg/handlers"
	"github.com/JaimeStill/mentor/pkg/pagination"
	"github.com/JaimeStill/mentor/pkg/routes"
	"github.com/JaimeStill/mentor/pkg/storage"
)

// Handler serves read-only history endpoints under /sessions.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "history"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for history endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Summary: "List recorded sessions"},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, Summary: "Find a recorded session"},
			{Method: "GET", Pattern: "/{id}/verdicts", Handler: h.Verdicts, Summary: "Verdicts of a session"},
			{Method: "GET", Pattern: "/{id}/turns", Handler: h.Turns, Summary: "Conversation turns of a session"},
			{Method: "GET", Pattern: "/{id}/completion", Handler: h.Completion, Summary: "Completion record of a session"},
			{Method: "GET", Pattern: "/{id}/snapshot", Handler: h.Snapshot, Summary: "Final snapshot image of a session"},
		},
	}
}

// List returns a page of sessions filtered by client, kind and creation window.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListSessions(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	s, err := h.sys.FindSession(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

func (h *Handler) Verdicts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	verdicts, err := h.sys.ListVerdicts(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, verdicts)
}

func (h *Handler) Turns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	turns, err := h.sys.ListTurns(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) Completion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	c, err := h.sys.FindCompletion(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

// Snapshot streams the final whiteboard image recorded at completion.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	obj, err := h.sys.Snapshot(r.Context(), id)
	if err != nil {
		status := MapHTTPStatus(err)
		if errors.Is(err, storage.ErrNotFound) {
			status = storage.MapHTTPStatus(err)
		}
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid session ID"))
		return uuid.Nil, false
	}
	return id, true
}
