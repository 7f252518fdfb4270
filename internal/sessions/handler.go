package sessions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/pkg/handlers"
	"github.com/JaimeStill/mentor/pkg/routes"
)

// Handler provides the live session control endpoints.
type Handler struct {
	reg    *Registry
	logger *slog.Logger
}

// MuteRequest toggles spoken summaries.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// SubmitRequest carries typed text in place of speech.
type SubmitRequest struct {
	Text string `json:"text"`
}

// ResumeRequest names the device a session resumes on. An empty client id
// resumes on the device that created the session.
type ResumeRequest struct {
	ClientID string `json:"client_id"`
}

func NewHandler(reg *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		reg:    reg,
		logger: logger.With("handler", "sessions"),
	}
}

// Routes returns the route group for session control. Read-only history
// routes share the /sessions prefix.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create, Summary: "Start a live session on a connected device"},
			{Method: "GET", Pattern: "/{id}/live", Handler: h.Status, Summary: "Live state of a session"},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume, Summary: "Resume an unfinished session"},
			{Method: "POST", Pattern: "/{id}/check", Handler: h.Check, Summary: "Run an analysis now"},
			{Method: "POST", Pattern: "/{id}/finalize", Handler: h.Finalize, Summary: "Finalize a whiteboard session"},
			{Method: "POST", Pattern: "/{id}/dismiss", Handler: h.Dismiss, Summary: "Hide the visible feedback"},
			{Method: "POST", Pattern: "/{id}/mute", Handler: h.Mute, Summary: "Toggle spoken summaries"},
			{Method: "POST", Pattern: "/{id}/listen", Handler: h.Listen, Summary: "Start listening (tap to speak)"},
			{Method: "POST", Pattern: "/{id}/submit", Handler: h.Submit, Summary: "Submit typed input"},
			{Method: "POST", Pattern: "/{id}/ask", Handler: h.Ask, Summary: "Ask the student a question"},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.End, Summary: "End a live session"},
		},
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd history.CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	s, err := h.reg.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, s)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	s, err := h.reg.Status(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req ResumeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
	}

	s, err := h.reg.Resume(r.Context(), id, req.ClientID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
}

// Check triggers an analysis. The response reports whether one was
// scheduled; a check already in flight is not an error.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	scheduled, err := h.reg.Check(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, map[string]bool{"scheduled": scheduled})
}

func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	c, err := h.reg.Finalize(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, c)
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.reg.Dismiss)
}

func (h *Handler) Mute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req MuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.reg.SetMuted(r.Context(), id, req.Muted); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Listen(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.reg.Listen)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	if err := h.reg.Submit(id, req.Text); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.reg.Ask)
}

// End closes the session. The response reports whether conversation turns
// were written to history.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	flushed, err := h.reg.End(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]bool{"flushed": flushed})
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) error) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if err := fn(id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid session ID"))
		return uuid.Nil, false
	}
	return id, true
}
