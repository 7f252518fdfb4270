package prompts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/pkg/handlers"
	"github.com/JaimeStill/mentor/pkg/pagination"
	"github.com/JaimeStill/mentor/pkg/routes"
)

// Handler provides HTTP endpoints for prompt operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// Origin tells whether a stage runs on its default instructions or on an
// active override.
type Origin string

const (
	SourceDefault  Origin = "default"
	SourceOverride Origin = "override"
)

// StageContent is the response type for stage-scoped content endpoints.
type StageContent struct {
	Stage   Stage  `json:"stage"`
	Source  Origin `json:"source,omitempty"`
	Content string `json:"content"`
}

// StageInfo describes a stage and the override it currently runs on.
type StageInfo struct {
	Stage    Stage   `json:"stage"`
	Purpose  string  `json:"purpose"`
	Source   Origin  `json:"source"`
	Override *Prompt `json:"override,omitempty"`
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "prompts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for prompt endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/prompts",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, Summary: "List prompt overrides"},
			{Method: "GET", Pattern: "/stages", Handler: h.Stages, Summary: "Reasoning stages and their active overrides"},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, Summary: "Find a prompt override"},
			{Method: "GET", Pattern: "/stages/{stage}/instructions", Handler: h.Instructions, Summary: "Effective instructions of a stage"},
			{Method: "GET", Pattern: "/stages/{stage}/spec", Handler: h.Spec, Summary: "Response contract of a stage"},
			{Method: "GET", Pattern: "/stages/{stage}/preview", Handler: h.Preview, Summary: "System instruction sent to the reasoning service"},
			{Method: "POST", Pattern: "", Handler: h.Create, Summary: "Create a prompt override, optionally activating it"},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update, Summary: "Update a prompt override"},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, Summary: "Delete a prompt override"},
			{Method: "POST", Pattern: "/search", Handler: h.Search, Summary: "Search prompt overrides"},
			{Method: "POST", Pattern: "/{id}/activate", Handler: h.Activate, Summary: "Make a prompt the active override of its stage"},
			{Method: "POST", Pattern: "/{id}/deactivate", Handler: h.Deactivate, Summary: "Return a stage to its default instructions"},
		},
	}
}

// List returns a paginated list of prompts with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	h.list(r.Context(), w, page, FiltersFromQuery(r.URL.Query()))
}

// Search accepts a JSON body with pagination and filter criteria.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	req.PageRequest.Normalize(h.pagination)
	h.list(r.Context(), w, req.PageRequest, req.Filters)
}

func (h *Handler) list(ctx context.Context, w http.ResponseWriter, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.List(ctx, page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Stages lists every stage with its purpose and active override, if any.
func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	active := true
	result, err := h.sys.List(r.Context(), pagination.PageRequest{Page: 1, PageSize: len(stages)}, Filters{Active: &active})
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	overrides := make(map[Stage]Prompt, len(result.Data))
	for _, p := range result.Data {
		overrides[p.Stage] = p
	}

	infos := make([]StageInfo, 0, len(stages))
	for _, s := range stages {
		info := StageInfo{Stage: s, Purpose: Purpose(s), Source: SourceDefault}
		if p, ok := overrides[s]; ok {
			info.Source = SourceOverride
			info.Override = &p
		}
		infos = append(infos, info)
	}
	handlers.RespondJSON(w, http.StatusOK, infos)
}

// Find returns a single prompt by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.promptID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Find(r.Context(), id))
}

// Instructions returns the effective instructions of a stage and whether
// they come from an override.
func (h *Handler) Instructions(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}

	text, err := h.sys.Instructions(r.Context(), stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	source := SourceOverride
	if def, _ := Instructions(stage); text == def {
		source = SourceDefault
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Source: source, Content: text})
}

// Spec returns the response contract of a stage. It is never overridden.
func (h *Handler) Spec(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}

	text, err := Spec(stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

// Preview returns the composed system instruction of a stage exactly as the
// reasoning adapter sends it, without per-session sections.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stage(w, r)
	if !ok {
		return
	}

	text, err := Compose(r.Context(), h.sys, stage)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, StageContent{Stage: stage, Content: text})
}

// Create stores a new override. With ?activate=true the override replaces
// the stage's active one in the same request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}

	activate, _ := strconv.ParseBool(r.URL.Query().Get("activate"))

	prompt, err := h.sys.Create(r.Context(), cmd)
	if err == nil && activate {
		prompt, err = h.sys.Activate(r.Context(), prompt.ID)
	}
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if activate {
		h.logger.Info("override activated", "stage", prompt.Stage, "prompt", prompt.ID)
	}
	handlers.RespondJSON(w, http.StatusCreated, prompt)
}

// Update replaces the fields of an existing override.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.promptID(w, r)
	if !ok {
		return
	}
	cmd, ok := h.command(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Update(r.Context(), id, cmd))
}

// Delete removes a prompt by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.promptID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate sets a prompt as the active override for its stage,
// atomically deactivating any currently active prompt for the same stage.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.promptID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Activate(r.Context(), id))
}

// Deactivate clears the active flag so the stage falls back to its default.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.promptID(w, r)
	if !ok {
		return
	}
	h.respond(w, http.StatusOK)(h.sys.Deactivate(r.Context(), id))
}

func (h *Handler) respond(w http.ResponseWriter, status int) func(*Prompt, error) {
	return func(p *Prompt, err error) {
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		handlers.RespondJSON(w, status, p)
	}
}

func (h *Handler) promptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request) (Stage, bool) {
	stage, err := ParseStage(r.PathValue("stage"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return "", false
	}
	return stage, true
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) (Command, bool) {
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return cmd, false
	}
	if err := cmd.validate(); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return cmd, false
	}
	return cmd, true
}
