package sessions_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/conversation"
	"github.com/JaimeStill/mentor/internal/history"
	"github.com/JaimeStill/mentor/internal/sessions"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
)

func setupMux(h *sessions.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func do(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreate(t *testing.T) {
	f := newFixture(t)
	mux := setupMux(sessions.NewHandler(f.reg, discard()))

	tests := []struct {
		name string
		body any
		want int
	}{
		{"whiteboard", whiteboardCmd(), http.StatusCreated},
		{"offline client", map[string]any{"client_id": "tv", "kind": "conversation"}, http.StatusConflict},
		{"invalid kind", map[string]any{"client_id": "pad", "kind": "video"}, http.StatusBadRequest},
		{"missing problem", map[string]any{"client_id": "pad", "kind": "whiteboard"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, http.MethodPost, "/sessions", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandlerActions(t *testing.T) {
	f := newFixture(t)
	mux := setupMux(sessions.NewHandler(f.reg, discard()))

	rec := do(mux, http.MethodPost, "/sessions", whiteboardCmd())
	var s history.Session
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	base := "/sessions/" + s.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"live status", http.MethodGet, base + "/live", nil, http.StatusOK},
		{"check", http.MethodPost, base + "/check", nil, http.StatusAccepted},
		{"dismiss", http.MethodPost, base + "/dismiss", nil, http.StatusAccepted},
		{"mute", http.MethodPost, base + "/mute", sessions.MuteRequest{Muted: true}, http.StatusNoContent},
		{"listen on whiteboard", http.MethodPost, base + "/listen", nil, http.StatusBadRequest},
		{"bad id", http.MethodPost, "/sessions/nope/check", nil, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/sessions/" + uuid.NewString() + "/check", nil, http.StatusConflict},
		{"end", http.MethodDelete, base, nil, http.StatusOK},
		{"status after end", http.MethodGet, base + "/live", nil, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandlerSubmitValidation(t *testing.T) {
	f := newFixture(t)
	mux := setupMux(sessions.NewHandler(f.reg, discard()))

	rec := do(mux, http.MethodPost, "/sessions", history.CreateCommand{ClientID: "pad", Kind: history.KindConversation})
	var s history.Session
	json.NewDecoder(rec.Body).Decode(&s)

	rec = do(mux, http.MethodPost, "/sessions/"+s.ID.String()+"/submit", sessions.SubmitRequest{Text: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty submit: status = %d", rec.Code)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sessions.ErrWrongKind, http.StatusBadRequest},
		{turns.ErrEmptyInput, http.StatusBadRequest},
		{sessions.ErrClientOffline, http.StatusConflict},
		{sessions.ErrNotLive, http.StatusConflict},
		{turns.ErrBusy, http.StatusConflict},
		{conversation.ErrAlreadyAsked, http.StatusConflict},
		{whiteboard.ErrFinalized, http.StatusConflict},
		{history.ErrNotFound, http.StatusNotFound},
		{history.ErrInvalidKind, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := sessions.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
