package gateway_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/gateway"
	"github.com/JaimeStill/mentor/pkg/middleware"
)

type harness struct {
	hub    *gateway.Hub
	server *httptest.Server
}

func newHarness(t *testing.T, cors *middleware.CORSConfig) *harness {
	t.Helper()

	cfg := &gateway.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	cfg.CaptureTimeout = "2s"
	if cors == nil {
		cors = &middleware.CORSConfig{}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := gateway.NewHub(logger)
	srv := httptest.NewServer(gateway.NewHandler(hub, cfg, cors, logger))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &harness{hub: hub, server: srv}
}

func (h *harness) url(client string) string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?client=" + client
}

// connect dials as a browser and waits until the hub has registered it.
func (h *harness) connect(t *testing.T, client string) (*websocket.Conn, *gateway.Client) {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(h.url(client), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var c *gateway.Client
	eventually(t, func() bool {
		var ok bool
		c, ok = h.hub.Client(client)
		return ok
	})
	return conn, c
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func send(t *testing.T, conn *websocket.Conn, typ gateway.MessageType, sessionID *uuid.UUID, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	env := gateway.Envelope{Type: typ, SessionID: sessionID, Payload: raw}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn, want gateway.MessageType) gateway.Envelope {
	t.Helper()
	env, err := next(conn, want)
	if err != nil {
		t.Fatalf("read waiting for %s: %v", want, err)
	}
	return env
}

// next skips frames until one of type want arrives.
func next(conn *websocket.Conn, want gateway.MessageType) (gateway.Envelope, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env gateway.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return env, err
		}
		if env.Type == want {
			return env, nil
		}
	}
}

// answerCapture plays the browser side of one capture request.
func answerCapture(t *testing.T, conn *websocket.Conn, result map[string]string) {
	env, err := next(conn, gateway.MsgCapture)
	if err != nil {
		t.Errorf("waiting for capture: %v", err)
		return
	}
	var req struct {
		RequestID string `json:"request_id"`
	}
	json.Unmarshal(env.Payload, &req)
	result["request_id"] = req.RequestID

	raw, _ := json.Marshal(result)
	reply := gateway.Envelope{Type: gateway.MsgCaptureResult, SessionID: env.SessionID, Payload: raw}
	if err := conn.WriteJSON(reply); err != nil {
		t.Errorf("write capture result: %v", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	sid := uuid.New()
	binding := client.Bind(sid)

	go answerCapture(t, conn, map[string]string{
		"data_url": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels")),
	})

	img, err := binding.Capture(context.Background(), capability.CaptureFull)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if string(img.Data) != "pixels" || img.MIME != "image/png" {
		t.Errorf("image = %q %q", img.Data, img.MIME)
	}
}

func TestCaptureClientError(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	binding := client.Bind(uuid.New())

	go answerCapture(t, conn, map[string]string{"error": "canvas tainted"})

	_, err := binding.Capture(context.Background(), capability.CaptureFast)
	if !errors.Is(err, capability.ErrCapture) {
		t.Errorf("err = %v, want ErrCapture", err)
	}
}

func TestCaptureWithoutPixels(t *testing.T) {
	tests := []struct {
		name    string
		dataURL string
	}{
		{"missing", ""},
		{"zero-size canvas", "data:,"},
		{"empty png", "data:image/png;base64,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			conn, client := h.connect(t, "pad")
			binding := client.Bind(uuid.New())

			go answerCapture(t, conn, map[string]string{"data_url": tt.dataURL})

			img, err := binding.Capture(context.Background(), capability.CaptureFast)
			if !errors.Is(err, capability.ErrCapture) {
				t.Errorf("err = %v, want ErrCapture", err)
			}
			if !img.Empty() {
				t.Errorf("image = %d bytes, want none", len(img.Data))
			}
		})
	}
}

func TestElementsReported(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	sid := uuid.New()
	binding := client.Bind(sid)

	send(t, conn, gateway.MsgElements, &sid, map[string]any{
		"elements": []capability.Element{{ID: "a", Revision: 1}, {ID: "b", Revision: 3}},
	})

	eventually(t, func() bool {
		els, err := binding.Elements(context.Background())
		return err == nil && len(els) == 2
	})

	other, _ := client.Bind(uuid.New()).Elements(context.Background())
	if len(other) != 0 {
		t.Errorf("elements leaked across sessions: %v", other)
	}
}

func TestListenStream(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	sid := uuid.New()
	binding := client.Bind(sid)

	if _, err := binding.Listen(context.Background()); !errors.Is(err, capability.ErrUnavailable) {
		t.Fatalf("listen before capabilities: err = %v", err)
	}

	send(t, conn, gateway.MsgCapabilities, nil, capability.Availability{SpeechInput: true})
	eventually(t, func() bool { return client.Availability().SpeechInput })

	events, err := binding.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	receive(t, conn, gateway.MsgListenStart)
	send(t, conn, gateway.MsgTranscript, &sid, map[string]string{"kind": "interim", "text": "hel"})
	send(t, conn, gateway.MsgTranscript, &sid, map[string]string{"kind": "final", "text": "hello"})
	send(t, conn, gateway.MsgTranscript, &sid, map[string]string{"kind": "error", "error": "no-speech"})

	var got []capability.TranscriptEvent
	for ev := range events {
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("events = %+v", got)
	}
	if got[1].Kind != capability.EventFinal || got[1].Text != "hello" {
		t.Errorf("final event = %+v", got[1])
	}
	if !errors.Is(got[2].Err, capability.ErrNoSpeech) {
		t.Errorf("error event = %+v", got[2])
	}
}

func TestListenAbort(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	sid := uuid.New()
	binding := client.Bind(sid)

	send(t, conn, gateway.MsgCapabilities, nil, capability.Availability{SpeechInput: true})
	eventually(t, func() bool { return client.Availability().SpeechInput })

	ctx, cancel := context.WithCancel(context.Background())
	events, err := binding.Listen(ctx)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	receive(t, conn, gateway.MsgListenStart)

	cancel()
	receive(t, conn, gateway.MsgListenAbort)

	if _, open := <-events; open {
		t.Error("stream should be closed after abort")
	}
}

func TestPlayAcknowledged(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")

	done := make(chan error, 1)
	go func() {
		done <- client.Play(context.Background(), capability.Utterance{ID: "u1", Text: "try again"})
	}()

	env := receive(t, conn, gateway.MsgSpeak)
	var p struct {
		UtteranceID string `json:"utterance_id"`
		Text        string `json:"text"`
	}
	json.Unmarshal(env.Payload, &p)
	if p.UtteranceID != "u1" || p.Text != "try again" {
		t.Errorf("speak payload = %+v", p)
	}

	send(t, conn, gateway.MsgSpeechEnded, nil, map[string]string{"utterance_id": "u1"})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("play: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("play did not return")
	}
}

func TestAudioFollowsCapabilities(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")

	if client.Audio().Available() {
		t.Fatal("audio should be unavailable before capabilities are reported")
	}

	send(t, conn, gateway.MsgCapabilities, nil, capability.Availability{SpeechOutput: true})
	eventually(t, func() bool { return client.Audio().Available() })
}

func TestUIMessages(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	sid := uuid.New()
	binding := client.Bind(sid)

	binding.Countdown(4500 * time.Millisecond)
	env := receive(t, conn, gateway.MsgCountdown)

	if env.SessionID == nil || *env.SessionID != sid {
		t.Errorf("session id = %v", env.SessionID)
	}
	var p struct {
		RemainingMS int64 `json:"remaining_ms"`
	}
	json.Unmarshal(env.Payload, &p)
	if p.RemainingMS != 4500 {
		t.Errorf("remaining = %d", p.RemainingMS)
	}
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, nil)
	conn, client := h.connect(t, "pad")
	conn.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client not closed after disconnect")
	}

	eventually(t, func() bool {
		_, ok := h.hub.Client("pad")
		return !ok
	})

	err := client.Play(context.Background(), capability.Utterance{ID: "late", Text: "x"})
	if !errors.Is(err, capability.ErrUnavailable) {
		t.Errorf("play after disconnect: err = %v", err)
	}
}

func TestReconnectReplaces(t *testing.T) {
	h := newHarness(t, nil)
	_, first := h.connect(t, "pad")

	conn2, _, err := websocket.DefaultDialer.Dial(h.url("pad"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn2.Close()

	select {
	case <-first.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first connection not closed")
	}

	eventually(t, func() bool {
		c, ok := h.hub.Client("pad")
		return ok && c != first
	})
}

func TestHandshakeRejections(t *testing.T) {
	h := newHarness(t, &middleware.CORSConfig{Enabled: true, Origins: []string{"https://tutor.example"}})

	resp, err := http.Get(h.server.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing client: status = %d", resp.StatusCode)
	}

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err = websocket.DefaultDialer.Dial(h.url("pad"), header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("bad origin response = %v", resp)
	}

	header = http.Header{"Origin": {"https://tutor.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(h.url("pad"), header)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close()
}

func TestConfigFinalize(t *testing.T) {
	cfg := gateway.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.ReadLimit() != 8<<20 {
		t.Errorf("read limit = %d", cfg.ReadLimit())
	}
	if cfg.PingPeriod() >= cfg.PongWaitDuration() {
		t.Error("ping period must be shorter than pong wait")
	}

	bad := gateway.Config{MaxMessageSize: "lots"}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error for invalid size")
	}
}
