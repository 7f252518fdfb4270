package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/JaimeStill/mentor/internal/audio"
	"github.com/JaimeStill/mentor/internal/capability"
)

// ErrClosed is returned when a connection has gone away.
var ErrClosed = errors.New("client connection closed")

// Client is one browser connection. It owns the client's audio output and
// routes inbound messages to the sessions bound to it.
type Client struct {
	id     string
	conn   *websocket.Conn
	cfg    *Config
	hub    *Hub
	logger *slog.Logger
	audio  *audio.Manager

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	availability capability.Availability
	elements     map[uuid.UUID][]capability.Element
	captures     map[string]chan captureResultPayload
	listeners    map[uuid.UUID]*listener
	plays        map[string]chan error
}

type listener struct {
	events   chan capability.TranscriptEvent
	finished chan struct{}
}

func newClient(id string, conn *websocket.Conn, hub *Hub, cfg *Config, logger *slog.Logger) *Client {
	c := &Client{
		id:        id,
		conn:      conn,
		cfg:       cfg,
		hub:       hub,
		logger:    logger.With("client", id),
		send:      make(chan []byte, cfg.SendBuffer),
		done:      make(chan struct{}),
		elements:  make(map[uuid.UUID][]capability.Element),
		captures:  make(map[string]chan captureResultPayload),
		listeners: make(map[uuid.UUID]*listener),
		plays:     make(map[string]chan error),
	}
	c.audio = audio.New(c, nil, c.logger)
	c.audio.SetAvailable(false)
	return c
}

// ID returns the client id the connection registered with.
func (c *Client) ID() string {
	return c.id
}

// Audio returns the client's output manager. Every session bound to the
// client speaks through it.
func (c *Client) Audio() *audio.Manager {
	return c.audio
}

// Availability returns the capabilities the client last reported.
func (c *Client) Availability() capability.Availability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availability
}

// Done is closed when the connection goes away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Bind returns the per-session view of this connection.
func (c *Client) Bind(sessionID uuid.UUID) *Binding {
	return &Binding{client: c, sessionID: sessionID}
}

// Close terminates the connection. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Play sends an utterance to the client and waits for its speech_ended
// acknowledgement. Cancelling ctx tells the client to stop.
func (c *Client) Play(ctx context.Context, u capability.Utterance) error {
	ended := make(chan error, 1)

	c.mu.Lock()
	c.plays[u.ID] = ended
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.plays, u.ID)
		c.mu.Unlock()
	}()

	if err := c.enqueue(MsgSpeak, nil, speakPayload{UtteranceID: u.ID, Text: u.Text}); err != nil {
		return fmt.Errorf("%w: %v", capability.ErrUnavailable, err)
	}

	select {
	case err := <-ended:
		return err
	case <-ctx.Done():
		c.enqueue(MsgSpeakStop, nil, speakPayload{UtteranceID: u.ID})
		return ctx.Err()
	case <-c.done:
		return capability.ErrUnavailable
	}
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(c.cfg.ReadLimit())
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWaitDuration()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWaitDuration()))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("malformed message", "error", err)
			continue
		}
		if err := c.dispatch(env); err != nil {
			c.logger.Warn("message rejected", "type", env.Type, "error", err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWaitDuration()))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWaitDuration()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWaitDuration()),
			)
			return
		}
	}
}

func (c *Client) teardown() {
	c.Close()
	c.audio.Close()

	c.mu.Lock()
	for id, ch := range c.captures {
		ch <- captureResultPayload{RequestID: id, Error: ErrClosed.Error()}
		delete(c.captures, id)
	}
	sessions := make([]uuid.UUID, 0, len(c.listeners))
	for sid := range c.listeners {
		sessions = append(sessions, sid)
	}
	c.mu.Unlock()

	for _, sid := range sessions {
		c.endListener(sid, nil, &capability.TranscriptEvent{
			Kind: capability.EventError,
			Err:  capability.ErrUnavailable,
		})
	}

	c.hub.unregister(c)
}

func (c *Client) dispatch(env Envelope) error {
	switch env.Type {
	case MsgCapabilities:
		var a capability.Availability
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return err
		}
		c.mu.Lock()
		c.availability = a
		c.mu.Unlock()
		c.audio.SetAvailable(a.SpeechOutput)
		c.logger.Info("capabilities reported",
			"speech_input", a.SpeechInput,
			"speech_output", a.SpeechOutput,
			"needs_gesture", a.NeedsGesture,
		)

	case MsgElements:
		if env.SessionID == nil {
			return errors.New("elements without session_id")
		}
		var p elementsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		c.mu.Lock()
		c.elements[*env.SessionID] = p.Elements
		c.mu.Unlock()

	case MsgCaptureResult:
		var p captureResultPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		c.mu.Lock()
		ch, ok := c.captures[p.RequestID]
		delete(c.captures, p.RequestID)
		c.mu.Unlock()
		if !ok {
			return fmt.Errorf("unknown capture request %q", p.RequestID)
		}
		ch <- p

	case MsgTranscript:
		if env.SessionID == nil {
			return errors.New("transcript without session_id")
		}
		var p transcriptPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		c.deliver(*env.SessionID, transcriptEvent(p))

	case MsgSpeechEnded:
		var p speechEndedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		c.mu.Lock()
		ch, ok := c.plays[p.UtteranceID]
		c.mu.Unlock()
		if !ok {
			return nil
		}
		var err error
		if p.Error != "" {
			err = fmt.Errorf("speech output: %s", p.Error)
		}
		select {
		case ch <- err:
		default:
		}

	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
	return nil
}

func transcriptEvent(p transcriptPayload) capability.TranscriptEvent {
	ev := capability.TranscriptEvent{Kind: p.Kind, Text: p.Text}
	if p.Kind != capability.EventError {
		return ev
	}

	switch p.Error {
	case speechErrNoSpeech:
		ev.Err = capability.ErrNoSpeech
	case speechErrAborted:
		ev.Err = capability.ErrStopped
	default:
		ev.Err = fmt.Errorf("%w: speech input %s", capability.ErrUnavailable, p.Error)
	}
	return ev
}

// enqueue never blocks. Frames are dropped when the send buffer is full.
func (c *Client) enqueue(t MessageType, sessionID *uuid.UUID, payload any) error {
	data, err := encode(t, sessionID, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, message dropped", "type", t)
		return fmt.Errorf("send buffer full")
	}
}

func (c *Client) capture(ctx context.Context, sessionID uuid.UUID, mode capability.CaptureMode) (captureResultPayload, error) {
	requestID := uuid.NewString()
	result := make(chan captureResultPayload, 1)

	c.mu.Lock()
	c.captures[requestID] = result
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.captures, requestID)
		c.mu.Unlock()
	}

	if err := c.enqueue(MsgCapture, &sessionID, capturePayload{RequestID: requestID, Mode: mode}); err != nil {
		forget()
		return captureResultPayload{}, err
	}

	timer := time.NewTimer(c.cfg.CaptureTimeoutDuration())
	defer timer.Stop()

	select {
	case p := <-result:
		return p, nil
	case <-ctx.Done():
		forget()
		return captureResultPayload{}, ctx.Err()
	case <-timer.C:
		forget()
		return captureResultPayload{}, fmt.Errorf("capture timed out after %s", c.cfg.CaptureTimeout)
	}
}

func (c *Client) listen(ctx context.Context, sessionID uuid.UUID) (<-chan capability.TranscriptEvent, error) {
	if !c.Availability().SpeechInput {
		return nil, capability.ErrUnavailable
	}

	l := &listener{
		events:   make(chan capability.TranscriptEvent, 64),
		finished: make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.listeners[sessionID]
	c.listeners[sessionID] = l
	c.mu.Unlock()

	if prev != nil {
		c.closeListener(prev, nil)
	}

	if err := c.enqueue(MsgListenStart, &sessionID, nil); err != nil {
		c.endListener(sessionID, l, nil)
		return nil, fmt.Errorf("%w: %v", capability.ErrUnavailable, err)
	}

	go func() {
		select {
		case <-ctx.Done():
			if c.endListener(sessionID, l, nil) {
				c.enqueue(MsgListenAbort, &sessionID, nil)
			}
		case <-l.finished:
		}
	}()

	return l.events, nil
}

// deliver routes a transcript event to the session's open stream. End and
// error events close the stream.
func (c *Client) deliver(sessionID uuid.UUID, ev capability.TranscriptEvent) {
	if ev.Kind == capability.EventEnd || ev.Kind == capability.EventError {
		c.endListener(sessionID, nil, &ev)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.listeners[sessionID]
	if !ok {
		return
	}
	select {
	case l.events <- ev:
	default:
		c.logger.Warn("transcript dropped", "session", sessionID, "kind", ev.Kind)
	}
}

// endListener closes the session's stream, optionally after a final event.
// When want is set, only that stream is closed. It reports whether a stream
// was closed.
func (c *Client) endListener(sessionID uuid.UUID, want *listener, final *capability.TranscriptEvent) bool {
	c.mu.Lock()
	l, ok := c.listeners[sessionID]
	if !ok || (want != nil && l != want) {
		c.mu.Unlock()
		return false
	}
	delete(c.listeners, sessionID)
	c.mu.Unlock()

	c.closeListener(l, final)
	return true
}

func (c *Client) closeListener(l *listener, final *capability.TranscriptEvent) {
	if final != nil {
		select {
		case l.events <- *final:
		default:
		}
	}
	close(l.events)
	close(l.finished)
}

func (c *Client) elementsFor(sessionID uuid.UUID) []capability.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capability.Element{}, c.elements[sessionID]...)
}

func (c *Client) forget(sessionID uuid.UUID) {
	c.endListener(sessionID, nil, nil)

	c.mu.Lock()
	delete(c.elements, sessionID)
	c.mu.Unlock()
}
