package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
)

// MessageType names a websocket message.
type MessageType string

// Client to server.
const (
	MsgCapabilities  MessageType = "capabilities"
	MsgElements      MessageType = "elements"
	MsgCaptureResult MessageType = "capture_result"
	MsgTranscript    MessageType = "transcript"
	MsgSpeechEnded   MessageType = "speech_ended"
)

// Server to client.
const (
	MsgCapture        MessageType = "capture"
	MsgListenStart    MessageType = "listen_start"
	MsgListenAbort    MessageType = "listen_abort"
	MsgSpeak          MessageType = "speak"
	MsgSpeakStop      MessageType = "speak_stop"
	MsgFeedbackShow   MessageType = "feedback_show"
	MsgFeedbackHide   MessageType = "feedback_hide"
	MsgHighlightShow  MessageType = "highlight_show"
	MsgHighlightClear MessageType = "highlight_clear"
	MsgCountdown      MessageType = "countdown"
	MsgFinalized      MessageType = "finalized"
	MsgPhase          MessageType = "phase"
	MsgInterim        MessageType = "interim"
	MsgReply          MessageType = "reply"
	MsgTapToSpeak     MessageType = "tap_to_speak"
	MsgManualInput    MessageType = "manual_input"
	MsgError          MessageType = "error"
	MsgSessionClosed  MessageType = "session_closed"
)

// Envelope is the websocket frame format in both directions. SessionID is
// omitted for connection-level messages.
type Envelope struct {
	Type      MessageType     `json:"type"`
	SessionID *uuid.UUID      `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type elementsPayload struct {
	Elements []capability.Element `json:"elements"`
}

type capturePayload struct {
	RequestID string                 `json:"request_id"`
	Mode      capability.CaptureMode `json:"mode"`
}

type captureResultPayload struct {
	RequestID string `json:"request_id"`
	DataURL   string `json:"data_url"`
	Error     string `json:"error,omitempty"`
}

type transcriptPayload struct {
	Kind  capability.EventKind `json:"kind"`
	Text  string               `json:"text,omitempty"`
	Error string               `json:"error,omitempty"`
}

type speakPayload struct {
	UtteranceID string `json:"utterance_id"`
	Text        string `json:"text,omitempty"`
}

type speechEndedPayload struct {
	UtteranceID string `json:"utterance_id"`
	Error       string `json:"error,omitempty"`
}

type countdownPayload struct {
	RemainingMS int64 `json:"remaining_ms"`
}

type textPayload struct {
	Text string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Transcript error codes reported by browser speech recognition.
const (
	speechErrNoSpeech = "no-speech"
	speechErrAborted  = "aborted"
)

func encode(t MessageType, sessionID *uuid.UUID, payload any) ([]byte, error) {
	env := Envelope{Type: t, SessionID: sessionID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func countdown(d time.Duration) countdownPayload {
	return countdownPayload{RemainingMS: d.Milliseconds()}
}
