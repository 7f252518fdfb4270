// Package capability declares the narrow contracts the tutoring core uses to
// reach platform capabilities: the drawing surface, speech input, speech
// output and their availability. Concrete implementations live at the edges
// (the websocket gateway, the Gemini adapter, test fakes).
package capability

import (
	"context"
	"time"
)

// Element is a drawable item on the surface. Revision increases whenever the
// element is edited.
type Element struct {
	ID       string `json:"id"`
	Revision int64  `json:"revision"`
}

// CaptureMode selects the resolution of a surface capture.
type CaptureMode string

const (
	CaptureFast CaptureMode = "fast"
	CaptureFull CaptureMode = "full"
)

// Image is an encoded raster image.
type Image struct {
	Data []byte
	MIME string
}

// Empty reports whether the image carries no pixels.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Surface is the drawing surface of a whiteboard session.
type Surface interface {
	Elements(ctx context.Context) ([]Element, error)
	Capture(ctx context.Context, mode CaptureMode) (Image, error)
}

// Availability describes which speech capabilities the client supports.
type Availability struct {
	SpeechInput  bool `json:"speech_input"`
	SpeechOutput bool `json:"speech_output"`
	// NeedsGesture is set when audio playback or capture requires an explicit
	// user gesture before it can start.
	NeedsGesture bool `json:"needs_gesture"`
}

// EventKind classifies a transcription event.
type EventKind string

const (
	EventInterim EventKind = "interim"
	EventFinal   EventKind = "final"
	EventEnd     EventKind = "end"
	EventError   EventKind = "error"
)

// TranscriptEvent is one event of a speech input stream.
type TranscriptEvent struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text,omitempty"`
	Err  error     `json:"-"`
}

// SpeechInput opens speech recognition streams. The returned channel is
// closed when the stream ends; cancelling ctx aborts the stream.
type SpeechInput interface {
	Listen(ctx context.Context) (<-chan TranscriptEvent, error)
}

// Utterance is a single piece of speech to play back.
type Utterance struct {
	ID    string
	Text  string
	Audio []byte
}

// Player plays an utterance and returns when playback ends. Cancelling ctx
// stops playback.
type Player interface {
	Play(ctx context.Context, u Utterance) error
}

// Synthesizer turns text into audio. It is optional; players that speak text
// natively are given the text alone.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Clock abstracts time for components that stamp records.
type Clock func() time.Time
