package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/analysis"
	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/feedback"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/pkg/formatting"
)

// Binding is a client connection scoped to one session. It is the drawing
// surface, speech input and UI sink of that session. UI methods never block.
type Binding struct {
	client    *Client
	sessionID uuid.UUID
}

var (
	_ capability.Surface     = (*Binding)(nil)
	_ capability.SpeechInput = (*Binding)(nil)
	_ feedback.Presenter     = (*Binding)(nil)
	_ turns.UI               = (*Binding)(nil)
	_ capability.Player      = (*Client)(nil)
)

// Client returns the underlying connection.
func (b *Binding) Client() *Client {
	return b.client
}

// Elements returns the elements the client last reported for this session.
func (b *Binding) Elements(ctx context.Context) ([]capability.Element, error) {
	select {
	case <-b.client.done:
		return nil, fmt.Errorf("%w: %v", capability.ErrCapture, ErrClosed)
	default:
	}
	return b.client.elementsFor(b.sessionID), nil
}

// Capture asks the client to rasterize the surface and waits for the image.
// A reply without pixels, such as the "data:," of a zero-size canvas, is a
// capture failure.
func (b *Binding) Capture(ctx context.Context, mode capability.CaptureMode) (capability.Image, error) {
	p, err := b.client.capture(ctx, b.sessionID, mode)
	if err != nil {
		return capability.Image{}, fmt.Errorf("%w: %v", capability.ErrCapture, err)
	}
	if p.Error != "" {
		return capability.Image{}, fmt.Errorf("%w: %s", capability.ErrCapture, p.Error)
	}
	if p.DataURL == "" {
		return capability.Image{}, fmt.Errorf("%w: no image data", capability.ErrCapture)
	}

	data, mime, err := formatting.DecodeDataURL(p.DataURL)
	if err != nil {
		return capability.Image{}, fmt.Errorf("%w: %v", capability.ErrCapture, err)
	}
	if len(data) == 0 {
		return capability.Image{}, fmt.Errorf("%w: empty image", capability.ErrCapture)
	}
	return capability.Image{Data: data, MIME: mime}, nil
}

// Listen opens a speech recognition stream on the client.
func (b *Binding) Listen(ctx context.Context) (<-chan capability.TranscriptEvent, error) {
	return b.client.listen(ctx, b.sessionID)
}

// Release drops the session's routing state on the connection.
func (b *Binding) Release() {
	b.client.forget(b.sessionID)
}

// Closed tells the client the session is over.
func (b *Binding) Closed(reason string) {
	b.emit(MsgSessionClosed, textPayload{Text: reason})
}

func (b *Binding) ShowFeedback(v analysis.Verdict) {
	b.emit(MsgFeedbackShow, v)
}

func (b *Binding) HideFeedback() {
	b.emit(MsgFeedbackHide, nil)
}

func (b *Binding) ShowHighlight(r analysis.Region) {
	b.emit(MsgHighlightShow, r)
}

func (b *Binding) ClearHighlight() {
	b.emit(MsgHighlightClear, nil)
}

func (b *Binding) ShowError(err error) {
	b.emit(MsgError, errorPayload{Message: err.Error()})
}

func (b *Binding) Countdown(remaining time.Duration) {
	b.emit(MsgCountdown, countdown(remaining))
}

func (b *Binding) Finalized(c feedback.Completion) {
	b.emit(MsgFinalized, c)
}

func (b *Binding) PhaseChanged(p turns.Phase) {
	b.emit(MsgPhase, struct {
		Phase turns.Phase `json:"phase"`
	}{p})
}

func (b *Binding) Interim(text string) {
	b.emit(MsgInterim, textPayload{Text: text})
}

func (b *Binding) Reply(r turns.Response) {
	b.emit(MsgReply, r)
}

func (b *Binding) ShowTapToSpeak() {
	b.emit(MsgTapToSpeak, nil)
}

// ShowManualInput offers the typed-input fallback. err may be nil when the
// fallback is offered without a failure.
func (b *Binding) ShowManualInput(err error) {
	var p errorPayload
	if err != nil {
		p.Message = err.Error()
	}
	b.emit(MsgManualInput, p)
}

func (b *Binding) emit(t MessageType, payload any) {
	sid := b.sessionID
	if err := b.client.enqueue(t, &sid, payload); err != nil {
		b.client.logger.Debug("ui message not sent", "type", t, "session", sid, "error", err)
	}
}
