package sessions

import (
	"github.com/google/uuid"

	"github.com/JaimeStill/mentor/internal/capability"
	"github.com/JaimeStill/mentor/internal/gateway"
	"github.com/JaimeStill/mentor/internal/turns"
	"github.com/JaimeStill/mentor/internal/whiteboard"
)

// Channel is a device scoped to one session: its surface, speech input and
// UI sink.
type Channel interface {
	capability.Surface
	capability.SpeechInput
	whiteboard.UI
	turns.UI
	Closed(reason string)
	Release()
}

// Device is a connected client.
type Device interface {
	ID() string
	Availability() capability.Availability
	Speaker() whiteboard.Speaker
	Bind(sessionID uuid.UUID) Channel
	// Done is closed when the device disconnects.
	Done() <-chan struct{}
}

// Directory resolves client ids to connected devices.
type Directory interface {
	Device(clientID string) (Device, bool)
}

// HubDirectory exposes websocket gateway clients as devices.
type HubDirectory struct {
	Hub *gateway.Hub
}

func (d HubDirectory) Device(clientID string) (Device, bool) {
	c, ok := d.Hub.Client(clientID)
	if !ok {
		return nil, false
	}
	return clientDevice{c}, true
}

type clientDevice struct {
	*gateway.Client
}

func (d clientDevice) Bind(sessionID uuid.UUID) Channel {
	return d.Client.Bind(sessionID)
}

func (d clientDevice) Speaker() whiteboard.Speaker {
	return d.Client.Audio()
}
