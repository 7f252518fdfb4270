package capability

import "errors"

var (
	ErrCapture     = errors.New("surface capture failed")
	ErrService     = errors.New("analysis service failed")
	ErrUnavailable = errors.New("capability unavailable")
	ErrNoSpeech    = errors.New("no speech detected")
	ErrStopped     = errors.New("playback stopped")
)
