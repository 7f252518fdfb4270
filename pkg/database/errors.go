package database

import "errors"

// ErrNotReady indicates the database did not answer a readiness ping.
var ErrNotReady = errors.New("database not ready")
