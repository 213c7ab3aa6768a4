package events

import "errors"

var (
	// ErrBroadcastFull is returned when the hub cannot accept more events
	ErrBroadcastFull = errors.New("broadcast channel full")
	// ErrHubClosed is returned after Shutdown
	ErrHubClosed = errors.New("event hub closed")
)
