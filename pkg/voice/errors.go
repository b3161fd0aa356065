package voice

import "errors"

// Sentinel errors for the voice package. Only connection-level failures
// reach the host through OnClosed; everything else is contained inside
// the session and surfaced as diagnostics.
var (
	// ErrMissingAPIKey indicates the API key was not provided.
	ErrMissingAPIKey = errors.New("voice: API key is required")

	// ErrSessionActive indicates Open was called while a session is
	// already connecting or open.
	ErrSessionActive = errors.New("voice: session already active")

	// ErrNotOpen indicates an operation that requires an open session.
	ErrNotOpen = errors.New("voice: session not open")

	// ErrConnectionFailed indicates the handshake could not complete.
	ErrConnectionFailed = errors.New("voice: connection failed")

	// ErrConnectionClosed indicates the transport closed or failed
	// while the session was open.
	ErrConnectionClosed = errors.New("voice: connection closed")

	// ErrAlreadyConnected indicates Connect was called twice on a
	// transport.
	ErrAlreadyConnected = errors.New("voice: transport already connected")
)
