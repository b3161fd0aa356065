package voice

import "context"

// ServerEvent is one normalized inbound message from the agent service.
// A single event may carry several payload kinds at once; the session
// runs every applicable handler.
type ServerEvent struct {
	// UserTranscript is a partial transcription of the shopper's speech.
	UserTranscript string

	// AgentTranscript is a partial transcription of the agent's speech.
	AgentTranscript string

	// TurnComplete signals the end of the current utterance exchange.
	TurnComplete bool

	// Audio is a transport-encoded chunk of synthesized speech.
	Audio string

	// ToolCalls are function invocations requested by the agent.
	ToolCalls []ToolCall

	// Interrupted signals the shopper spoke over the agent.
	Interrupted bool

	// Closed signals the remote ended the session.
	Closed bool
}

// Transport is the duplex channel to the remote conversational service.
// It is exclusively owned by the session; implementations live in the
// bundled subpackage, and tests inject fakes.
type Transport interface {
	// Connect performs the connection handshake with the session
	// configuration. It must be called at most once.
	Connect(ctx context.Context, cfg Config) error

	// SendAudio submits one transport-encoded capture frame.
	SendAudio(data string) error

	// SendToolResponse acknowledges a tool call.
	SendToolResponse(resp ToolResponse) error

	// Recv blocks until the next server event. A returned error means
	// the transport has closed or failed; no further events arrive.
	Recv() (ServerEvent, error)

	// Close terminates the connection. Safe to call multiple times and
	// before Connect.
	Close() error
}
