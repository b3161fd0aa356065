package web

import "github.com/aurastyle/go-aura/pkg/voice"

// Event types pushed to /ws/events clients.
const (
	eventUserTranscript  = "user_transcript"
	eventAgentTranscript = "agent_transcript"
	eventProducts        = "products"
	eventSessionState    = "session_state"
	eventSessionClosed   = "session_closed"
)

// Event is one dashboard notification.
type Event struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Final    bool            `json:"final,omitempty"`
	Products []voice.Product `json:"products,omitempty"`
	State    string          `json:"state,omitempty"`
	Reason   string          `json:"reason,omitempty"`
}

func transcriptEvent(kind, text string, final bool) Event {
	return Event{Type: kind, Text: text, Final: final}
}

func productsEvent(products []voice.Product) Event {
	return Event{Type: eventProducts, Products: products}
}

func stateEvent(state string) Event {
	return Event{Type: eventSessionState, State: state}
}

func closedEvent(reason error) Event {
	ev := Event{Type: eventSessionClosed, State: voice.StateClosed.String()}
	if reason != nil {
		ev.Reason = reason.Error()
		ev.State = voice.StateFailed.String()
	}
	return ev
}
