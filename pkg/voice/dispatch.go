package voice

import (
	"github.com/aurastyle/go-aura/internal/log"
)

// Dispatcher matches inbound tool calls against the client's fixed
// capabilities and validates their payloads. It has no transport access;
// the session sends acknowledgments after the host callback returns.
type Dispatcher struct{}

// Dispatch validates a tool call. For a recognized call it returns the
// product list to display and true. A call with an unknown name or a
// malformed payload returns false: the caller must not acknowledge it,
// since no meaningful acknowledgment can be made.
func (Dispatcher) Dispatch(call ToolCall) ([]Product, bool) {
	if call.Name != ToolShowProducts {
		log.Debug("voice: unrecognized tool call", "name", call.Name, "id", call.ID)
		return nil, false
	}

	raw, ok := call.Args["products"].([]any)
	if !ok || len(raw) == 0 {
		log.Warn("voice: dropping tool call with empty product list", "id", call.ID)
		return nil, false
	}

	products := make([]Product, 0, len(raw))
	for i, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			log.Warn("voice: dropping tool call with malformed product", "id", call.ID, "index", i)
			return nil, false
		}
		p := Product{
			Brand:       stringField(fields, "brand"),
			Name:        stringField(fields, "name"),
			Price:       stringField(fields, "price"),
			Description: stringField(fields, "description"),
			Category:    stringField(fields, "category"),
		}
		if p.Brand == "" || p.Name == "" || p.Price == "" || p.Description == "" {
			log.Warn("voice: dropping tool call with incomplete product", "id", call.ID, "index", i)
			return nil, false
		}
		products = append(products, p)
	}
	return products, true
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
