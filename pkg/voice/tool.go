package voice

// Tool describes a function the agent may invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string `json:"name"`

	// Description explains what the tool does, helping the agent
	// decide when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is an invocation of a tool by the agent.
type ToolCall struct {
	// ID matches the acknowledgment back to this call.
	ID string

	// Name is the tool being invoked.
	Name string

	// Args contains the parsed arguments from the agent.
	Args map[string]any
}

// ToolResponse acknowledges a tool call back to the agent.
type ToolResponse struct {
	// ID is the ToolCall.ID being acknowledged.
	ID string

	// Name is the tool that was invoked.
	Name string

	// Response is the structured acknowledgment payload.
	Response map[string]any
}

// Product is one recommended item surfaced by the agent.
type Product struct {
	Brand       string `json:"brand"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// ToolShowProducts is the one capability the client exposes: present a
// set of recommended products to the shopper.
const ToolShowProducts = "show_products"

// ShowProductsTool returns the product recommendation capability for
// the session's manifest.
func ShowProductsTool() Tool {
	return Tool{
		Name:        ToolShowProducts,
		Description: "Display a set of recommended products to the shopper. Call this whenever you recommend specific items.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"products": map[string]any{
					"type":        "array",
					"description": "The products to display.",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"brand":       map[string]any{"type": "string"},
							"name":        map[string]any{"type": "string"},
							"price":       map[string]any{"type": "string"},
							"description": map[string]any{"type": "string"},
							"category":    map[string]any{"type": "string"},
						},
						"required": []string{"brand", "name", "price", "description"},
					},
				},
			},
			"required": []string{"products"},
		},
	}
}
