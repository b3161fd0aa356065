// Package stylist provides the request/response surfaces of the
// styling assistant: text chat and virtual try-on. Both are single
// REST calls against the Gemini generateContent API; the streaming
// voice surface lives in pkg/voice.
package stylist

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aurastyle/go-aura/internal/httpc"
	"github.com/aurastyle/go-aura/internal/log"
)

const (
	generateBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultChatModel answers text chat turns.
	DefaultChatModel = "models/gemini-2.0-flash"

	// DefaultImageModel renders try-on images.
	DefaultImageModel = "models/gemini-2.0-flash-exp"
)

const defaultSystemPrompt = "You are Aura, a personal styling assistant. " +
	"Give concise, concrete outfit advice grounded in the shopper's stated " +
	"location, occasion, and preferences."

// ErrMissingAPIKey is returned when the client is built without a key.
var ErrMissingAPIKey = errors.New("stylist: API key required")

// ErrEmptyReply is returned when the model answers with no usable content.
var ErrEmptyReply = errors.New("stylist: model returned no content")

// APIError is a non-2xx response from the generateContent API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stylist: API error %d: %s", e.StatusCode, e.Message)
}

// Role values for chat history messages.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one prior turn of a chat conversation. The caller owns
// the history; the client is stateless.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Config holds the stylist client parameters.
type Config struct {
	// APIKey authenticates against the API.
	APIKey string

	// ChatModel answers text turns.
	ChatModel string

	// ImageModel renders try-on images.
	ImageModel string

	// SystemPrompt sets the assistant persona for chat turns.
	SystemPrompt string

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// DefaultConfig returns a Config with the default models and persona.
func DefaultConfig() Config {
	return Config{
		ChatModel:    DefaultChatModel,
		ImageModel:   DefaultImageModel,
		SystemPrompt: defaultSystemPrompt,
		BaseURL:      generateBaseURL,
	}
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithSystemPrompt returns a copy with the chat persona set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// Client calls the styling models. Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a stylist client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = generateBaseURL
	}
	return &Client{cfg: cfg, client: httpc.Client}, nil
}

// request/response shapes for generateContent. Only the fields this
// client reads or writes.
type generateRequest struct {
	Contents          []content       `json:"contents"`
	SystemInstruction *content        `json:"systemInstruction,omitempty"`
	GenerationConfig  *generateConfig `json:"generationConfig,omitempty"`
}

type generateConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Chat answers one text turn given the prior conversation history.
func (c *Client) Chat(ctx context.Context, history []Message, text string) (string, error) {
	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{
			Role:  m.Role,
			Parts: []part{{Text: m.Text}},
		})
	}
	contents = append(contents, content{
		Role:  RoleUser,
		Parts: []part{{Text: text}},
	})

	req := generateRequest{Contents: contents}
	if c.cfg.SystemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: c.cfg.SystemPrompt}}}
	}

	resp, err := c.generate(ctx, c.cfg.ChatModel, req)
	if err != nil {
		return "", err
	}

	var reply string
	for _, p := range firstCandidateParts(resp) {
		reply += p.Text
	}
	if reply == "" {
		return "", ErrEmptyReply
	}
	log.Debug("stylist: chat turn", "history", len(history), "reply_chars", len(reply))
	return reply, nil
}

// TryOn renders the shopper's photo wearing the described outfit and
// returns the generated image bytes with their mime type.
func (c *Client) TryOn(ctx context.Context, photo []byte, mime, outfit string) ([]byte, string, error) {
	prompt := fmt.Sprintf("Edit this photo so the person is wearing: %s. "+
		"Keep the person, pose, and background unchanged.", outfit)

	req := generateRequest{
		Contents: []content{{
			Role: RoleUser,
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(photo),
				}},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generateConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	resp, err := c.generate(ctx, c.cfg.ImageModel, req)
	if err != nil {
		return nil, "", err
	}

	for _, p := range firstCandidateParts(resp) {
		if p.InlineData == nil {
			continue
		}
		image, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			return nil, "", fmt.Errorf("stylist: decode image: %w", err)
		}
		log.Debug("stylist: try-on rendered", "bytes", len(image), "mime", p.InlineData.MimeType)
		return image, p.InlineData.MimeType, nil
	}
	return nil, "", ErrEmptyReply
}

// generate performs one generateContent call.
func (c *Client) generate(ctx context.Context, model string, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("stylist: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.BaseURL, model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stylist: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stylist: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("stylist: decode response: %w", err)
	}
	return &out, nil
}

func firstCandidateParts(resp *generateResponse) []part {
	if len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}

// parseError reads a non-2xx body into an APIError.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
