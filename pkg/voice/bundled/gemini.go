// Package bundled provides the built-in Transport implementations for
// the voice package. The only bundled transport today is Gemini Live
// over WebSocket.
package bundled

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/voice"
)

// Gemini Live API WebSocket endpoint.
const geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

const handshakeTimeout = 10 * time.Second

// Gemini implements voice.Transport over the Gemini Live API. A single
// Gemini 2.0 Flash stream handles VAD, ASR, LLM, and TTS, which keeps
// speech-to-speech latency low.
//
// Writes are serialized with an internal mutex; Recv is intended to be
// called from a single goroutine (the session's receive loop).
type Gemini struct {
	ws    *websocket.Conn
	wsMu  sync.Mutex
	debug bool

	mu     sync.Mutex
	closed bool
}

// NewGemini creates an unconnected Gemini Live transport.
func NewGemini() *Gemini {
	return &Gemini{}
}

// Connect dials the Live endpoint and sends the session setup message.
func (g *Gemini) Connect(ctx context.Context, cfg voice.Config) error {
	if cfg.APIKey == "" {
		return voice.ErrMissingAPIKey
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return voice.ErrConnectionClosed
	}
	if g.ws != nil {
		g.mu.Unlock()
		return voice.ErrAlreadyConnected
	}
	g.mu.Unlock()

	url := fmt.Sprintf("%s?key=%s", geminiLiveURL, cfg.APIKey)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("voice/gemini: dial: %w", err)
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		ws.Close()
		return voice.ErrConnectionClosed
	}
	g.ws = ws
	g.debug = cfg.Debug
	g.mu.Unlock()

	if err := g.sendJSON(setupMessage(cfg)); err != nil {
		g.Close()
		return fmt.Errorf("voice/gemini: configure session: %w", err)
	}
	return nil
}

// setupMessage builds the initial session configuration.
func setupMessage(cfg voice.Config) map[string]any {
	setup := map[string]any{
		"model": cfg.Model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": cfg.Voice,
					},
				},
			},
		},
		"input_audio_transcription":  map[string]any{},
		"output_audio_transcription": map[string]any{},
	}
	if cfg.SystemPrompt != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": cfg.SystemPrompt},
			},
		}
	}
	if len(cfg.Tools) > 0 {
		var declarations []map[string]any
		for _, tool := range cfg.Tools {
			declarations = append(declarations, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}
		setup["tools"] = []map[string]any{
			{"function_declarations": declarations},
		}
	}
	return map[string]any{"setup": setup}
}

// SendAudio submits one base64 PCM16 capture frame.
func (g *Gemini) SendAudio(data string) error {
	return g.sendJSON(map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      data,
					"mime_type": "audio/pcm",
				},
			},
		},
	})
}

// SendToolResponse acknowledges a function call.
func (g *Gemini) SendToolResponse(resp voice.ToolResponse) error {
	return g.sendJSON(map[string]any{
		"tool_response": map[string]any{
			"function_responses": []map[string]any{
				{
					"id":       resp.ID,
					"name":     resp.Name,
					"response": resp.Response,
				},
			},
		},
	})
}

// Recv blocks until the next meaningful server event. Messages that
// fail to parse are logged and skipped; housekeeping messages that
// carry nothing for the session are absorbed here.
func (g *Gemini) Recv() (voice.ServerEvent, error) {
	g.mu.Lock()
	ws := g.ws
	g.mu.Unlock()
	if ws == nil {
		return voice.ServerEvent{}, voice.ErrNotOpen
	}

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if g.isClosed() {
				return voice.ServerEvent{}, voice.ErrConnectionClosed
			}
			return voice.ServerEvent{}, fmt.Errorf("voice/gemini: read: %w", err)
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warn("voice/gemini: unparseable message dropped", "error", err)
			continue
		}

		ev, ok := g.normalize(msg)
		if ok {
			return ev, nil
		}
	}
}

// normalize maps one raw Live message onto a ServerEvent. The second
// return is false when the message carries nothing for the session.
func (g *Gemini) normalize(msg map[string]any) (voice.ServerEvent, bool) {
	if _, ok := msg["setupComplete"]; ok {
		log.Debug("voice/gemini: session ready")
		return voice.ServerEvent{}, false
	}
	if _, ok := msg["goAway"]; ok {
		log.Info("voice/gemini: server ending session")
		return voice.ServerEvent{Closed: true}, true
	}
	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		calls := parseToolCalls(toolCall)
		if len(calls) == 0 {
			return voice.ServerEvent{}, false
		}
		return voice.ServerEvent{ToolCalls: calls}, true
	}
	if _, ok := msg["toolCallCancellation"]; ok {
		log.Debug("voice/gemini: tool call cancelled")
		return voice.ServerEvent{}, false
	}
	if content, ok := msg["serverContent"].(map[string]any); ok {
		return parseServerContent(content)
	}
	if g.debug {
		log.Debug("voice/gemini: unhandled message", "message", msg)
	}
	return voice.ServerEvent{}, false
}

// parseServerContent extracts transcripts, audio, and turn state from
// one serverContent message.
func parseServerContent(content map[string]any) (voice.ServerEvent, bool) {
	var ev voice.ServerEvent
	carries := false

	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		ev.TurnComplete = true
		carries = true
	}
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		ev.Interrupted = true
		carries = true
	}
	if transcript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := transcript["text"].(string); ok && text != "" {
			ev.UserTranscript = text
			carries = true
		}
	}
	if transcript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := transcript["text"].(string); ok && text != "" {
			ev.AgentTranscript = text
			carries = true
		}
	}
	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		if data := audioPart(modelTurn); data != "" {
			ev.Audio = data
			carries = true
		}
	}
	return ev, carries
}

// audioPart returns the base64 audio payload from a model turn, or ""
// when the turn carries no audio.
func audioPart(modelTurn map[string]any) string {
	parts, ok := modelTurn["parts"].([]any)
	if !ok {
		return ""
	}
	for _, part := range parts {
		partMap, ok := part.(map[string]any)
		if !ok {
			continue
		}
		inlineData, ok := partMap["inlineData"].(map[string]any)
		if !ok {
			continue
		}
		mimeType, _ := inlineData["mimeType"].(string)
		if mimeType != "audio/pcm" && mimeType != "audio/pcm;rate=24000" {
			continue
		}
		if data, ok := inlineData["data"].(string); ok && data != "" {
			return data
		}
	}
	return ""
}

// parseToolCalls extracts the function calls from a toolCall message.
func parseToolCalls(toolCall map[string]any) []voice.ToolCall {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return nil
	}
	var calls []voice.ToolCall
	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		id, _ := fcMap["id"].(string)
		name, _ := fcMap["name"].(string)
		args, _ := fcMap["args"].(map[string]any)
		calls = append(calls, voice.ToolCall{ID: id, Name: name, Args: args})
	}
	return calls
}

// Close terminates the connection. Safe to call repeatedly and before
// Connect.
func (g *Gemini) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	ws := g.ws
	g.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

func (g *Gemini) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Ensure Gemini implements voice.Transport at compile time.
var _ voice.Transport = (*Gemini)(nil)

// sendJSON serializes writes over the WebSocket.
func (g *Gemini) sendJSON(v any) error {
	g.mu.Lock()
	ws, closed := g.ws, g.closed
	g.mu.Unlock()
	if closed {
		return voice.ErrConnectionClosed
	}
	if ws == nil {
		return voice.ErrNotOpen
	}

	g.wsMu.Lock()
	defer g.wsMu.Unlock()
	return ws.WriteJSON(v)
}
