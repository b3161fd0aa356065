package voice

import (
	"errors"

	"github.com/aurastyle/go-aura/pkg/audio"
)

// Default model and voice for live sessions.
const (
	DefaultModel = "models/gemini-2.0-flash-exp"
	DefaultVoice = "Aoede"
)

// Config holds the immutable parameters for one live session.
// Create it once per Open; it is never mutated by the session.
type Config struct {
	// APIKey authenticates against the agent service.
	APIKey string

	// Model is the conversational model to connect to.
	Model string

	// Voice is the synthesized speech voice name.
	Voice string

	// SystemPrompt carries the persona and styling context
	// (location, occasion, shopper preferences).
	SystemPrompt string

	// Tools is the capability manifest offered to the agent.
	Tools []Tool

	// InputSampleRate is the capture sample rate in Hz.
	InputSampleRate int

	// OutputSampleRate is the synthesized speech sample rate in Hz.
	OutputSampleRate int

	// FrameSize is the number of samples per capture frame.
	FrameSize int

	// Debug enables verbose protocol logging.
	Debug bool
}

// DefaultConfig returns a Config with the wire-contract audio constants
// and the product recommendation capability registered.
func DefaultConfig() Config {
	return Config{
		Model:            DefaultModel,
		Voice:            DefaultVoice,
		Tools:            []Tool{ShowProductsTool()},
		InputSampleRate:  audio.InputSampleRate,
		OutputSampleRate: audio.OutputSampleRate,
		FrameSize:        audio.CaptureFrameSize,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.InputSampleRate <= 0 {
		return errors.New("voice: input sample rate must be positive")
	}
	if c.OutputSampleRate <= 0 {
		return errors.New("voice: output sample rate must be positive")
	}
	if c.FrameSize <= 0 {
		return errors.New("voice: frame size must be positive")
	}
	return nil
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithVoice returns a copy with the voice set.
func (c Config) WithVoice(voice string) Config {
	c.Voice = voice
	return c
}

// WithDebug returns a copy with debug logging enabled.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}
