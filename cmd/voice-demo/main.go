// Command voice-demo runs a live styling session against the local
// microphone and speaker. Transcripts and product recommendations are
// printed to the terminal.
//
// Usage:
//
//	GOOGLE_API_KEY=... go run ./cmd/voice-demo
//	GOOGLE_API_KEY=... go run ./cmd/voice-demo --voice Kore --debug
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurastyle/go-aura/internal/config"
	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/audio"
	"github.com/aurastyle/go-aura/pkg/voice"
	"github.com/aurastyle/go-aura/pkg/voice/bundled"
)

const defaultPrompt = "You are Aura, a personal styling assistant. " +
	"Chat with the shopper about what to wear. When you recommend " +
	"specific items, call show_products with the details."

func main() {
	prompt := flag.String("prompt", defaultPrompt, "System prompt for the assistant")
	voiceName := flag.String("voice", voice.DefaultVoice, "Synthesized speech voice")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	level := config.LogLevel()
	if *debug {
		level = "debug"
	}
	log.Init(level)

	cfg := voice.DefaultConfig().
		WithAPIKey(config.GoogleAPIKey()).
		WithSystemPrompt(*prompt).
		WithVoice(*voiceName).
		WithDebug(*debug)

	sink, err := audio.NewSpeakerSink(cfg.OutputSampleRate)
	if err != nil {
		fmt.Printf("speaker unavailable: %v\n", err)
		os.Exit(1)
	}
	bridge := audio.NewBridge(audio.NewMicSource(), sink, cfg.OutputSampleRate)

	closed := make(chan error, 1)
	callbacks := voice.Callbacks{
		OnUserTranscript: func(text string, final bool) {
			if final {
				fmt.Printf("\nYou: %s\n", text)
			}
		},
		OnAgentTranscript: func(text string, final bool) {
			if final {
				fmt.Printf("Aura: %s\n", text)
			}
		},
		OnProductsFound: func(products []voice.Product) {
			fmt.Println("\nRecommended:")
			for _, p := range products {
				fmt.Printf("  %s — %s (%s)\n", p.Brand, p.Name, p.Price)
				fmt.Printf("    %s\n", p.Description)
			}
		},
		OnClosed: func(reason error) {
			closed <- reason
		},
	}

	session, err := voice.NewSession(cfg, bundled.NewGemini(), bridge, callbacks)
	if err != nil {
		fmt.Printf("session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Connecting...")
	if err := session.Open(context.Background()); err != nil {
		fmt.Printf("connect: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Session open. Speak into the microphone; Ctrl+C to end.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		fmt.Println("\nClosing session...")
		session.Close()
		<-closed
	case reason := <-closed:
		if reason != nil {
			fmt.Printf("\nSession ended: %v\n", reason)
			os.Exit(1)
		}
		fmt.Println("\nSession ended.")
	}
}
