// Command aura runs the styling assistant web host: REST chat and
// try-on, plus the browser live voice mode.
//
// Usage:
//
//	GOOGLE_API_KEY=... go run ./cmd/aura
//
// Environment variables:
//
//	GOOGLE_API_KEY   - Gemini API key (required)
//	AURA_PORT        - HTTP port (default 8080)
//	AURA_LOG_LEVEL   - debug, info, warn, error (default info)
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aurastyle/go-aura/internal/config"
	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/stylist"
	"github.com/aurastyle/go-aura/pkg/voice"
	"github.com/aurastyle/go-aura/pkg/web"
)

func main() {
	log.Init(config.LogLevel())
	apiKey := config.GoogleAPIKey()

	styling, err := stylist.NewClient(stylist.DefaultConfig().WithAPIKey(apiKey))
	if err != nil {
		log.Error("stylist client", "error", err)
		os.Exit(1)
	}

	voiceCfg := voice.DefaultConfig().WithAPIKey(apiKey)
	server := web.NewServer(config.Port(), styling, voiceCfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		server.Shutdown()
	}()

	if err := server.Start(); err != nil {
		log.Error("server", "error", err)
		os.Exit(1)
	}
}
