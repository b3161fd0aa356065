// Package web hosts the styling assistant for browsers: REST routes
// for chat and try-on, session control for the live voice mode, and
// websocket endpoints for event fan-out and duplex audio.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/audio"
	"github.com/aurastyle/go-aura/pkg/hub"
	"github.com/aurastyle/go-aura/pkg/stylist"
	"github.com/aurastyle/go-aura/pkg/voice"
	"github.com/aurastyle/go-aura/pkg/voice/bundled"
)

// Server is the web host. It owns at most one live voice session at a
// time; opening while one is active is an error.
type Server struct {
	app  *fiber.App
	port string

	stylist  *stylist.Client
	voiceCfg voice.Config

	// Session event fan-out to dashboards.
	events *hub.Hub

	// Live session state.
	mu      sync.Mutex
	session *voice.Session
	browser *browserAudio
}

// NewServer creates the web host. The stylist client serves the REST
// surfaces; voiceCfg is the template for live sessions.
func NewServer(port string, styling *stylist.Client, voiceCfg voice.Config) *Server {
	s := &Server{
		port:     port,
		stylist:  styling,
		voiceCfg: voiceCfg,
		events:   hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Aura",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024, // try-on photos
	})

	// CORS for local development.
	app.Use(cors.New())

	app.Static("/", "./web")

	api := app.Group("/api")
	api.Post("/chat", s.handleChat)
	api.Post("/tryon", s.handleTryOn)
	api.Get("/session", s.handleSessionState)
	api.Post("/session/open", s.handleSessionOpen)
	api.Post("/session/close", s.handleSessionClose)
	api.Post("/session/mute", s.handleSessionMute)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/audio", websocket.New(s.handleAudioWS))

	s.app = app
	return s
}

// Start runs the server. It blocks until Shutdown.
func (s *Server) Start() error {
	go s.events.Run()
	log.Info("web: listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the server, closing any live session first.
func (s *Server) Shutdown() error {
	s.closeSession()
	s.events.Stop()
	return s.app.Shutdown()
}

// openSession starts a live voice session over the connected browser
// audio channel.
func (s *Server) openSession(systemPrompt string) error {
	s.mu.Lock()
	if s.session != nil && s.session.State() != voice.StateClosed && s.session.State() != voice.StateFailed {
		s.mu.Unlock()
		return voice.ErrSessionActive
	}
	browser := s.browser
	s.mu.Unlock()

	if browser == nil {
		return errNoAudioChannel
	}

	cfg := s.voiceCfg
	if systemPrompt != "" {
		cfg = cfg.WithSystemPrompt(systemPrompt)
	}

	bridge := audio.NewBridge(browser, browser, cfg.OutputSampleRate)
	session, err := voice.NewSession(cfg, bundled.NewGemini(), bridge, s.sessionCallbacks())
	if err != nil {
		return err
	}
	if err := session.Open(context.Background()); err != nil {
		return err
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.broadcastState(session.State().String())
	return nil
}

// closeSession closes the live session if one is open.
func (s *Server) closeSession() {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

// sessionCallbacks wires session events to the dashboard hub.
func (s *Server) sessionCallbacks() voice.Callbacks {
	return voice.Callbacks{
		OnUserTranscript: func(text string, final bool) {
			s.events.BroadcastJSON(transcriptEvent(eventUserTranscript, text, final))
		},
		OnAgentTranscript: func(text string, final bool) {
			s.events.BroadcastJSON(transcriptEvent(eventAgentTranscript, text, final))
		},
		OnProductsFound: func(products []voice.Product) {
			s.events.BroadcastJSON(productsEvent(products))
		},
		OnClosed: func(reason error) {
			s.events.BroadcastJSON(closedEvent(reason))
			s.mu.Lock()
			s.session = nil
			s.mu.Unlock()
		},
	}
}

func (s *Server) broadcastState(state string) {
	s.events.BroadcastJSON(stateEvent(state))
}

// handleEventsWS serves the dashboard event stream.
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c)
	client.Run()
}
