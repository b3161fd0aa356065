package web

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/aurastyle/go-aura/internal/log"
	"github.com/aurastyle/go-aura/pkg/stylist"
	"github.com/aurastyle/go-aura/pkg/voice"
)

// ChatRequest is the body for POST /api/chat.
type ChatRequest struct {
	Message string            `json:"message"`
	History []stylist.Message `json:"history"`
}

// handleChat answers one text chat turn. The browser owns the history
// and sends it with every turn.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "message required",
		})
	}

	reply, err := s.stylist.Chat(c.Context(), req.History, req.Message)
	if err != nil {
		log.Error("web: chat turn failed", "error", err)
		return apiError(c, err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}

// TryOnRequest is the body for POST /api/tryon. Photo is base64.
type TryOnRequest struct {
	Photo  string `json:"photo"`
	Mime   string `json:"mime"`
	Outfit string `json:"outfit"`
}

// handleTryOn renders the shopper's photo wearing the described
// outfit and returns the image directly.
func (s *Server) handleTryOn(c *fiber.Ctx) error {
	var req TryOnRequest
	if err := c.BodyParser(&req); err != nil || req.Photo == "" || req.Outfit == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "photo and outfit required",
		})
	}
	if req.Mime == "" {
		req.Mime = "image/jpeg"
	}

	photo, err := base64.StdEncoding.DecodeString(req.Photo)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "photo is not valid base64",
		})
	}

	image, mime, err := s.stylist.TryOn(c.Context(), photo, req.Mime, req.Outfit)
	if err != nil {
		log.Error("web: try-on failed", "error", err)
		return apiError(c, err)
	}

	c.Set(fiber.HeaderContentType, mime)
	return c.Send(image)
}

// handleSessionState reports the live session state.
func (s *Server) handleSessionState(c *fiber.Ctx) error {
	s.mu.Lock()
	session := s.session
	audioConnected := s.browser != nil
	s.mu.Unlock()

	state := voice.StateIdle
	muted := false
	if session != nil {
		state = session.State()
		muted = session.Muted()
	}
	return c.JSON(fiber.Map{
		"state":           state.String(),
		"muted":           muted,
		"audio_connected": audioConnected,
	})
}

// SessionOpenRequest is the body for POST /api/session/open.
type SessionOpenRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// handleSessionOpen starts the live voice session. The browser must
// have connected /ws/audio first.
func (s *Server) handleSessionOpen(c *fiber.Ctx) error {
	var req SessionOpenRequest
	c.BodyParser(&req) // body is optional

	if err := s.openSession(req.SystemPrompt); err != nil {
		switch {
		case errors.Is(err, voice.ErrSessionActive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "a session is already active",
			})
		case errors.Is(err, errNoAudioChannel):
			return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{
				"error": "connect /ws/audio before opening a session",
			})
		default:
			log.Error("web: session open failed", "error", err)
			return apiError(c, err)
		}
	}
	return c.JSON(fiber.Map{"state": voice.StateOpen.String()})
}

// handleSessionClose closes the live session. Closing when none is
// open is a no-op.
func (s *Server) handleSessionClose(c *fiber.Ctx) error {
	s.closeSession()
	return c.JSON(fiber.Map{"state": voice.StateClosed.String()})
}

// SessionMuteRequest is the body for POST /api/session/mute.
type SessionMuteRequest struct {
	Muted bool `json:"muted"`
}

// handleSessionMute toggles capture without touching the device.
func (s *Server) handleSessionMute(c *fiber.Ctx) error {
	var req SessionMuteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil || session.State() != voice.StateOpen {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "no open session",
		})
	}
	session.SetMuted(req.Muted)
	return c.JSON(fiber.Map{"muted": req.Muted})
}

func apiError(c *fiber.Ctx, err error) error {
	var apiErr *stylist.APIError
	if errors.As(err, &apiErr) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": apiErr.Message,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
