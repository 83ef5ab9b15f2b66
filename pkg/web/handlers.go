package web

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/voice"
)

var errNoConversation = errors.New("web: no conversation configured")

func (s *Server) handleHome(c *fiber.Ctx) error {
	return c.JSON(assistant.Home())
}

func (s *Server) handleVoice(c *fiber.Ctx) error {
	return c.JSON(assistant.Voice(s.store))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State          voice.State `json:"state"`
	Status         string      `json:"status"`
	Processing     bool        `json:"processing"`
	Live           bool        `json:"live"`
	ConversationID string      `json:"conversationId"`
	HistoryLength  int         `json:"historyLength"`
	OrbClients     int         `json:"orbClients"`
	EventClients   int         `json:"eventClients"`
	FPS            float64     `json:"fps"`
	Frames         uint64      `json:"frames"`
	Uptime         string      `json:"uptime"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	state := s.store.State()
	resp := StatusResponse{
		State:          state,
		Status:         assistant.StatusText(state),
		Processing:     s.store.IsProcessing(),
		ConversationID: s.store.ConversationID(),
		HistoryLength:  s.store.Len(),
		OrbClients:     s.orbHub.ClientCount(),
		EventClients:   s.eventHub.ClientCount(),
		Uptime:         time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.conv != nil {
		resp.Live = s.conv.Live()
	}
	if s.sched != nil {
		resp.FPS = s.sched.FPS()
		resp.Frames = s.sched.Frames()
	}
	return c.JSON(resp)
}

// renderScene renders the current frame, at ?size= when given.
func (s *Server) renderScene(c *fiber.Ctx) (orb.Scene, error) {
	r := s.renderer
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil || size <= 0 || size > s.cfg.MaxOrbSize {
			return orb.Scene{}, fiber.NewError(fiber.StatusBadRequest, "size must be a number in (0, "+
				strconv.FormatFloat(s.cfg.MaxOrbSize, 'f', -1, 64)+"]")
		}
		if size != r.Geometry().Size {
			r = s.sizedRenderer(size, r.FullSweep())
		}
	}
	return r.Render(s.ctrl.Frame()), nil
}

// maxSizedRenderers bounds the renderers kept for ?size= requests.
const maxSizedRenderers = 8

type sizedKey struct {
	size      float64
	fullSweep bool
}

// sizedRenderer returns a cached renderer for size, building one on first use.
func (s *Server) sizedRenderer(size float64, fullSweep bool) *orb.Renderer {
	key := sizedKey{size: size, fullSweep: fullSweep}

	s.sizedMu.Lock()
	defer s.sizedMu.Unlock()

	if r, ok := s.sized[key]; ok {
		return r
	}
	if len(s.sized) >= maxSizedRenderers {
		clear(s.sized)
	}
	var opts []orb.RendererOption
	if fullSweep {
		opts = append(opts, orb.WithFullSweep())
	}
	r := orb.NewRenderer(size, opts...)
	s.sized[key] = r
	return r
}

func (s *Server) handleOrb(c *fiber.Ctx) error {
	scene, err := s.renderScene(c)
	if err != nil {
		return err
	}
	return c.JSON(scene)
}

func (s *Server) handleOrbSVG(c *fiber.Ctx) error {
	scene, err := s.renderScene(c)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(scene.SVG())
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	snap := s.store.Snapshot()
	return c.JSON(fiber.Map{
		"conversationId": snap.ConversationID,
		"currentQuery":   snap.CurrentQuery,
		"history":        snap.History,
	})
}

func (s *Server) handleClearConversation(c *fiber.Ctx) error {
	s.store.ClearHistory()
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	return s.runConversation(c, func(conv Conversation) error { return conv.Start(c.UserContext()) })
}

func (s *Server) handleEnd(c *fiber.Ctx) error {
	return s.runConversation(c, func(conv Conversation) error { return conv.End(c.UserContext()) })
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	return s.runConversation(c, func(conv Conversation) error { return conv.Toggle(c.UserContext()) })
}

func (s *Server) runConversation(c *fiber.Ctx, fn func(Conversation) error) error {
	if err := s.withConversation(fn); err != nil {
		if errors.Is(err, errNoConversation) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "conversation provider not configured")
		}
		if errors.Is(err, assistant.ErrPermissionDenied) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(assistant.Voice(s.store))
}

// SetStateRequest is the body of POST /api/state.
type SetStateRequest struct {
	State string `json:"state"`
}

func (s *Server) handleSetState(c *fiber.Ctx) error {
	var req SetStateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	st, err := voice.ParseStrict(req.State)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.store.SetState(st)
	return c.JSON(assistant.Voice(s.store))
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(assistant.NotFound())
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}
