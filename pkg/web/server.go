// Package web serves Grace's screens, the orb and the live event streams
// over HTTP and websockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-grace/internal/observe"
	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/hub"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/store"
)

// ErrMissingDependency is returned by NewServer when a required
// dependency is nil.
var ErrMissingDependency = errors.New("web: missing dependency")

// Conversation is the voice session the HTTP API drives.
// *assistant.Session implements it.
type Conversation interface {
	Start(ctx context.Context) error
	End(ctx context.Context) error
	Toggle(ctx context.Context) error
	Live() bool
}

// Config holds server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// MaxOrbSize bounds the ?size= query parameter.
	MaxOrbSize float64

	// MetricsHandler serves /metrics. Defaults to promhttp.Handler().
	MetricsHandler http.Handler

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxOrbSize:      2048,
		ShutdownTimeout: 5 * time.Second,
		Logger:          slog.Default(),
	}
}

// Deps are the components the server exposes.
type Deps struct {
	Store        *store.Store
	Conversation Conversation
	Controller   *anim.Controller
	Scheduler    *anim.Scheduler
	Renderer     *orb.Renderer
}

// Server is the HTTP surface.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	store    *store.Store
	conv     Conversation
	ctrl     *anim.Controller
	sched    *anim.Scheduler
	renderer *orb.Renderer

	sizedMu sync.Mutex
	sized   map[sizedKey]*orb.Renderer

	orbHub    *hub.Hub
	eventHub  *hub.Hub
	unsubs    []func()
	startedAt time.Time
}

// NewServer builds the fiber app and binds the store and scheduler to the
// websocket hubs.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Controller == nil || deps.Renderer == nil {
		return nil, ErrMissingDependency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxOrbSize <= 0 {
		cfg.MaxOrbSize = DefaultConfig().MaxOrbSize
	}
	if cfg.MetricsHandler == nil {
		cfg.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "web"),
		store:     deps.Store,
		conv:      deps.Conversation,
		ctrl:      deps.Controller,
		sched:     deps.Scheduler,
		renderer:  deps.Renderer,
		sized:     make(map[sizedKey]*orb.Renderer),
		startedAt: time.Now(),
	}
	s.orbHub = hub.New("orb", hub.WithLogger(cfg.Logger), hub.WithMetrics(cfg.Metrics))
	s.eventHub = hub.New("events",
		hub.WithLogger(cfg.Logger),
		hub.WithMetrics(cfg.Metrics),
		hub.WithInbound(s.handleInbound),
	)

	app := fiber.New(fiber.Config{
		AppName:               "Grace",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.requestLogger)

	app.Get("/", s.handleHome)
	app.Get("/voice", s.handleVoice)
	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHandler))
	app.Get("/orb.svg", s.handleOrbSVG)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/orb", s.handleOrb)
	api.Get("/conversation", s.handleGetConversation)
	api.Delete("/conversation", s.handleClearConversation)
	api.Post("/conversation/start", s.handleStart)
	api.Post("/conversation/end", s.handleEnd)
	api.Post("/conversation/toggle", s.handleToggle)
	api.Post("/state", s.handleSetState)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/orb", websocket.New(s.handleOrbWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	app.Use(s.handleNotFound)

	s.app = app
	s.bind()
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Notify forwards an assistant notice to event stream clients.
func (s *Server) Notify(n assistant.Notice) {
	if err := s.eventHub.BroadcastEvent(hub.EventNotice, n); err != nil {
		s.logger.Warn("failed to broadcast notice", "error", err)
	}
}

// Run serves on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.orbHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.eventHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("web server listening", "addr", ln.Addr().String())
		return s.app.Listener(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout)
	})

	return g.Wait()
}

// Close releases store and scheduler subscriptions.
func (s *Server) Close() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}
