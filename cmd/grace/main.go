// Grace serves the voice assistant: the orb animation, the conversation
// session and the HTTP and websocket surface the app screens talk to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-grace/internal/config"
	"github.com/teslashibe/go-grace/internal/httpc"
	"github.com/teslashibe/go-grace/internal/log"
	"github.com/teslashibe/go-grace/internal/observe"
	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/conversation"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/voice"
	"github.com/teslashibe/go-grace/pkg/web"
	"github.com/teslashibe/go-grace/pkg/workflow"
)

type options struct {
	configPath string
	statePath  string
}

func main() {
	cfg, opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "grace: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.Server.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("grace stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the configuration and overlays any flags that were set.
func parseFlags() (*config.Config, options, error) {
	var opts options
	def := config.Default()

	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&opts.statePath, "state", "", "Persist conversation history to this JSON file")
	port := flag.Int("port", def.Server.Port, "HTTP port (overrides GRACE_PORT)")
	logLevel := flag.String("log-level", def.Server.LogLevel, "Log level: debug, info, warn, error")
	size := flag.Float64("orb-size", def.Orb.Size, "Orb size in pixels")
	fps := flag.Float64("fps", def.Orb.FPS, "Animation frame rate")
	fullSweep := flag.Bool("full-sweep", false, "Step waves through every cached phase")
	agentID := flag.String("agent-id", "", "ElevenLabs agent ID (overrides ELEVENLABS_AGENT_ID)")
	webhook := flag.String("webhook", "", "n8n webhook URL (overrides N8N_WEBHOOK_URL)")
	noMetrics := flag.Bool("no-metrics", false, "Disable the OpenTelemetry meter provider")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, opts, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Server.LogLevel = *logLevel
		case "orb-size":
			cfg.Orb.Size = *size
		case "fps":
			cfg.Orb.FPS = *fps
		case "full-sweep":
			cfg.Orb.FullSweep = *fullSweep
		case "agent-id":
			cfg.ElevenLabs.AgentID = *agentID
		case "webhook":
			cfg.Workflow.WebhookURL = *webhook
		case "no-metrics":
			cfg.Server.Metrics = !*noMetrics
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	logger := log.L()

	var metrics *observe.Metrics
	if cfg.Server.Metrics {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: httpc.Version})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
		metrics = observe.DefaultMetrics()
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if opts.statePath != "" {
		storeOpts = append(storeOpts, store.WithBackend(store.NewFileBackend(opts.statePath)))
	}
	// New restores the saved conversation when a backend is set.
	st := store.New(storeOpts...)
	defer st.Close()

	ctrlOpts := []anim.Option{anim.WithLogger(logger)}
	if metrics != nil {
		ctrlOpts = append(ctrlOpts, anim.WithTransitionHook(func(_, to voice.State) {
			metrics.RecordTransition(ctx, to.String())
		}))
	}
	ctrl := anim.NewController(st.State(), ctrlOpts...)
	sched := anim.NewScheduler(ctrl, cfg.Orb.FPS)
	if metrics != nil {
		unsub := sched.Subscribe(func(anim.Frame) {
			metrics.OrbFrames.Add(ctx, 1)
		})
		defer unsub()
	}

	rendererOpts := []orb.RendererOption{orb.WithLogger(logger)}
	if cfg.Orb.FullSweep {
		rendererOpts = append(rendererOpts, orb.WithFullSweep())
	}
	renderer := orb.NewRenderer(cfg.Orb.Size, rendererOpts...)

	webCfg := web.DefaultConfig()
	webCfg.Addr = cfg.Addr()
	webCfg.Metrics = metrics
	webCfg.Logger = logger

	deps := web.Deps{
		Store:      st,
		Controller: ctrl,
		Scheduler:  sched,
		Renderer:   renderer,
	}

	session, err := newSession(cfg, st, metrics)
	if err != nil {
		return err
	}
	if session != nil {
		deps.Conversation = session
	}

	server, err := web.NewServer(webCfg, deps)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer server.Close()
	if session != nil {
		session.SetNotify(server.Notify)
		defer session.Close()
	}

	logger.Info("grace starting",
		"addr", webCfg.Addr,
		"orb_size", renderer.Geometry().Size,
		"fps", sched.FPS(),
		"conversation", session != nil,
		"workflow", cfg.Workflow.WebhookURL != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	return g.Wait()
}

// newSession builds the conversation session, or returns nil when no agent
// is configured.
func newSession(cfg *config.Config, st *store.Store, metrics *observe.Metrics) (*assistant.Session, error) {
	logger := log.L()
	if err := cfg.RequireAgent(); err != nil {
		logger.Warn("conversation disabled", "reason", err)
		return nil, nil
	}

	provider, err := conversation.NewElevenLabs(
		conversation.WithAgentID(cfg.ElevenLabs.AgentID),
		conversation.WithAPIKey(cfg.ElevenLabs.APIKey),
		conversation.WithUserAgent(cfg.UserAgent),
		conversation.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation provider: %w", err)
	}

	sessionOpts := []assistant.Option{
		assistant.WithLogger(logger),
		assistant.WithMetrics(metrics),
	}
	if cfg.Workflow.WebhookURL != "" {
		client, err := workflow.NewClient(cfg.Workflow.WebhookURL,
			workflow.WithAgentID(cfg.Workflow.AgentID),
			workflow.WithUserAgent(cfg.UserAgent),
			workflow.WithLogger(logger),
			workflow.WithMetrics(metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("create workflow client: %w", err)
		}
		sessionOpts = append(sessionOpts, assistant.WithWorkflow(client))
	}

	return assistant.New(provider, st, sessionOpts...)
}
