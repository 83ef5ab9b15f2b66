// Package config loads Grace's settings from defaults, a YAML file and the
// environment. Flag parsing is done in cmd/grace; this package is data and
// loading only.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-grace/internal/httpc"
	"github.com/teslashibe/go-grace/pkg/orb"
)

// Default configuration values.
const (
	DefaultPort     = 8080
	DefaultLogLevel = "info"
	DefaultFPS      = 60
	DefaultModelID  = "eleven_monolingual_v1"
	DefaultAgentID  = "grace"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey     = "ELEVENLABS_API_KEY"
	EnvVoiceID    = "ELEVENLABS_VOICE_ID"
	EnvAgentID    = "ELEVENLABS_AGENT_ID"
	EnvWebhookURL = "N8N_WEBHOOK_URL"
	EnvPort       = "GRACE_PORT"
	EnvLogLevel   = "GRACE_LOG_LEVEL"
)

// Config holds all configuration for the Grace commands.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Orb        OrbConfig        `yaml:"orb"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Workflow   WorkflowConfig   `yaml:"workflow"`

	// UserAgent is sent with every outbound request.
	UserAgent string `yaml:"user_agent"`
}

// ServerConfig controls the HTTP surface and logging.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Metrics  bool   `yaml:"metrics"`
}

// OrbConfig controls the animation.
type OrbConfig struct {
	Size      float64 `yaml:"size"`
	FPS       float64 `yaml:"fps"`
	FullSweep bool    `yaml:"full_sweep"`
}

// ElevenLabsConfig holds the speech provider credentials.
type ElevenLabsConfig struct {
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	AgentID string `yaml:"agent_id"`
	ModelID string `yaml:"model_id"`
}

// WorkflowConfig points at the n8n webhook that receives finished
// conversations.
type WorkflowConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	AgentID    string `yaml:"agent_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     DefaultPort,
			LogLevel: DefaultLogLevel,
			Metrics:  true,
		},
		Orb: OrbConfig{
			Size: orb.DefaultSize,
			FPS:  DefaultFPS,
		},
		ElevenLabs: ElevenLabsConfig{
			ModelID: DefaultModelID,
		},
		Workflow: WorkflowConfig{
			AgentID: DefaultAgentID,
		},
		UserAgent: httpc.UserAgent(),
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// when path is not empty, and the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// Decode overlays YAML from r onto c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment values looked up with getenv. Empty values
// are ignored, as are ports that do not parse.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); v != "" {
		c.ElevenLabs.APIKey = v
	}
	if v := getenv(EnvVoiceID); v != "" {
		c.ElevenLabs.VoiceID = v
	}
	if v := getenv(EnvAgentID); v != "" {
		c.ElevenLabs.AgentID = v
	}
	if v := getenv(EnvWebhookURL); v != "" {
		c.Workflow.WebhookURL = v
	}
	if v := getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Server.LogLevel = strings.ToLower(v)
	}
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Validate checks that the values are usable. Credentials are optional:
// commands that need them check with RequireAgent and RequireVoice.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "Server.Port", Message: fmt.Sprintf("port %d is out of range", c.Server.Port)}
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "Server.LogLevel", Message: fmt.Sprintf("log level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel)}
	}
	if c.Orb.Size <= 0 {
		return &ConfigError{Field: "Orb.Size", Message: "orb size must be positive"}
	}
	if c.Orb.FPS <= 0 || c.Orb.FPS > 240 {
		return &ConfigError{Field: "Orb.FPS", Message: "fps must be in (0, 240]"}
	}
	if u := c.Workflow.WebhookURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return &ConfigError{Field: "Workflow.WebhookURL", Message: fmt.Sprintf("webhook URL %q must be http or https", u)}
	}
	return nil
}

// RequireAgent checks that a conversation agent is configured.
func (c *Config) RequireAgent() error {
	if c.ElevenLabs.AgentID == "" {
		return &ConfigError{Field: "ElevenLabs.AgentID", Message: EnvAgentID + " environment variable is required"}
	}
	return nil
}

// RequireVoice checks that text-to-speech credentials are configured.
func (c *Config) RequireVoice() error {
	if c.ElevenLabs.APIKey == "" {
		return &ConfigError{Field: "ElevenLabs.APIKey", Message: EnvAPIKey + " environment variable is required"}
	}
	if c.ElevenLabs.VoiceID == "" {
		return &ConfigError{Field: "ElevenLabs.VoiceID", Message: EnvVoiceID + " environment variable is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
