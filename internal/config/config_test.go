package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
	if cfg.ElevenLabs.ModelID != DefaultModelID {
		t.Errorf("ModelID = %q", cfg.ElevenLabs.ModelID)
	}
	if !strings.HasPrefix(cfg.UserAgent, "GraceAssistant/") {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
}

func TestDecode(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(strings.NewReader(`
server:
  port: 9090
  log_level: debug
orb:
  size: 320
  full_sweep: true
elevenlabs:
  agent_id: agent-7
workflow:
  webhook_url: https://n8n.example.com/hook
`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.LogLevel != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Orb.Size != 320 || !cfg.Orb.FullSweep {
		t.Errorf("orb = %+v", cfg.Orb)
	}
	if cfg.Orb.FPS != DefaultFPS {
		t.Errorf("unset fps overwritten: %v", cfg.Orb.FPS)
	}
	if cfg.ElevenLabs.AgentID != "agent-7" || cfg.ElevenLabs.ModelID != DefaultModelID {
		t.Errorf("elevenlabs = %+v", cfg.ElevenLabs)
	}
	if cfg.Workflow.WebhookURL != "https://n8n.example.com/hook" || cfg.Workflow.AgentID != DefaultAgentID {
		t.Errorf("workflow = %+v", cfg.Workflow)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	cfg := Default()
	if err := cfg.Decode(strings.NewReader("server:\n  prot: 1\n")); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg := Default()
	if err := cfg.Decode(strings.NewReader("")); err != nil {
		t.Fatalf("empty document: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIKey:     "key",
		EnvVoiceID:    "voice",
		EnvAgentID:    "agent",
		EnvWebhookURL: "http://localhost:5678/webhook",
		EnvPort:       "3000",
		EnvLogLevel:   "WARN",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.ElevenLabs.APIKey != "key" || cfg.ElevenLabs.VoiceID != "voice" || cfg.ElevenLabs.AgentID != "agent" {
		t.Errorf("elevenlabs = %+v", cfg.ElevenLabs)
	}
	if cfg.Workflow.WebhookURL != env[EnvWebhookURL] {
		t.Errorf("webhook = %q", cfg.Workflow.WebhookURL)
	}
	if cfg.Server.Port != 3000 || cfg.Server.LogLevel != "warn" {
		t.Errorf("server = %+v", cfg.Server)
	}

	cfg = Default()
	cfg.ApplyEnv(func(k string) string {
		if k == EnvPort {
			return "not-a-port"
		}
		return ""
	})
	if cfg.Server.Port != DefaultPort {
		t.Errorf("bad port applied: %d", cfg.Server.Port)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPort, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Server.LogLevel != "debug" {
		t.Errorf("server = %+v", cfg.Server)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "Server.Port"},
		{"log level", func(c *Config) { c.Server.LogLevel = "loud" }, "Server.LogLevel"},
		{"size", func(c *Config) { c.Orb.Size = -1 }, "Orb.Size"},
		{"fps", func(c *Config) { c.Orb.FPS = 0 }, "Orb.FPS"},
		{"webhook", func(c *Config) { c.Workflow.WebhookURL = "ftp://x" }, "Workflow.WebhookURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireAgent(); err == nil {
		t.Error("RequireAgent passed without an agent")
	}
	if err := cfg.RequireVoice(); err == nil {
		t.Error("RequireVoice passed without credentials")
	}

	cfg.ElevenLabs.AgentID = "a"
	cfg.ElevenLabs.APIKey = "k"
	if err := cfg.RequireVoice(); err == nil || !strings.Contains(err.Error(), EnvVoiceID) {
		t.Errorf("RequireVoice = %v, want voice error", err)
	}
	cfg.ElevenLabs.VoiceID = "v"
	if err := cfg.RequireAgent(); err != nil {
		t.Errorf("RequireAgent = %v", err)
	}
	if err := cfg.RequireVoice(); err != nil {
		t.Errorf("RequireVoice = %v", err)
	}
}
