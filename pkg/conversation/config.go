package conversation

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-grace/internal/httpc"
	"github.com/teslashibe/go-grace/pkg/tts"
)

const (
	// DefaultBaseURL is the ElevenLabs REST endpoint used for signed URLs.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultWSURL is the public convai websocket endpoint.
	DefaultWSURL = "wss://api.elevenlabs.io/v1/convai/conversation"
)

// Config holds configuration for conversation providers.
type Config struct {
	// APIKey authenticates signed URL requests. Public agents work without it.
	APIKey string

	// AgentID is the ElevenLabs agent to talk to.
	AgentID string

	// BaseURL overrides the REST endpoint.
	BaseURL string

	// WSURL overrides the websocket endpoint used when no signed URL is available.
	WSURL string

	// SignedURL enables fetching a signed websocket URL before dialing.
	SignedURL bool

	// OutputFormat is the agent audio format, used to estimate playback time.
	OutputFormat tts.Encoding

	// UserAgent is sent on every request.
	UserAgent string

	// Timeout bounds the dial and the signed URL request.
	Timeout time.Duration

	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration

	// HTTPClient performs signed URL requests.
	HTTPClient *http.Client

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		WSURL:        DefaultWSURL,
		SignedURL:    true,
		OutputFormat: tts.EncodingPCM16,
		UserAgent:    httpc.UserAgent(),
		Timeout:      10 * time.Second,
		ReadTimeout:  60 * time.Second,
		HTTPClient:   httpc.Client,
		Logger:       slog.Default(),
	}
}

// Option configures a provider.
type Option func(*Config)

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AgentID == "" {
		return ErrMissingAgentID
	}
	if c.WSURL == "" {
		return ErrMissingURL
	}
	return nil
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) {
		c.AgentID = id
	}
}

// WithBaseURL overrides the REST endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithWSURL overrides the websocket endpoint.
func WithWSURL(url string) Option {
	return func(c *Config) {
		c.WSURL = url
	}
}

// WithSignedURL toggles signed URL lookup.
func WithSignedURL(enabled bool) Option {
	return func(c *Config) {
		c.SignedURL = enabled
	}
}

// WithOutputFormat sets the agent audio format.
func WithOutputFormat(enc tts.Encoding) Option {
	return func(c *Config) {
		c.OutputFormat = enc
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithTimeout sets the connection timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithReadTimeout sets the read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = d
	}
}

// WithHTTPClient sets the client used for signed URL requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
