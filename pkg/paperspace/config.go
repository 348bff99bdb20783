package paperspace

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Default endpoints.
const (
	DefaultAPIURL  = "https://api.paperspace.io"
	DefaultLogsURL = "https://logs.paperspace.io"
)

// DefaultLogPageLimit caps the number of lines requested per logs call.
const DefaultLogPageLimit = 1000

// DefaultRateLimit is the sustained request rate (requests/second).
const DefaultRateLimit = 10

// DefaultTimeout bounds a single non-streaming API request, and the wait for
// response headers on streaming ones.
const DefaultTimeout = 60 * time.Second

// Config configures a Client.
type Config struct {
	// APIKey is sent as the x-api-key header (required).
	APIKey string

	// APIURL is the jobs API base URL. Empty uses DefaultAPIURL.
	APIURL string

	// LogsURL is the logs API base URL. Empty uses DefaultLogsURL.
	LogsURL string

	// LogPageLimit is the per-call log line cap. Zero uses DefaultLogPageLimit.
	LogPageLimit int

	// RateLimit is the sustained request rate. Zero uses DefaultRateLimit;
	// negative disables pacing.
	RateLimit float64

	// HTTPClient overrides the transport. Nil uses a client with DefaultTimeout.
	// Workspace uploads and artifact downloads use a copy with Timeout cleared.
	HTTPClient *http.Client

	// Logger receives request-level debug logs. Nil disables them.
	Logger *zap.Logger
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "APIKey", Message: "api key is required (set PAPERSPACE_API_KEY or --api-key)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "paperspace config: " + e.Field + ": " + e.Message
}
