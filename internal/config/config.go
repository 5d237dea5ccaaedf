// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/utils"
)

// Config holds application configuration
type Config struct {
	APIURL  string // Base URL of the REST API, e.g. http://localhost:8000/api
	PushURL string // Websocket URL of the push channel (derived from APIURL when unset)

	LogLevel  string
	LogPretty bool
	LogFile   string // Terminal dashboard logs here instead of stdout
	Port      int    // Status API port
	DevMode   bool   // Disables response compression

	PollInterval          time.Duration // positions, trades, performance
	SentimentPollInterval time.Duration
	HTTPTimeout           time.Duration
	HTTPRateLimit         float64 // requests per second across all resources

	SignalBufferSize int // Signals kept in memory
	SignalFeedSize   int // Signals shown in the live feed

	Reconnect ReconnectConfig

	DefaultTickers  []string
	TickerLimit     int
	TradesLimit     int
	SentimentWindow domain.Window
	SentimentLimit  int
}

// ReconnectConfig controls push channel backoff
type ReconnectConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	apiURL := strings.TrimRight(getEnv("MONITOR_API_URL", "http://localhost:8000/api"), "/")

	pushURL := getEnv("MONITOR_WS_URL", "")
	if pushURL == "" {
		derived, err := DerivePushURL(apiURL)
		if err != nil {
			return nil, err
		}
		pushURL = derived
	}

	cfg := &Config{
		APIURL:                apiURL,
		PushURL:               pushURL,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogPretty:             getEnvAsBool("LOG_PRETTY", true),
		LogFile:               getEnv("LOG_FILE", "monitor.log"),
		Port:                  getEnvAsInt("MONITOR_PORT", 8090),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		PollInterval:          getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		SentimentPollInterval: getEnvAsDuration("SENTIMENT_POLL_INTERVAL", 30*time.Second),
		HTTPTimeout:           getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		HTTPRateLimit:         getEnvAsFloat("HTTP_RATE_LIMIT", 10),
		SignalBufferSize:      getEnvAsInt("SIGNAL_BUFFER_SIZE", 50),
		SignalFeedSize:        getEnvAsInt("SIGNAL_FEED_SIZE", 15),
		Reconnect: ReconnectConfig{
			BaseDelay:   getEnvAsDuration("RECONNECT_BASE_DELAY", time.Second),
			MaxDelay:    getEnvAsDuration("RECONNECT_MAX_DELAY", 30*time.Second),
			MaxAttempts: getEnvAsInt("RECONNECT_MAX_ATTEMPTS", 10),
		},
		DefaultTickers:  getEnvAsList("DEFAULT_TICKERS", []string{"AAPL", "TSLA", "GME"}),
		TickerLimit:     getEnvAsInt("TICKER_LIMIT", 10),
		TradesLimit:     getEnvAsInt("TRADES_LIMIT", 50),
		SentimentWindow: domain.Window(getEnv("SENTIMENT_WINDOW", string(domain.Window5m))),
		SentimentLimit:  getEnvAsInt("SENTIMENT_LIMIT", 100),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if _, err := parseHTTPURL(c.APIURL); err != nil {
		return fmt.Errorf("invalid MONITOR_API_URL: %w", err)
	}

	u, err := url.Parse(c.PushURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("invalid MONITOR_WS_URL %q: expected ws:// or wss:// URL", c.PushURL)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid MONITOR_PORT %d", c.Port)
	}
	if c.PollInterval <= 0 || c.SentimentPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.HTTPRateLimit <= 0 {
		return fmt.Errorf("HTTP_RATE_LIMIT must be positive")
	}
	if c.SignalBufferSize <= 0 {
		return fmt.Errorf("SIGNAL_BUFFER_SIZE must be positive")
	}
	if c.SignalFeedSize <= 0 || c.SignalFeedSize > c.SignalBufferSize {
		return fmt.Errorf("SIGNAL_FEED_SIZE must be between 1 and SIGNAL_BUFFER_SIZE (%d)", c.SignalBufferSize)
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect delays must satisfy 0 < base <= max")
	}
	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be positive")
	}
	if c.TickerLimit <= 0 || c.TradesLimit <= 0 || c.SentimentLimit <= 0 {
		return fmt.Errorf("ticker, trades and sentiment limits must be positive")
	}
	if !c.SentimentWindow.Valid() {
		return fmt.Errorf("invalid SENTIMENT_WINDOW %q", c.SentimentWindow)
	}

	return nil
}

// DerivePushURL maps the API origin to the push channel endpoint:
// http -> ws, https -> wss, path /ws.
func DerivePushURL(apiURL string) (string, error) {
	u, err := parseHTTPURL(apiURL)
	if err != nil {
		return "", fmt.Errorf("cannot derive push URL: %w", err)
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}

	return (&url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}).String(), nil
}

// Origin returns scheme://host of the API URL
func (c *Config) Origin() string {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return c.APIURL
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an http(s) URL", raw)
	}
	return u, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList parses a comma separated ticker list
func getEnvAsList(key string, defaultValue []string) []string {
	if out := utils.ParseTickers(os.Getenv(key)); out != nil {
		return out
	}
	return defaultValue
}
