package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingCredentials is returned by Validate when the upstream client id or
// secret is absent. Harvesting cannot run without them; read-only analytics can.
var ErrMissingCredentials = errors.New("config: EXIMPEDIA_CLIENT_ID / EXIMPEDIA_CLIENT_SECRET not set")

// Config holds process settings for the upstream Eximpedia client and the
// HTTP server. Populated from environment variables (see FromEnv).
type Config struct {
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`

	// Eximpedia API
	BaseURL      string `json:"base_url"`
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`

	// Client behaviour
	MaxConcurrentRequests int           `json:"max_concurrent_requests"`
	MinRequestInterval    time.Duration `json:"min_request_interval"`
	PageSize              int           `json:"page_size"`
	TokenRefreshBuffer    time.Duration `json:"token_refresh_buffer"`
}

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		AppName:               "Hectar Commodity Flow Intelligence",
		AppVersion:            "1.0.0",
		BaseURL:               "https://web.eximpedia.app/backend/apis/v1",
		MaxConcurrentRequests: 5,
		MinRequestInterval:    time.Second,
		PageSize:              1000,
		TokenRefreshBuffer:    300 * time.Second,
	}
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset. Call godotenv.Load before this in main if a
// .env file should participate.
func FromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("EXIMPEDIA_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.ClientID = os.Getenv("EXIMPEDIA_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("EXIMPEDIA_CLIENT_SECRET")

	if n, ok := envInt("API_MAX_CONCURRENT_REQUESTS"); ok && n > 0 {
		cfg.MaxConcurrentRequests = n
	}
	if f, ok := envFloat("API_MIN_REQUEST_INTERVAL"); ok && f >= 0 {
		cfg.MinRequestInterval = time.Duration(f * float64(time.Second))
	}
	if n, ok := envInt("API_PAGE_SIZE"); ok && n > 0 {
		if n > 1000 {
			n = 1000
		}
		cfg.PageSize = n
	}
	if n, ok := envInt("TOKEN_REFRESH_BUFFER_SECONDS"); ok && n >= 0 {
		cfg.TokenRefreshBuffer = time.Duration(n) * time.Second
	}

	return cfg
}

// Validate checks that upstream credentials are present.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
