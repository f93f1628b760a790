package config

import (
	"testing"
	"time"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.MaxConcurrentRequests != 5 {
		t.Errorf("MaxConcurrentRequests = %v, want 5", c.MaxConcurrentRequests)
	}
	if c.MinRequestInterval != time.Second {
		t.Errorf("MinRequestInterval = %v, want 1s", c.MinRequestInterval)
	}
	if c.PageSize != 1000 {
		t.Errorf("PageSize = %v, want 1000", c.PageSize)
	}
	if c.TokenRefreshBuffer != 300*time.Second {
		t.Errorf("TokenRefreshBuffer = %v, want 5m", c.TokenRefreshBuffer)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("EXIMPEDIA_BASE_URL", "https://example.test/apis/v1")
	t.Setenv("EXIMPEDIA_CLIENT_ID", "id-123")
	t.Setenv("EXIMPEDIA_CLIENT_SECRET", "secret-456")
	t.Setenv("API_MAX_CONCURRENT_REQUESTS", "3")
	t.Setenv("API_MIN_REQUEST_INTERVAL", "0.5")
	t.Setenv("API_PAGE_SIZE", "2500")
	t.Setenv("TOKEN_REFRESH_BUFFER_SECONDS", "120")

	c := FromEnv()
	if c.BaseURL != "https://example.test/apis/v1" {
		t.Errorf("BaseURL = %q", c.BaseURL)
	}
	if c.MaxConcurrentRequests != 3 {
		t.Errorf("MaxConcurrentRequests = %v, want 3", c.MaxConcurrentRequests)
	}
	if c.MinRequestInterval != 500*time.Millisecond {
		t.Errorf("MinRequestInterval = %v, want 500ms", c.MinRequestInterval)
	}
	// Page size is capped at the upstream maximum.
	if c.PageSize != 1000 {
		t.Errorf("PageSize = %v, want 1000 (capped)", c.PageSize)
	}
	if c.TokenRefreshBuffer != 2*time.Minute {
		t.Errorf("TokenRefreshBuffer = %v, want 2m", c.TokenRefreshBuffer)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	t.Setenv("EXIMPEDIA_CLIENT_ID", "")
	t.Setenv("EXIMPEDIA_CLIENT_SECRET", "")
	c := FromEnv()
	if err := c.Validate(); err != ErrMissingCredentials {
		t.Errorf("Validate() = %v, want ErrMissingCredentials", err)
	}
}

func TestFromEnv_GarbageIgnored(t *testing.T) {
	t.Setenv("API_MAX_CONCURRENT_REQUESTS", "not-a-number")
	t.Setenv("API_MIN_REQUEST_INTERVAL", "")
	c := FromEnv()
	if c.MaxConcurrentRequests != 5 {
		t.Errorf("MaxConcurrentRequests = %v, want default 5", c.MaxConcurrentRequests)
	}
}
