package auth

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/peerlounge/peerlounge/internal/config"
)

func TestAPIKeyVerifier(t *testing.T) {
	v := APIKeyVerifier{Expected: "sekrit"}

	if err := v.Verify("sekrit"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Verify("wrong"); err != ErrInvalidCredentials {
		t.Fatalf("err=%v, want %v", err, ErrInvalidCredentials)
	}
	if err := v.Verify(""); err != ErrInvalidCredentials {
		t.Fatalf("err=%v, want %v", err, ErrInvalidCredentials)
	}
}

func TestAPIKeyVerifier_EmptyExpectedNeverMatches(t *testing.T) {
	v := APIKeyVerifier{}
	if err := v.Verify(""); err == nil {
		t.Fatalf("expected error for empty expected key")
	}
}

func TestNewVerifier_NoneAcceptsAnything(t *testing.T) {
	v, err := NewVerifier(config.Config{AuthMode: config.AuthModeNone})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if err := v.Verify(""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := v.Verify("anything"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCredentialFromQuery(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		cred, err := CredentialFromQuery(config.AuthModeNone, url.Values{"apiKey": {"x"}})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "" {
			t.Fatalf("cred=%q, want empty", cred)
		}
	})

	t.Run("api_key", func(t *testing.T) {
		cred, err := CredentialFromQuery(config.AuthModeAPIKey, url.Values{"apiKey": {"a"}})
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "a" {
			t.Fatalf("cred=%q, want %q", cred, "a")
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := CredentialFromQuery(config.AuthModeAPIKey, url.Values{})
		if err != ErrMissingCredentials {
			t.Fatalf("err=%v, want %v", err, ErrMissingCredentials)
		}
	})
}

func TestCredentialFromRequest(t *testing.T) {
	t.Run("query param", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com/ws?apiKey=k", nil)

		cred, err := CredentialFromRequest(config.AuthModeAPIKey, req)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "k" {
			t.Fatalf("cred=%q, want %q", cred, "k")
		}
	})

	t.Run("X-API-Key header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		req.Header.Set("X-API-Key", "k")

		cred, err := CredentialFromRequest(config.AuthModeAPIKey, req)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "k" {
			t.Fatalf("cred=%q, want %q", cred, "k")
		}
	})

	t.Run("Authorization bearer header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		req.Header.Set("Authorization", "Bearer k")

		cred, err := CredentialFromRequest(config.AuthModeAPIKey, req)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "k" {
			t.Fatalf("cred=%q, want %q", cred, "k")
		}
	})

	t.Run("Authorization apikey header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		req.Header.Set("Authorization", "ApiKey k")

		cred, err := CredentialFromRequest(config.AuthModeAPIKey, req)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "k" {
			t.Fatalf("cred=%q, want %q", cred, "k")
		}
	})

	t.Run("missing", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "http://example.com/ws", nil)
		_, err := CredentialFromRequest(config.AuthModeAPIKey, req)
		if err != ErrMissingCredentials {
			t.Fatalf("err=%v, want %v", err, ErrMissingCredentials)
		}
	})
}
