package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/peerlounge/peerlounge/internal/config"
)

type Verifier interface {
	Verify(credential string) error
}

// NewVerifier builds the verifier for the configured auth mode.
//
// AuthModeNone returns a verifier that accepts everything; anonymous access is
// the default deployment shape.
func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return allowAllVerifier{}, nil
	case config.AuthModeAPIKey:
		return APIKeyVerifier{Expected: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

type allowAllVerifier struct{}

func (allowAllVerifier) Verify(string) error {
	return nil
}

var ErrMissingCredentials = errors.New("missing credentials")

// CredentialFromRequest extracts the client credential for the given mode.
//
// Browsers cannot set custom headers on WebSocket upgrades, so the query
// parameter form (?apiKey=...) is accepted alongside X-API-Key and
// Authorization headers.
func CredentialFromRequest(mode config.AuthMode, r *http.Request) (string, error) {
	if mode == config.AuthModeNone {
		return "", nil
	}

	if cred, err := CredentialFromQuery(mode, r.URL.Query()); err == nil {
		return cred, nil
	}

	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key, nil
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	for _, scheme := range []string{"Bearer ", "ApiKey "} {
		if len(authz) > len(scheme) && strings.EqualFold(authz[:len(scheme)], scheme) {
			if cred := strings.TrimSpace(authz[len(scheme):]); cred != "" {
				return cred, nil
			}
		}
	}

	return "", ErrMissingCredentials
}

func CredentialFromQuery(mode config.AuthMode, q url.Values) (string, error) {
	switch mode {
	case config.AuthModeNone:
		return "", nil
	case config.AuthModeAPIKey:
		if apiKey := q.Get("apiKey"); apiKey != "" {
			return apiKey, nil
		}
		return "", ErrMissingCredentials
	default:
		return "", fmt.Errorf("unsupported auth mode %q", mode)
	}
}
