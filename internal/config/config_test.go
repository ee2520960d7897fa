package config

import (
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(func(string) (string, bool) { return "", false }, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.AuthMode != AuthModeNone {
		t.Fatalf("authMode=%q, want %q", cfg.AuthMode, AuthModeNone)
	}
	if cfg.MaxRoomSize != DefaultMaxRoomSize {
		t.Fatalf("MaxRoomSize=%d, want %d", cfg.MaxRoomSize, DefaultMaxRoomSize)
	}
	if cfg.MatchRetryInterval != DefaultMatchRetryInterval {
		t.Fatalf("MatchRetryInterval=%v, want %v", cfg.MatchRetryInterval, DefaultMatchRetryInterval)
	}
	if cfg.MatchSearchTimeout != DefaultMatchSearchTimeout {
		t.Fatalf("MatchSearchTimeout=%v, want %v", cfg.MatchSearchTimeout, DefaultMatchSearchTimeout)
	}
	if cfg.WSIdleTimeout != DefaultWSIdleTimeout {
		t.Fatalf("WSIdleTimeout=%v, want %v", cfg.WSIdleTimeout, DefaultWSIdleTimeout)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Fatalf("MaxMessageBytes=%d, want %d", cfg.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if cfg.SendQueueSize != DefaultSendQueueSize {
		t.Fatalf("SendQueueSize=%d, want %d", cfg.SendQueueSize, DefaultSendQueueSize)
	}
	if cfg.ICEConfigError() != nil {
		t.Fatalf("ICEConfigError=%v, want nil", cfg.ICEConfigError())
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(func(string) (string, bool) { return "", false }, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
}

func TestLogFormatExplicitOverride(t *testing.T) {
	cfg, err := load(func(string) (string, bool) { return "", false }, []string{"--mode", "prod", "--log-format", "text"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestFlagOverridesEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarMaxRoomSize: "4",
	}), []string{"--max-room-size", "3"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRoomSize != 3 {
		t.Fatalf("MaxRoomSize=%d, want 3", cfg.MaxRoomSize)
	}
}

func TestMaxRoomSize_Bounds(t *testing.T) {
	for _, raw := range []string{"0", "1", "17", "-2"} {
		_, err := load(lookupMap(map[string]string{
			envVarMaxRoomSize: raw,
		}), nil)
		if err == nil {
			t.Fatalf("expected error for %s=%s, got nil", envVarMaxRoomSize, raw)
		}
	}
}

func TestMatchIntervals_Validated(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarMatchRetryInterval: "90s",
		envVarMatchSearchTimeout: "60s",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "match-retry-interval") {
		t.Fatalf("err=%v, expected mention of match-retry-interval", err)
	}
}

func TestPingIntervalMustBeUnderIdleTimeout(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarWSIdleTimeout:  "10s",
		envVarWSPingInterval: "10s",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestMatchEnvOverrides(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarMatchRetryInterval: "2s",
		envVarMatchSearchTimeout: "30s",
		envVarMaxRoomSize:        "8",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MatchRetryInterval != 2*time.Second {
		t.Fatalf("MatchRetryInterval=%v, want 2s", cfg.MatchRetryInterval)
	}
	if cfg.MatchSearchTimeout != 30*time.Second {
		t.Fatalf("MatchSearchTimeout=%v, want 30s", cfg.MatchSearchTimeout)
	}
	if cfg.MaxRoomSize != 8 {
		t.Fatalf("MaxRoomSize=%d, want 8", cfg.MaxRoomSize)
	}
}

func TestAuthModeAPIKey_RequiresKey(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarAuthMode: "api_key",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	cfg, err := load(lookupMap(map[string]string{
		envVarAuthMode: "api_key",
		envVarAPIKey:   "sekrit",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthMode != AuthModeAPIKey || cfg.APIKey != "sekrit" {
		t.Fatalf("cfg auth=%q key=%q", cfg.AuthMode, cfg.APIKey)
	}
}

func TestAuthMode_Invalid(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarAuthMode: "jwt",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInvalidICEServersIsDeferred(t *testing.T) {
	// A broken ICE config must not fail startup entirely; the server starts and
	// surfaces the error on GET /webrtc/ice.
	cfg, err := load(lookupMap(map[string]string{
		envICEServersJSON: "not-json",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatalf("expected deferred ICE config error")
	}
}

func TestTURNRESTValidation(t *testing.T) {
	_, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret:   "s3cret",
		envVarTURNRESTUsernamePrefix: "has:colon",
	}), nil)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	cfg, err := load(lookupMap(map[string]string{
		envVarTURNRESTSharedSecret: "s3cret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.TURNREST.Enabled() {
		t.Fatalf("expected TURN REST enabled")
	}
	if cfg.TURNREST.TTLSeconds != DefaultTURNRESTTTLSeconds {
		t.Fatalf("TTLSeconds=%d, want %d", cfg.TURNREST.TTLSeconds, DefaultTURNRESTTTLSeconds)
	}
}

func TestParseAllowedOrigins_NormalizesAndValidates(t *testing.T) {
	got, err := parseAllowedOrigins("HTTPS://Example.COM:8443, http://localhost:5173/")
	if err != nil {
		t.Fatalf("parseAllowedOrigins: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2 (%v)", len(got), got)
	}
	if got[0] != "https://example.com:8443" {
		t.Fatalf("got[0]=%q, want %q", got[0], "https://example.com:8443")
	}
	if got[1] != "http://localhost:5173" {
		t.Fatalf("got[1]=%q, want %q", got[1], "http://localhost:5173")
	}
}

func TestParseAllowedOrigins_AllowsStarAndNull(t *testing.T) {
	got, err := parseAllowedOrigins("*,null")
	if err != nil {
		t.Fatalf("parseAllowedOrigins: %v", err)
	}
	if len(got) != 2 || got[0] != "*" || got[1] != "null" {
		t.Fatalf("got=%v, want [* null]", got)
	}
}

func TestParseAllowedOrigins_RejectsPathQueryAndCredentials(t *testing.T) {
	cases := []string{
		"ftp://example.com",
		"https://example.com/path",
		"https://example.com/?q=1",
		"https://user@example.com",
		"https://example.com/#frag",
	}
	for _, raw := range cases {
		if _, err := parseAllowedOrigins(raw); err == nil {
			t.Fatalf("expected error for %q, got nil", raw)
		}
	}
}
