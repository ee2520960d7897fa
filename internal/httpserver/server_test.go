package httpserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/peerlounge/peerlounge/internal/config"
	"github.com/peerlounge/peerlounge/internal/lobby"
	"github.com/peerlounge/peerlounge/internal/metrics"
	"github.com/peerlounge/peerlounge/internal/signaling"
)

func testConfig() config.Config {
	return config.Config{
		AuthMode:             config.AuthModeNone,
		AllowedOrigins:       []string{"https://app.example.com"},
		WSIdleTimeout:        10 * time.Second,
		WSPingInterval:       time.Second,
		MaxMessageBytes:      64 * 1024,
		MaxMessagesPerSecond: 100,
		SendQueueSize:        16,
		MaxRoomSize:          2,
		MatchRetryInterval:   25 * time.Millisecond,
		MatchSearchTimeout:   time.Hour,
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.example.com:3478"}},
			{URLs: []string{"turn:turn.example.com:3478?transport=udp"}},
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := lobby.NewMemStore()
	m := metrics.New()
	signal, err := signaling.NewServer(cfg, logger, m, store, store)
	if err != nil {
		t.Fatalf("signaling.NewServer: %v", err)
	}

	s, err := New(cfg, logger, BuildInfo{Commit: "abc123", BuildTime: "2026-01-01T00:00:00Z"}, signal, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.ready.Store(true)

	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		signal.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, want int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("%s: status = %d, want %d", url, resp.StatusCode, want)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return body
}

func TestHealthVersionReady(t *testing.T) {
	s, ts := newTestServer(t, testConfig())

	if body := getJSON(t, ts.URL+"/healthz", http.StatusOK); body["ok"] != true {
		t.Fatalf("healthz body: %v", body)
	}
	if body := getJSON(t, ts.URL+"/version", http.StatusOK); body["commit"] != "abc123" {
		t.Fatalf("version body: %v", body)
	}
	if body := getJSON(t, ts.URL+"/readyz", http.StatusOK); body["ready"] != true {
		t.Fatalf("readyz body: %v", body)
	}

	s.ready.Store(false)
	getJSON(t, ts.URL+"/readyz", http.StatusServiceUnavailable)
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	body := getJSON(t, ts.URL+"/stats", http.StatusOK)
	for _, key := range []string{"connections", "waiting", "rooms"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("stats missing %q: %v", key, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "peerlounge_events_total") {
		t.Fatalf("metrics response: %d %s", resp.StatusCode, raw)
	}
}

func TestICEWithoutTURNREST(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	body := getJSON(t, ts.URL+"/webrtc/ice", http.StatusOK)
	servers, ok := body["iceServers"].([]any)
	if !ok || len(servers) != 2 {
		t.Fatalf("iceServers: %v", body)
	}
	if _, ok := body["ttlSeconds"]; ok {
		t.Fatalf("ttlSeconds present without TURN REST: %v", body)
	}
}

func TestICEInjectsTURNRESTCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.TURNREST = config.TurnRESTConfig{
		SharedSecret:   "sekrit",
		TTLSeconds:     600,
		UsernamePrefix: "peerlounge",
		Realm:          "turn.example.com",
	}
	_, ts := newTestServer(t, cfg)

	body := getJSON(t, ts.URL+"/webrtc/ice", http.StatusOK)
	if body["ttlSeconds"] != float64(600) {
		t.Fatalf("ttlSeconds: %v", body)
	}
	if body["realm"] != "turn.example.com" {
		t.Fatalf("realm: %v", body)
	}
	servers := body["iceServers"].([]any)

	stun := servers[0].(map[string]any)
	if _, ok := stun["username"]; ok && stun["username"] != "" {
		t.Fatalf("stun entry gained credentials: %v", stun)
	}

	turn := servers[1].(map[string]any)
	username, _ := turn["username"].(string)
	if !strings.Contains(username, ":peerlounge:") {
		t.Fatalf("turn username: %v", turn)
	}
	if cred, _ := turn["credential"].(string); cred == "" {
		t.Fatalf("turn credential missing: %v", turn)
	}
}

func TestOriginPolicy(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/webrtc/ice", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disallowed origin: status = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/webrtc/ice", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("allowed origin: status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestWebSocketUpgradeThroughMiddleware(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","userId":"u1","username":"alice"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "waiting" {
		t.Fatalf("expected waiting frame, got %s", raw)
	}
}

func TestWithTURNRESTCredentials(t *testing.T) {
	servers := []webrtc.ICEServer{
		{URLs: []string{"stun:stun.example.com"}},
		{URLs: []string{"TURNS:turn.example.com:5349"}},
	}
	out := withTURNRESTCredentials(servers, "u", "c")
	if out[0].Username != "" {
		t.Fatalf("stun entry modified: %+v", out[0])
	}
	if out[1].Username != "u" || out[1].Credential != "c" {
		t.Fatalf("turns entry not injected: %+v", out[1])
	}
	// Original slice untouched.
	if servers[1].Username != "" {
		t.Fatal("input mutated")
	}

	if got := withTURNRESTCredentials([]webrtc.ICEServer{}, "u", "c"); got == nil || len(got) != 0 {
		t.Fatalf("empty slice handling: %v", got)
	}
}
