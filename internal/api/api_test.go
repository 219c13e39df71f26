// Murmur - Realtime Chat Fanout and Activity Batching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/murmur

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/murmur/internal/activity"
	"github.com/tomtom215/murmur/internal/auth"
	"github.com/tomtom215/murmur/internal/authz"
	"github.com/tomtom215/murmur/internal/chat"
	"github.com/tomtom215/murmur/internal/deadletter"
	"github.com/tomtom215/murmur/internal/fanout"
	"github.com/tomtom215/murmur/internal/metrics"
	"github.com/tomtom215/murmur/internal/models"
)

const testSecret = "api-test-secret-with-enough-length-123"

type fakeDispatcher struct {
	mu     sync.Mutex
	events []models.ChatEvent
	err    error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, ev models.ChatEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, ev)
	return nil
}

type fakeRecent struct {
	users []models.RecentActivity
	err   error
	limit int64
}

func (f *fakeRecent) Recent(_ context.Context, limit int64) ([]models.RecentActivity, error) {
	f.limit = limit
	return f.users, f.err
}

type fakeStats struct{ stats activity.Stats }

func (f fakeStats) Stats() activity.Stats { return f.stats }

type fakeReplayer struct {
	sent []*fanout.Envelope
	err  error
}

func (f *fakeReplayer) Send(_ context.Context, env *fanout.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

type fixture struct {
	server     *httptest.Server
	jwt        *auth.JWTManager
	dispatcher *fakeDispatcher
	recent     *fakeRecent
	dlq        *deadletter.BadgerStore
	replayer   *fakeReplayer
	checkErr   error
}

func newFixture(t *testing.T, mw MiddlewareConfig) *fixture {
	t.Helper()
	return newFixtureWith(t, mw, nil)
}

// newFixtureWith lets a test adjust the dependencies before the router is built.
func newFixtureWith(t *testing.T, mw MiddlewareConfig, adjust func(*Deps)) *fixture {
	t.Helper()
	mgr, err := auth.NewJWTManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	dlq, err := deadletter.Open(deadletter.Config{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = dlq.Close() })

	reg := prometheus.NewRegistry()
	f := &fixture{
		jwt:        mgr,
		dispatcher: &fakeDispatcher{},
		recent:     &fakeRecent{},
		dlq:        dlq,
		replayer:   &fakeReplayer{},
	}
	deps := Deps{
		Gateway: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		Dispatcher:  f.dispatcher,
		Auth:        mgr,
		Recent:      f.recent,
		Activity:    fakeStats{stats: activity.Stats{Enqueued: 7, QueueLength: 2}},
		DeadLetters: dlq,
		Replayer:    f.replayer,
		Gatherer:    reg,
		Metrics:     metrics.New(reg),
		Checks: map[string]Checker{
			"redis": func(context.Context) error { return f.checkErr },
		},
		Instance:   "node-1",
		FanoutMode: "pubsub",
	}
	if adjust != nil {
		adjust(&deps)
	}
	f.server = httptest.NewServer(NewRouter(NewHandler(deps), mw))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, userID, body string) (*http.Response, models.APIResponse, []byte) {
	t.Helper()
	return f.doAs(t, method, path, userID, nil, body)
}

func (f *fixture) doAs(t *testing.T, method, path, userID string, roles []string, body string) (*http.Response, models.APIResponse, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "" {
		token, err := f.jwt.GenerateToken(userID, "", roles...)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out models.APIResponse
	_ = json.Unmarshal(raw, &out)
	return resp, out, raw
}

func TestHealth(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())

	resp, body, _ := f.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if resp.StatusCode != http.StatusOK || body.Status != "success" {
		t.Fatalf("live = %d %+v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}

	resp, _, raw := f.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready = %d", resp.StatusCode)
	}
	for _, want := range []string{`"status":"ready"`, `"instance":"node-1"`, `"fanout_mode":"pubsub"`, `"redis":"up"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("ready body %s missing %s", raw, want)
		}
	}

	f.checkErr = errors.New("connection refused")
	resp, _, raw = f.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(raw), `"not_ready"`) {
		t.Errorf("degraded ready = %d %s", resp.StatusCode, raw)
	}
}

func TestGatewayAndMetricsRoutes(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())

	resp, _, _ := f.do(t, http.MethodGet, "/ws", "", "")
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("/ws = %d, want gateway handler", resp.StatusCode)
	}

	f.do(t, http.MethodGet, "/api/v1/health/live", "", "")

	// Requests are counted after the response is written, so poll.
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, _, raw := f.do(t, http.MethodGet, "/metrics", "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("/metrics = %d", resp.StatusCode)
		}
		if strings.Contains(string(raw), `murmur_http_requests_total{method="GET",route="/api/v1/health/live",status="200"}`) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics exposition missing request counter:\n%s", raw)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPostEvent(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())

	body := `{"type":"message","recipients":["bob","bob","carol"],"message":{"id":"m1","conversation_id":"c1","content":"hi"}}`
	resp, out, raw := f.do(t, http.MethodPost, "/api/v1/events", "alice", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d %s", resp.StatusCode, raw)
	}
	if out.Status != "success" || !strings.Contains(string(raw), `"recipients":2`) {
		t.Errorf("body = %s", raw)
	}

	if len(f.dispatcher.events) != 1 {
		t.Fatalf("dispatched %d events", len(f.dispatcher.events))
	}
	ev := f.dispatcher.events[0]
	if ev.Kind != models.KindMessage || ev.Message.SenderID != "alice" || ev.Message.CreatedAt.IsZero() {
		t.Errorf("event = %+v / %+v", ev, ev.Message)
	}
}

func TestPostEvent_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		body     string
		dispErr  error
		wantCode int
		wantErr  string
	}{
		{"no token", "", `{}`, nil, http.StatusUnauthorized, ""},
		{"bad json", "alice", `{"type":`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown type", "alice", `{"type":"typing"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing message", "alice", `{"type":"message"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{
			"impersonation", "alice",
			`{"type":"message","message":{"id":"m1","conversation_id":"c1","sender_id":"mallory"}}`,
			nil, http.StatusForbidden, ErrCodeForbidden,
		},
		{
			"unresolvable", "alice",
			`{"type":"message","message":{"id":"m1","conversation_id":"c1"}}`,
			chat.ErrUnresolvable, http.StatusUnprocessableEntity, ErrCodeUnprocessable,
		},
		{
			"resolver down", "alice",
			`{"type":"message","message":{"id":"m1","conversation_id":"c1"}}`,
			errors.New("redis down"), http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultMiddlewareConfig())
			f.dispatcher.err = tt.dispErr
			resp, out, raw := f.do(t, http.MethodPost, "/api/v1/events", tt.user, tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.wantCode, raw)
			}
			if tt.wantErr != "" && (out.Error == nil || out.Error.Code != tt.wantErr) {
				t.Errorf("error = %+v, want %s", out.Error, tt.wantErr)
			}
		})
	}
}

func TestRecentActivity(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())
	f.recent.users = []models.RecentActivity{
		{UserID: "7", LastSeenAt: time.UnixMilli(1001).UTC()},
		{UserID: "42", LastSeenAt: time.UnixMilli(1000).UTC()},
	}

	resp, _, raw := f.do(t, http.MethodGet, "/api/v1/activity/recent?limit=5000", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %s", resp.StatusCode, raw)
	}
	if f.recent.limit != maxRecentLimit {
		t.Errorf("limit = %d, want clamped to %d", f.recent.limit, maxRecentLimit)
	}
	if strings.Index(string(raw), `"7"`) > strings.Index(string(raw), `"42"`) {
		t.Errorf("order not preserved: %s", raw)
	}

	resp, _, _ = f.do(t, http.MethodGet, "/api/v1/activity/recent?limit=-1", "alice", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative limit = %d", resp.StatusCode)
	}

	f.recent.err = errors.New("redis down")
	resp, _, _ = f.do(t, http.MethodGet, "/api/v1/activity/recent", "alice", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("store failure = %d", resp.StatusCode)
	}

	resp, _, raw = f.do(t, http.MethodGet, "/api/v1/activity/stats", "alice", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `"enqueued":7`) {
		t.Errorf("stats = %d %s", resp.StatusCode, raw)
	}
}

func saveDeadLetter(t *testing.T, f *fixture, env string) string {
	t.Helper()
	entry := &deadletter.Entry{Mode: "pubsub", Type: "message", Envelope: json.RawMessage(env), Error: "boom", Attempts: 4}
	if err := f.dlq.Save(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	return entry.ID
}

func TestDeadLetters(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())
	good := saveDeadLetter(t, f, `{"type":"message","recipients":["bob"],"payload":{"id":"m1"},"source":"node-1"}`)
	bad := saveDeadLetter(t, f, `{"type":"message"}`)

	resp, _, raw := f.do(t, http.MethodGet, "/api/v1/deadletters", "alice", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `"total":2`) {
		t.Fatalf("list = %d %s", resp.StatusCode, raw)
	}

	resp, _, raw = f.do(t, http.MethodPost, "/api/v1/deadletters/"+good+"/replay", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay = %d %s", resp.StatusCode, raw)
	}
	if len(f.replayer.sent) != 1 || f.replayer.sent[0].Recipients[0] != "bob" {
		t.Errorf("replayed = %+v", f.replayer.sent)
	}
	if _, err := f.dlq.Get(context.Background(), good); !errors.Is(err, deadletter.ErrNotFound) {
		t.Error("replayed entry not removed")
	}

	resp, _, _ = f.do(t, http.MethodPost, "/api/v1/deadletters/"+bad+"/replay", "alice", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("malformed replay = %d", resp.StatusCode)
	}

	resp, _, _ = f.do(t, http.MethodDelete, "/api/v1/deadletters/"+bad, "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete = %d", resp.StatusCode)
	}
	resp, out, _ := f.do(t, http.MethodDelete, "/api/v1/deadletters/"+bad, "alice", "")
	if resp.StatusCode != http.StatusNotFound || out.Error == nil || out.Error.Code != ErrCodeNotFound {
		t.Errorf("second delete = %d %+v", resp.StatusCode, out.Error)
	}
}

func TestDeadLetterReplayRestoresPartitionKey(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())

	stored := &deadletter.Entry{
		Mode:         "broker",
		Type:         "message",
		PartitionKey: "conv-9",
		Envelope:     json.RawMessage(`{"type":"message","recipients":["u2"],"payload":{"id":"m1"},"source":"node-1"}`),
		Attempts:     4,
	}
	if err := f.dlq.Save(context.Background(), stored); err != nil {
		t.Fatal(err)
	}
	derived := saveDeadLetter(t, f,
		`{"type":"message","recipients":["u2"],"payload":{"id":"m2","conversation_id":"conv-3"},"source":"node-1"}`)

	for _, id := range []string{stored.ID, derived} {
		resp, _, raw := f.do(t, http.MethodPost, "/api/v1/deadletters/"+id+"/replay", "alice", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("replay %s = %d %s", id, resp.StatusCode, raw)
		}
	}

	if len(f.replayer.sent) != 2 {
		t.Fatalf("replayed %d envelopes, want 2", len(f.replayer.sent))
	}
	if got := f.replayer.sent[0].PartitionKey(); got != "conv-9" {
		t.Errorf("stored key replay PartitionKey() = %q, want conv-9", got)
	}
	if got := f.replayer.sent[1].PartitionKey(); got != "conv-3" {
		t.Errorf("payload key replay PartitionKey() = %q, want conv-3", got)
	}
}

func TestDeadLetterReplayFailureKeepsEntry(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())
	f.replayer.err = errors.New("redis down")
	id := saveDeadLetter(t, f, `{"type":"message","recipients":["bob"],"payload":{},"source":"node-1"}`)

	resp, _, _ := f.do(t, http.MethodPost, "/api/v1/deadletters/"+id+"/replay", "alice", "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if _, err := f.dlq.Get(context.Background(), id); err != nil {
		t.Errorf("entry lost after failed replay: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, MiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, _, _ := f.do(t, http.MethodGet, "/api/v1/activity/stats", "alice", "")
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// Health is outside the limited group.
	resp, _, _ := f.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health under limit = %d", resp.StatusCode)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, DefaultMiddlewareConfig())
	resp, out, _ := f.do(t, http.MethodGet, "/nope", "", "")
	if resp.StatusCode != http.StatusNotFound || out.Error == nil || out.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d %+v", resp.StatusCode, out.Error)
	}
}

func TestAuthorization_AdminRoutes(t *testing.T) {
	enforcer, err := authz.NewEnforcer(authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatal(err)
	}
	f := newFixtureWith(t, DefaultMiddlewareConfig(), func(d *Deps) {
		d.Authorize = authz.NewMiddleware(enforcer, d.Metrics).AuthorizeRequest
	})

	resp, body, _ := f.doAs(t, http.MethodGet, "/api/v1/deadletters", "alice", nil, "")
	if resp.StatusCode != http.StatusForbidden || body.Error == nil || body.Error.Code != ErrCodeForbidden {
		t.Errorf("user list = %d %+v", resp.StatusCode, body)
	}

	resp, _, _ = f.doAs(t, http.MethodGet, "/api/v1/deadletters", "ops", []string{"admin"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin list = %d", resp.StatusCode)
	}

	resp, _, _ = f.doAs(t, http.MethodGet, "/api/v1/activity/recent", "alice", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("user activity = %d", resp.StatusCode)
	}

	resp, _, _ = f.doAs(t, http.MethodGet, "/api/v1/health/live", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must stay public, got %d", resp.StatusCode)
	}
}
