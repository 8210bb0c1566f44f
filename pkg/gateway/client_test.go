package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pario-ai/narrator/pkg/config"
	"github.com/pario-ai/narrator/pkg/models"
	"github.com/pario-ai/narrator/pkg/provider"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	err      error
	text     string
	release  chan struct{}
	probeErr error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, _ provider.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	err, text, release := f.err, f.text, f.release
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *fakeBackend) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeErr
}

func (f *fakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memAuditor struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (m *memAuditor) Log(_ context.Context, e models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Endpoints = []config.EndpointConfig{{Name: "default", URL: "http://narrator.invalid"}}
	return cfg
}

func newTestClient(t *testing.T, b *fakeBackend, opts ...Option) *Client {
	t.Helper()
	cfg := testConfig()
	opts = append([]Option{WithBackend(b), WithSleep(noSleep)}, opts...)
	c, err := New(cfg, cfg.Endpoints[0], opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleContext() models.RawContext {
	return models.RawContext{
		SessionID: "sess-1",
		Location:  "Moonlit Courtyard",
		Inventory: []models.InventoryItem{{Name: "lantern", Category: "tool", Quantity: 1}},
		Events:    []models.Event{{Category: "quest", Text: "The bell tolls twice."}},
	}
}

func TestScenarioALiveThenCached(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{text: "A cold wind stirs the ivy."}
	c := newTestClient(t, b)

	env := c.Respond(ctx, sampleContext(), "look", "sess-1")
	if env.Source != models.SourceLive {
		t.Fatalf("expected live, got %s (%s)", env.Source, env.Reason)
	}
	if env.Text != "A cold wind stirs the ivy." || env.Attempts != 1 {
		t.Errorf("unexpected envelope %+v", env)
	}
	if env.RequestID == "" || env.Endpoint != "default" || env.SessionID != "sess-1" {
		t.Errorf("missing envelope metadata %+v", env)
	}
	if n := c.Status().Cache.Entries; n != 1 {
		t.Errorf("expected cache to hold the entry, got %d", n)
	}

	// Scenario B: same context again within TTL.
	env = c.Respond(ctx, sampleContext(), "look", "sess-1")
	if env.Source != models.SourceCached || env.Text != "A cold wind stirs the ivy." {
		t.Errorf("expected cached hit, got %+v", env)
	}
	if env.Attempts != 0 {
		t.Errorf("cached envelope should report zero attempts, got %d", env.Attempts)
	}
	if b.Calls() != 1 {
		t.Errorf("expected no additional calls, got %d total", b.Calls())
	}

	st := c.Status()
	if st.Stats.CacheHits != 1 || st.Stats.LiveSuccesses != 1 || st.CacheHitRate != 0.5 {
		t.Errorf("unexpected stats %+v", st.Stats)
	}
}

func TestCacheScopedBySession(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{text: "ok"}
	c := newTestClient(t, b)

	c.Respond(ctx, sampleContext(), "look", "sess-1")
	env := c.Respond(ctx, sampleContext(), "look", "sess-2")
	if env.Source != models.SourceLive || b.Calls() != 2 {
		t.Errorf("another session must not share the entry: %+v calls=%d", env, b.Calls())
	}
}

func TestScenarioCExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{err: &provider.StatusError{StatusCode: 503}}
	c := newTestClient(t, b)

	env := c.Respond(ctx, sampleContext(), "look", "sess-1")
	if env.Source != models.SourceFallback || env.Reason != models.ReasonRetriesExhausted {
		t.Fatalf("expected fallback after retries, got %+v", env)
	}
	if env.Text == "" {
		t.Error("fallback text must not be empty")
	}
	if env.Attempts != 3 || b.Calls() != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", env.Attempts, b.Calls())
	}

	st := c.Status()
	if st.ConsecutiveFailures != 1 || st.Health != models.Healthy {
		t.Errorf("expected one recorded failure, got %+v", st)
	}
	if st.Stats.LiveFailures != 1 || st.Stats.Fallbacks != 1 {
		t.Errorf("unexpected stats %+v", st.Stats)
	}
	if st.Cache.Entries != 0 {
		t.Error("failures must not be cached")
	}

	c.Respond(ctx, sampleContext(), "look", "sess-1")
	c.Respond(ctx, sampleContext(), "look", "sess-1")
	if st := c.Status(); st.ConsecutiveFailures != 3 || st.Health != models.Unhealthy {
		t.Errorf("expected unhealthy after 3 exhausted calls, got %+v", st)
	}
}

func TestScenarioDUnhealthyFailsFast(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{text: "never"}
	c := newTestClient(t, b)
	for range 3 {
		c.monitor.Observe(errors.New("probe failed"))
	}

	env := c.Respond(ctx, sampleContext(), "inventory", "sess-1")
	if env.Source != models.SourceFallback || env.Reason != models.ReasonServiceUnhealthy {
		t.Fatalf("expected fail-fast fallback, got %+v", env)
	}
	if env.Attempts != 0 || b.Calls() != 0 {
		t.Errorf("expected zero attempts, got %d (calls %d)", env.Attempts, b.Calls())
	}
	if c.Status().Stats.FailFasts != 1 {
		t.Errorf("expected fail-fast to be counted")
	}
}

func TestFatalRequestDoesNotTouchHealth(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{err: &provider.StatusError{StatusCode: 400}}
	c := newTestClient(t, b)

	env := c.Respond(ctx, sampleContext(), "look", "sess-1")
	if env.Reason != models.ReasonFatalRequest || env.Attempts != 1 {
		t.Errorf("expected fatal fallback after one attempt, got %+v", env)
	}
	if c.Status().ConsecutiveFailures != 0 {
		t.Error("fatal errors should not count against health")
	}
}

func TestRecoveryResetsFailures(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{err: &provider.StatusError{StatusCode: 502}}
	c := newTestClient(t, b)

	c.Respond(ctx, sampleContext(), "look", "sess-1")
	b.mu.Lock()
	b.err, b.text = nil, "recovered"
	b.mu.Unlock()

	env := c.Respond(ctx, sampleContext(), "look", "sess-1")
	if env.Source != models.SourceLive {
		t.Fatalf("expected live, got %+v", env)
	}
	if c.Status().ConsecutiveFailures != 0 {
		t.Error("success should reset the failure counter")
	}
}

func TestDedupeCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{text: "shared", release: make(chan struct{})}
	c := newTestClient(t, b)

	const callers = 5
	var wg sync.WaitGroup
	envs := make([]models.Envelope, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			envs[i] = c.Respond(ctx, sampleContext(), "look", "sess-1")
		}()
	}

	deadline := time.After(2 * time.Second)
	for b.Calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("no upstream call started")
		case <-time.After(time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(b.release)
	wg.Wait()

	if b.Calls() != 1 {
		t.Errorf("expected one upstream call, got %d", b.Calls())
	}
	for _, env := range envs {
		if env.Text != "shared" {
			t.Errorf("unexpected envelope %+v", env)
		}
	}
}

func TestCallerCancelDoesNotAbortSharedCall(t *testing.T) {
	b := &fakeBackend{text: "finished", release: make(chan struct{})}
	c := newTestClient(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan models.Envelope, 1)
	go func() { done <- c.Respond(ctx, sampleContext(), "look", "sess-1") }()

	for b.Calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	env := <-done
	if env.Source != models.SourceFallback || env.Reason != models.ReasonCanceled {
		t.Fatalf("expected canceled fallback, got %+v", env)
	}

	close(b.release)
	// The shared call completes on the client's own context and is cached.
	deadline := time.After(2 * time.Second)
	for c.Status().Cache.Entries == 0 {
		select {
		case <-deadline:
			t.Fatal("shared call was aborted by caller cancellation")
		case <-time.After(time.Millisecond):
		}
	}
	env = c.Respond(context.Background(), sampleContext(), "look", "sess-1")
	if env.Source != models.SourceCached {
		t.Errorf("expected cached result, got %+v", env)
	}
}

func TestAuditorReceivesEnvelopes(t *testing.T) {
	a := &memAuditor{}
	b := &fakeBackend{text: "logged"}
	c := newTestClient(t, b, WithAuditor(a))

	env := c.Respond(context.Background(), sampleContext(), "look", "sess-1")
	_ = c.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(a.entries))
	}
	if a.entries[0].RequestID != env.RequestID || a.entries[0].Input != "look" {
		t.Errorf("unexpected audit entry %+v", a.entries[0])
	}
}

func TestIndependentClients(t *testing.T) {
	ctx := context.Background()
	c1 := newTestClient(t, &fakeBackend{text: "one"})
	c2 := newTestClient(t, &fakeBackend{text: "two"})

	for range 3 {
		c1.monitor.Observe(errors.New("down"))
	}
	if env := c2.Respond(ctx, sampleContext(), "look", "s"); env.Source != models.SourceLive {
		t.Errorf("health state leaked between clients: %+v", env)
	}
	if c1.Status().Cache.Entries != 0 {
		t.Error("cache leaked between clients")
	}
}

func TestStartRunsMonitor(t *testing.T) {
	b := &fakeBackend{probeErr: errors.New("connection refused")}
	cfg := testConfig()
	cfg.Health.UnhealthyThreshold = 1
	c, err := New(cfg, cfg.Endpoints[0], WithBackend(b))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Start(context.Background())
	deadline := time.After(2 * time.Second)
	for c.Status().Health != models.Unhealthy {
		select {
		case <-deadline:
			t.Fatal("probe on start did not run")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Request.MaxAttempts = 0
	_, err := New(cfg, cfg.Endpoints[0], WithBackend(&fakeBackend{}))
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	_, err = New(testConfig(), config.EndpointConfig{Name: "x", Type: "http"}, WithBackend(&fakeBackend{}))
	var fe *config.FieldError
	if !errors.As(err, &fe) {
		t.Errorf("expected FieldError for missing url, got %v", err)
	}
}

func TestCacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Enabled = false
	b := &fakeBackend{text: "fresh"}
	c, err := New(cfg, cfg.Endpoints[0], WithBackend(b), WithSleep(noSleep))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Respond(context.Background(), sampleContext(), "look", "s")
	env := c.Respond(context.Background(), sampleContext(), "look", "s")
	if env.Source != models.SourceLive || b.Calls() != 2 {
		t.Errorf("expected every call to go live, got %+v calls=%d", env, b.Calls())
	}
}
