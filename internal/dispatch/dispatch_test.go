package dispatch

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wikirelay/wikirelay/internal/adapter/otel"
	"github.com/wikirelay/wikirelay/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *otel.Metrics {
	t.Helper()
	m, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func webhookCfg(urls ...string) config.Webhook {
	return config.Webhook{
		URLs:           config.URLList{Values: urls},
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 2 * time.Second,
		QueueSize:      16,
	}
}

// capture records webhook POSTs for assertions.
type capture struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.requests = append(c.requests, r.Clone(r.Context()))
		c.bodies = append(c.bodies, body)
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func TestDispatchNoTargetsIsNoop(t *testing.T) {
	d := New(webhookCfg(), config.Dispatch{}, discard(), testMetrics(t))
	d.Dispatch("PageSaved", "hello")
	d.Close()
}

func TestDispatchMalformedURLsIsNoop(t *testing.T) {
	cfg := webhookCfg()
	cfg.URLs = config.URLList{Malformed: true}
	d := New(cfg, config.Dispatch{}, discard(), testMetrics(t))
	d.Dispatch("PageSaved", "hello")
	d.Close()
}

func TestDispatchPayload(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusNoContent))
	defer srv.Close()

	d := New(webhookCfg(srv.URL), config.Dispatch{}, discard(), testMetrics(t))
	d.Dispatch("PageSaved", "Alice  edited\n\nPage")
	d.Close()

	if c.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", c.count())
	}

	var body struct {
		Content         string `json:"content"`
		AllowedMentions struct {
			Parse []string `json:"parse"`
		} `json:"allowed_mentions"`
	}
	if err := json.Unmarshal(c.bodies[0], &body); err != nil {
		t.Fatal(err)
	}
	if body.Content != "Alice edited Page" {
		t.Errorf("whitespace not collapsed: %q", body.Content)
	}
	if body.AllowedMentions.Parse == nil || len(body.AllowedMentions.Parse) != 0 {
		t.Errorf("allowed_mentions.parse must be an empty array, got %v", body.AllowedMentions.Parse)
	}

	// The raw JSON must carry [] rather than null.
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(c.bodies[0], &raw)
	var mentions map[string]json.RawMessage
	_ = json.Unmarshal(raw["allowed_mentions"], &mentions)
	if string(mentions["parse"]) != "[]" {
		t.Errorf(`allowed_mentions.parse serialized as %s, want []`, mentions["parse"])
	}

	req := c.requests[0]
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("missing JSON content type")
	}
	if req.Header.Get("User-Agent") != userAgent {
		t.Errorf("unexpected user agent %q", req.Header.Get("User-Agent"))
	}
}

func TestDispatchFanOutIndependentFailure(t *testing.T) {
	var a, b capture
	srvA := httptest.NewServer(a.handler(http.StatusNoContent))
	defer srvA.Close()
	srvB := httptest.NewServer(b.handler(http.StatusOK))
	defer srvB.Close()

	// The middle target refuses connections.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	d := New(webhookCfg(srvA.URL, deadURL, srvB.URL), config.Dispatch{}, discard(), testMetrics(t))
	d.Dispatch("PageSaved", "message")
	d.Close()

	if a.count() != 1 {
		t.Errorf("target A got %d deliveries, want 1", a.count())
	}
	if b.count() != 1 {
		t.Errorf("target B got %d deliveries, want 1", b.count())
	}
}

func TestDispatchNon2xxIsSwallowed(t *testing.T) {
	var c capture
	srv := httptest.NewServer(c.handler(http.StatusTooManyRequests))
	defer srv.Close()

	d := New(webhookCfg(srv.URL), config.Dispatch{}, discard(), testMetrics(t))
	d.Dispatch("PageSaved", "message")
	d.Close()

	// Exactly one attempt: no retries on failure.
	if c.count() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", c.count())
	}
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := New(webhookCfg(srv.URL), config.Dispatch{}, discard(), testMetrics(t))

	start := time.Now()
	d.Dispatch("PageSaved", "slow target")
	elapsed := time.Since(start)

	close(release)
	d.Close()

	if elapsed > 500*time.Millisecond {
		t.Errorf("Dispatch blocked for %v", elapsed)
	}
}

func TestDispatchQueueOverflowDrops(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := webhookCfg(srv.URL)
	cfg.QueueSize = 1
	d := New(cfg, config.Dispatch{}, discard(), testMetrics(t))

	// With the worker stuck on the first delivery and a queue of one,
	// further dispatches must drop immediately instead of blocking.
	start := time.Now()
	for i := 0; i < 20; i++ {
		d.Dispatch("PageSaved", "burst")
	}
	elapsed := time.Since(start)

	close(release)
	d.Close()

	if elapsed > 500*time.Millisecond {
		t.Errorf("burst of dispatches took %v, overflow must not block", elapsed)
	}
}

func TestDecorationOrder(t *testing.T) {
	now := func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	cfg := config.Dispatch{
		UseEmojis:        true,
		Emojis:           map[string]string{"PageSaved": ":pencil:"},
		PrependTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		PrependSiteName:  true,
		SiteName:         "ExampleWiki",
		Decorations:      []string{"emoji", "timestamp", "sitename"},
	}

	msg := "Alice edited Page"
	for _, dec := range buildDecorators(cfg, now, discard()) {
		msg = dec("PageSaved", msg)
	}

	want := "ExampleWiki 2024-05-01 12:00:00 :pencil: Alice edited Page"
	if msg != want {
		t.Errorf("decorated = %q, want %q", msg, want)
	}
}

func TestDecorationUnknownEmojiSkipped(t *testing.T) {
	cfg := config.Dispatch{
		UseEmojis:   true,
		Emojis:      map[string]string{"OtherHook": ":x:"},
		Decorations: []string{"emoji"},
	}

	msg := "text"
	for _, dec := range buildDecorators(cfg, time.Now, discard()) {
		msg = dec("PageSaved", msg)
	}
	if msg != "text" {
		t.Errorf("missing emoji mapping must leave the message bare, got %q", msg)
	}
}

func TestDecorationTogglesOff(t *testing.T) {
	cfg := config.Dispatch{
		Decorations: []string{"emoji", "timestamp", "sitename"},
	}
	if decs := buildDecorators(cfg, time.Now, discard()); len(decs) != 0 {
		t.Errorf("all decorators disabled, expected none, got %d", len(decs))
	}
}

func TestSiteNameClamped(t *testing.T) {
	long := "This Wiki Name Is Much Longer Than The Limit"
	dec := siteNameDecorator(long)
	got := dec("", "msg")
	if want := long[:siteNameLimit] + " msg"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
