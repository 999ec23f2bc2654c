package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wikirelay/wikirelay/internal/adapter/otel"
	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/middleware"
	"github.com/wikirelay/wikirelay/internal/render"
	"github.com/wikirelay/wikirelay/internal/service"
	"github.com/wikirelay/wikirelay/internal/suppress"
)

type fakeDispatcher struct {
	messages []string
	targets  int
}

func (f *fakeDispatcher) Dispatch(_, message string) {
	f.messages = append(f.messages, message)
}

func (f *fakeDispatcher) TargetCount() int { return f.targets }

func newTestServer(t *testing.T, ingest config.Ingest, supp config.Suppression) (*httptest.Server, *fakeDispatcher) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}

	disp := &fakeDispatcher{targets: 2}
	relay := service.NewRelay(
		suppress.NewFilter(supp, log),
		render.New(config.Defaults().Format),
		disp,
		supp,
		log,
		metrics,
	)

	h := &Handlers{Relay: relay, Targets: disp, BodyLimit: 64 << 10, Log: log}
	r := chi.NewRouter()
	MountRoutes(r, h, ingest)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, disp
}

const pageSavedBody = `{
	"kind": "PageSaved",
	"actor": {"name": "Alice", "profile_url": "https://wiki.example/wiki/User:Alice"},
	"page": {"text": "Main Page", "url": "https://wiki.example/wiki/Main_Page"},
	"comment": "fix typo"
}`

func TestIngestEventAccepted(t *testing.T) {
	srv, disp := newTestServer(t, config.Ingest{}, config.Suppression{})

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(pageSavedBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(disp.messages) != 1 {
		t.Fatalf("dispatched %d messages, want 1", len(disp.messages))
	}
	if !strings.Contains(disp.messages[0], "Main Page") {
		t.Errorf("message %q does not mention the page", disp.messages[0])
	}
}

func TestIngestEventMalformed(t *testing.T) {
	srv, disp := newTestServer(t, config.Ingest{}, config.Suppression{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"unknown kind", `{"kind": "SomethingElse"}`},
		{"missing kind", `{"actor": {"name": "Alice"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
	if len(disp.messages) != 0 {
		t.Errorf("malformed payloads reached the dispatcher: %v", disp.messages)
	}
}

func TestIngestEventSuppressedStillAccepted(t *testing.T) {
	supp := config.Suppression{Hooks: config.StringList{Values: []string{"PageSaved"}}}
	srv, disp := newTestServer(t, config.Ingest{}, supp)

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(pageSavedBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202 even when suppressed", resp.StatusCode)
	}
	if len(disp.messages) != 0 {
		t.Errorf("suppressed event was dispatched: %v", disp.messages)
	}
}

func TestIngestEventHMAC(t *testing.T) {
	const secret = "hook-secret"
	srv, disp := newTestServer(t, config.Ingest{HMACSecret: secret, BodyLimit: 64 << 10}, config.Suppression{})

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(pageSavedBody))
	goodSig := hex.EncodeToString(mac.Sum(nil))

	tests := []struct {
		name string
		sig  string
		want int
	}{
		{"valid signature", goodSig, http.StatusAccepted},
		{"wrong signature", strings.Repeat("ab", 32), http.StatusForbidden},
		{"no signature", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/events", strings.NewReader(pageSavedBody))
			if err != nil {
				t.Fatal(err)
			}
			if tt.sig != "" {
				req.Header.Set(middleware.SignatureHeader, tt.sig)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
	if len(disp.messages) != 1 {
		t.Errorf("dispatched %d messages, want 1 (valid signature only)", len(disp.messages))
	}
}

func TestIngestEventBodyLimit(t *testing.T) {
	srv, _ := newTestServer(t, config.Ingest{}, config.Suppression{})

	big := `{"kind": "PageSaved", "comment": "` + strings.Repeat("x", 128<<10) + `"}`
	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(big))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.Ingest{}, config.Suppression{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Targets int    `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
	if body.Targets != 2 {
		t.Errorf("targets = %d, want 2", body.Targets)
	}
}
