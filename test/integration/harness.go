// Package integration provides a reusable test harness for end-to-end
// integration testing of the Sukani console server. It starts a full HTTP
// server backed by a mock workflow engine, in-memory stores, and a test
// JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/config"
	"github.com/sukanihq/sukani/internal/engine"
	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/internal/transport"
)

// TestHarness encapsulates a fully wired console instance with a mock
// engine for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Engine      *MockEngine
	Manager     *session.Manager
	DraftStore  *session.MemoryDraftStore
	CommitStore *session.MemoryCommitStore
	Autosaver   *session.Autosaver

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	handlerTimeout time.Duration
	engineTimeout  time.Duration
	autosaveDelay  time.Duration
	idleTTL        time.Duration
	seedFixtures   bool
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithEngineTimeout sets the engine client's HTTP timeout. Useful together
// with MockEngine.SetDelay to provoke timeout responses.
func WithEngineTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.engineTimeout = d
	}
}

// WithAutosaveDelay sets the draft autosave debounce delay.
func WithAutosaveDelay(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.autosaveDelay = d
	}
}

// WithIdleTTL sets the session idle expiry.
func WithIdleTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.idleTTL = d
	}
}

// WithoutFixtures skips seeding the default invoice process fixtures into
// the mock engine.
func WithoutFixtures() HarnessOption {
	return func(c *harnessConfig) {
		c.seedFixtures = false
	}
}

// NewTestHarness creates and starts a full console test instance. The server
// is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		engineTimeout:  5 * time.Second,
		autosaveDelay:  10 * time.Millisecond,
		idleTTL:        time.Minute,
		seedFixtures:   true,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t}
	log := zap.NewNop()

	// Step 1: Start the mock engine and seed default fixtures.
	h.Engine = NewMockEngine(t)
	if hc.seedFixtures {
		SeedInvoiceFixtures(h.Engine)
	}

	// Step 2: Engine client pointed at the mock.
	engineClient := engine.NewClient(h.Engine.URL(), hc.engineTimeout, log)

	// Step 3: In-memory stores, autosaver, and the session manager.
	h.DraftStore = session.NewMemoryDraftStore()
	h.CommitStore = session.NewMemoryCommitStore()
	h.Autosaver = session.NewAutosaver(h.DraftStore, hc.autosaveDelay, log)
	h.Manager = session.NewManager(engineClient, h.DraftStore, h.CommitStore, h.Autosaver, hc.idleTTL, log)

	// Step 4: JWT issuer.
	h.issuer = newTokenIssuer(t)

	// Step 5: Config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity.Issuer = h.issuer.Issuer()
	h.cfg.Identity.Audience = h.issuer.Audience()
	h.cfg.Identity.JWKSURL = h.issuer.JWKSURL()
	h.cfg.Identity.Algorithms = []string{"RS256"}

	// Step 6: Router with the full middleware chain.
	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), 1*time.Hour, log)
	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Logger:       log,
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, jwks),
		Sessions:     h.Manager,
		HealthHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		}),
		ReadyHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ready"}`))
		}),
	})

	// Step 7: Start the test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// POSTWithHeaders performs an authenticated POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, headers)
}

// PUT performs an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PUT", path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target. The
// target is reset to its zero value first, so fields omitted from the
// response (omitempty) never retain values from an earlier decode into the
// same variable.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if rv := reflect.ValueOf(target); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Session helpers ---

// CreateModification opens a modification planning session and returns its ID.
func (h *TestHarness) CreateModification(t *testing.T, token, instanceID, definitionID string) string {
	t.Helper()
	resp := h.POST("/sessions/modifications", map[string]any{
		"instance_id":   instanceID,
		"definition_id": definitionID,
	}, token)
	var view SessionView
	h.AssertJSON(t, resp, http.StatusCreated, &view)
	if view.SessionID == "" {
		t.Fatal("create modification returned empty session_id")
	}
	return view.SessionID
}

// CreateMigration opens a migration planning session and returns its ID.
func (h *TestHarness) CreateMigration(t *testing.T, token, sourceDefID, targetDefID string) string {
	t.Helper()
	resp := h.POST("/sessions/migrations", map[string]any{
		"source_definition_id": sourceDefID,
		"target_definition_id": targetDefID,
	}, token)
	var view SessionView
	h.AssertJSON(t, resp, http.StatusCreated, &view)
	if view.SessionID == "" {
		t.Fatal("create migration returned empty session_id")
	}
	return view.SessionID
}

// SessionView mirrors the JSON projection returned by session endpoints.
type SessionView struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`

	InstanceID        string            `json:"instance_id"`
	DefinitionID      string            `json:"definition_id"`
	Nodes             []map[string]any  `json:"nodes"`
	ActiveActivityIDs []string          `json:"active_activity_ids"`
	Operations        []map[string]any  `json:"operations"`
	PendingMoveSource string            `json:"pending_move_source"`
	NodeStatuses      map[string]string `json:"node_statuses"`

	SourceDefinitionID string           `json:"source_definition_id"`
	TargetDefinitionID string           `json:"target_definition_id"`
	Mapping            []map[string]any `json:"mapping"`
}

// --- Default test claims ---

// OperatorClaims returns TestClaims for a workflow operator.
func OperatorClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-operator",
		TenantID:  "acme-corp",
		Email:     "operator@acme.example.com",
		Roles:     []string{"workflow_operator"},
	}
}

// AuditorClaims returns TestClaims for a read-oriented auditor user.
func AuditorClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-auditor",
		TenantID:  "acme-corp",
		Email:     "auditor@acme.example.com",
		Roles:     []string{"workflow_auditor"},
	}
}

// OtherTenantClaims returns TestClaims for an operator in a different tenant.
func OtherTenantClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-rival",
		TenantID:  "globex-inc",
		Email:     "operator@globex.example.com",
		Roles:     []string{"workflow_operator"},
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
