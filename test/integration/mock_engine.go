package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sukanihq/sukani/model"
)

// RecordedRequest captures one request the mock engine received.
type RecordedRequest struct {
	Method  string
	Path    string
	Body    []byte
	Headers http.Header
}

// JSON unmarshals the recorded request body into target.
func (r RecordedRequest) JSON(t *testing.T, target any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, target); err != nil {
		t.Fatalf("unmarshal recorded body: %v\nbody: %s", err, string(r.Body))
	}
}

// MockEngine simulates the workflow engine's REST API. Definitions,
// instance trees, and mapping suggestions are configured up front;
// responses and failures can be adjusted per test.
type MockEngine struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	definitions map[string][]model.ProcessNode
	trees       map[string]map[string]any
	statistics  map[string]map[string]int
	suggestions []model.MigrationSuggestion
	reports     []map[string]any
	batchID     string

	requests []RecordedRequest
	failures []injectedFailure
	delay    time.Duration
}

type injectedFailure struct {
	status  int
	message string
}

// NewMockEngine starts a mock engine server. It is closed automatically
// when the test finishes.
func NewMockEngine(t *testing.T) *MockEngine {
	t.Helper()
	m := &MockEngine{
		t:           t,
		definitions: make(map[string][]model.ProcessNode),
		trees:       make(map[string]map[string]any),
		statistics:  make(map[string]map[string]int),
		batchID:     "batch-1",
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)
	return m
}

// URL returns the mock engine's base URL.
func (m *MockEngine) URL() string {
	return m.srv.URL
}

// SetDefinition registers the node list served for a definition ID.
func (m *MockEngine) SetDefinition(definitionID string, nodes []model.ProcessNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[definitionID] = nodes
}

// SetInstanceTree registers the activity-instance tree served for an
// instance ID. Trees are raw maps so tests can shape arbitrary nesting.
func (m *MockEngine) SetInstanceTree(instanceID string, tree map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trees[instanceID] = tree
}

// SetDefinitionStatistics registers the per-activity running-instance
// counts served by a definition's statistics endpoint. Definitions without
// registered statistics report an empty list.
func (m *MockEngine) SetDefinitionStatistics(definitionID string, instancesByActivity map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statistics[definitionID] = instancesByActivity
}

// SetSuggestions registers the mapping suggestions returned by
// /migration/generate.
func (m *MockEngine) SetSuggestions(suggestions []model.MigrationSuggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suggestions = suggestions
}

// SetValidationReports registers the per-instruction reports returned by
// the validate endpoints.
func (m *MockEngine) SetValidationReports(reports []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = reports
}

// FailNext makes the next request fail with the given status and engine
// error message. Multiple calls queue up.
func (m *MockEngine) FailNext(status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, injectedFailure{status: status, message: message})
}

// SetDelay makes every subsequent request stall for d before responding.
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Close shuts the server down so connections are refused, simulating an
// unreachable engine.
func (m *MockEngine) Close() {
	m.srv.Close()
}

// Requests returns a copy of all recorded requests.
func (m *MockEngine) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request whose path contains the
// given fragment. Fails the test if none matches.
func (m *MockEngine) LastRequest(pathFragment string) RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		if strings.Contains(m.requests[i].Path, pathFragment) {
			return m.requests[i]
		}
	}
	m.t.Fatalf("no engine request with path containing %q (saw %d requests)", pathFragment, len(m.requests))
	return RecordedRequest{}
}

// CountRequests returns how many requests matched the path fragment.
func (m *MockEngine) CountRequests(pathFragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if strings.Contains(r.Path, pathFragment) {
			n++
		}
	}
	return n
}

func (m *MockEngine) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Body:    body,
		Headers: r.Header.Clone(),
	})
	delay := m.delay
	var failure *injectedFailure
	if len(m.failures) > 0 {
		failure = &m.failures[0]
		m.failures = m.failures[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if failure != nil {
		writeEngineJSON(w, failure.status, map[string]any{
			"type":    "ProcessEngineException",
			"message": failure.message,
		})
		return
	}

	path := r.URL.Path
	switch {
	case path == "/version":
		writeEngineJSON(w, 200, map[string]any{"version": "7.22.0"})

	case strings.HasPrefix(path, "/process-definition/") && strings.HasSuffix(path, "/nodes"):
		defID := strings.TrimSuffix(strings.TrimPrefix(path, "/process-definition/"), "/nodes")
		m.mu.Lock()
		nodes, ok := m.definitions[defID]
		m.mu.Unlock()
		if !ok {
			writeEngineJSON(w, 404, map[string]any{"message": "process definition not found: " + defID})
			return
		}
		writeEngineJSON(w, 200, nodes)

	case strings.HasPrefix(path, "/process-definition/") && strings.HasSuffix(path, "/statistics"):
		defID := strings.TrimSuffix(strings.TrimPrefix(path, "/process-definition/"), "/statistics")
		m.mu.Lock()
		counts := m.statistics[defID]
		m.mu.Unlock()
		stats := make([]map[string]any, 0, len(counts))
		for id, n := range counts {
			stats = append(stats, map[string]any{"id": id, "instances": n})
		}
		writeEngineJSON(w, 200, stats)

	case strings.HasPrefix(path, "/process-instance/") && strings.HasSuffix(path, "/activity-instances"):
		instID := strings.TrimSuffix(strings.TrimPrefix(path, "/process-instance/"), "/activity-instances")
		m.mu.Lock()
		tree, ok := m.trees[instID]
		m.mu.Unlock()
		if !ok {
			writeEngineJSON(w, 404, map[string]any{"message": "process instance not found: " + instID})
			return
		}
		writeEngineJSON(w, 200, tree)

	case path == "/migration/generate":
		m.mu.Lock()
		suggestions := m.suggestions
		m.mu.Unlock()
		writeEngineJSON(w, 200, map[string]any{"instructions": suggestions})

	case strings.HasSuffix(path, "/modification/validate") || path == "/migration/validate":
		m.mu.Lock()
		reports := m.reports
		m.mu.Unlock()
		writeEngineJSON(w, 200, map[string]any{"instructionReports": reports})

	case strings.HasSuffix(path, "/modification"):
		w.WriteHeader(http.StatusNoContent)

	case path == "/migration/executeAsync":
		m.mu.Lock()
		id := m.batchID
		m.mu.Unlock()
		writeEngineJSON(w, 200, map[string]any{"id": id})

	default:
		writeEngineJSON(w, 404, map[string]any{"message": "unknown path: " + path})
	}
}

func writeEngineJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Leaf returns an activity-instance tree leaf for the given activity ID.
func Leaf(activityID string) map[string]any {
	return map[string]any{
		"activityId":             activityID,
		"childActivityInstances": []any{},
	}
}

// Tree returns an activity-instance tree node with children.
func Tree(activityID string, children ...map[string]any) map[string]any {
	return map[string]any{
		"activityId":             activityID,
		"childActivityInstances": children,
	}
}
