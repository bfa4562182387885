package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/observability"
	"github.com/sukanihq/sukani/model"
)

const defaultTimeout = 10 * time.Second

// Client is the REST implementation of Gateway. One client serves all
// tenants; tenancy travels in request headers.
//
// The client never retries. Validate is cheap to re-issue from the UI, and
// execute is deliberately not idempotent on the engine side.
type Client struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
	metrics *observability.Metrics
}

// NewClient creates an engine client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: log,
	}
}

// SetMetrics attaches the metrics recorder. Optional.
func (c *Client) SetMetrics(mx *observability.Metrics) {
	c.metrics = mx
}

// ProcessNodes implements Gateway.
func (c *Client) ProcessNodes(ctx context.Context, rctx *model.RequestContext, definitionID string) ([]model.ProcessNode, error) {
	var nodes []model.ProcessNode
	path := "/process-definition/" + url.PathEscape(definitionID) + "/nodes"
	if err := c.do(ctx, rctx, "process_nodes", http.MethodGet, path, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// activityInstance mirrors the engine's activity-instance tree node.
type activityInstance struct {
	ActivityID             string             `json:"activityId"`
	ChildActivityInstances []activityInstance `json:"childActivityInstances"`
}

// ActiveActivityIDs implements Gateway. The engine returns the instance's
// activity-instance tree; tokens sit at the leaves.
func (c *Client) ActiveActivityIDs(ctx context.Context, rctx *model.RequestContext, instanceID string) ([]string, error) {
	var root activityInstance
	path := "/process-instance/" + url.PathEscape(instanceID) + "/activity-instances"
	if err := c.do(ctx, rctx, "activity_instances", http.MethodGet, path, nil, &root); err != nil {
		return nil, err
	}
	return collectLeaves(root, nil), nil
}

func collectLeaves(node activityInstance, acc []string) []string {
	if len(node.ChildActivityInstances) == 0 {
		if node.ActivityID != "" {
			acc = append(acc, node.ActivityID)
		}
		return acc
	}
	for _, child := range node.ChildActivityInstances {
		acc = collectLeaves(child, acc)
	}
	return acc
}

// activityStatistic mirrors one entry of the engine's per-activity instance
// statistics for a definition.
type activityStatistic struct {
	ID        string `json:"id"`
	Instances int    `json:"instances"`
}

// DefinitionActiveActivityIDs implements Gateway. The engine reports an
// instance count per activity; activities with zero running instances are
// dropped.
func (c *Client) DefinitionActiveActivityIDs(ctx context.Context, rctx *model.RequestContext, definitionID string) ([]string, error) {
	var stats []activityStatistic
	path := "/process-definition/" + url.PathEscape(definitionID) + "/statistics"
	if err := c.do(ctx, rctx, "definition_statistics", http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stats))
	for _, s := range stats {
		if s.Instances > 0 {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

// GenerateMappings implements Gateway.
func (c *Client) GenerateMappings(ctx context.Context, rctx *model.RequestContext, sourceDefID, targetDefID string, updateEventTriggers bool) ([]model.MigrationSuggestion, error) {
	req := struct {
		SourceProcessDefinitionID string `json:"sourceProcessDefinitionId"`
		TargetProcessDefinitionID string `json:"targetProcessDefinitionId"`
		UpdateEventTriggers       bool   `json:"updateEventTriggers"`
	}{sourceDefID, targetDefID, updateEventTriggers}

	var resp struct {
		Instructions []model.MigrationSuggestion `json:"instructions"`
	}
	if err := c.do(ctx, rctx, "generate_mappings", http.MethodPost, "/migration/generate", req, &resp); err != nil {
		return nil, err
	}
	return resp.Instructions, nil
}

// modificationRequest is the engine's modification payload.
type modificationRequest struct {
	Instructions        []model.Instruction `json:"instructions"`
	SkipCustomListeners bool                `json:"skipCustomListeners"`
	SkipIoMappings      bool                `json:"skipIoMappings"`
	Annotation          string              `json:"annotation,omitempty"`
}

func newModificationRequest(set model.InstructionSet) modificationRequest {
	return modificationRequest{
		Instructions:        set.Instructions,
		SkipCustomListeners: set.Options.SkipCustomListeners,
		SkipIoMappings:      set.Options.SkipIoMappings,
		Annotation:          set.Options.Annotation,
	}
}

// instructionReports is the engine's dry-run response envelope.
type instructionReports struct {
	InstructionReports []struct {
		Failures []string `json:"failures"`
		Warnings []string `json:"warnings"`
	} `json:"instructionReports"`
}

func (r instructionReports) toReport() model.ValidationReport {
	out := model.ValidationReport{
		InstructionReports: make([]model.InstructionReport, len(r.InstructionReports)),
	}
	for i, ir := range r.InstructionReports {
		out.InstructionReports[i] = model.InstructionReport{
			Failures: ir.Failures,
			Warnings: ir.Warnings,
		}
	}
	return out
}

// ValidateModification implements Gateway.
func (c *Client) ValidateModification(ctx context.Context, rctx *model.RequestContext, instanceID string, set model.InstructionSet) (model.ValidationReport, error) {
	var resp instructionReports
	path := "/process-instance/" + url.PathEscape(instanceID) + "/modification/validate"
	if err := c.do(ctx, rctx, "validate_modification", http.MethodPost, path, newModificationRequest(set), &resp); err != nil {
		return model.ValidationReport{}, err
	}
	return resp.toReport(), nil
}

// ExecuteModification implements Gateway.
func (c *Client) ExecuteModification(ctx context.Context, rctx *model.RequestContext, instanceID string, set model.InstructionSet) (model.CommitResult, error) {
	path := "/process-instance/" + url.PathEscape(instanceID) + "/modification"
	if err := c.do(ctx, rctx, "execute_modification", http.MethodPost, path, newModificationRequest(set), nil); err != nil {
		return model.CommitResult{}, err
	}
	return model.CommitResult{InstanceID: instanceID}, nil
}

// ValidateMigration implements Gateway.
func (c *Client) ValidateMigration(ctx context.Context, rctx *model.RequestContext, plan MigrationPlan) (model.ValidationReport, error) {
	req := struct {
		MigrationPlan MigrationPlan `json:"migrationPlan"`
	}{plan}

	var resp instructionReports
	if err := c.do(ctx, rctx, "validate_migration", http.MethodPost, "/migration/validate", req, &resp); err != nil {
		return model.ValidationReport{}, err
	}
	return resp.toReport(), nil
}

// ExecuteMigration implements Gateway.
func (c *Client) ExecuteMigration(ctx context.Context, rctx *model.RequestContext, plan MigrationPlan, instanceIDs []string, opts model.ExecutionOptions) (model.CommitResult, error) {
	req := struct {
		MigrationPlan       MigrationPlan `json:"migrationPlan"`
		ProcessInstanceIDs  []string      `json:"processInstanceIds"`
		SkipCustomListeners bool          `json:"skipCustomListeners"`
		SkipIoMappings      bool          `json:"skipIoMappings"`
		Annotation          string        `json:"annotation,omitempty"`
	}{plan, instanceIDs, opts.SkipCustomListeners, opts.SkipIoMappings, opts.Annotation}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, rctx, "execute_migration", http.MethodPost, "/migration/executeAsync", req, &resp); err != nil {
		return model.CommitResult{}, err
	}
	return model.CommitResult{BatchID: resp.ID}, nil
}

// HealthCheck probes the engine's version endpoint. Used by the readiness
// endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, nil, "version", http.MethodGet, "/version", nil, nil)
}

// do performs one request against the engine and decodes the response into
// out (which may be nil for calls whose body is ignored). The op name labels
// the call in metrics.
func (c *Client) do(ctx context.Context, rctx *model.RequestContext, op, method, path string, in, out any) (err error) {
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.RecordEngineRequest(op, outcomeLabel(err), time.Since(start))
		}()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("engine: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("engine: build request: %w", err)
	}
	req.Header = buildHeaders(rctx, method)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.mapTransportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20)) // 10MB limit
	if err != nil {
		return fmt.Errorf("engine: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return model.NewEngineRejectedError(rejectionMessage(resp.StatusCode, respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("engine: decode response: %w", err)
		}
	}
	return nil
}

// outcomeLabel buckets a call result for the engine request counter.
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var env *model.ErrorEnvelope
	if errors.As(err, &env) {
		switch env.Code {
		case model.ErrEngineRejected:
			return "rejected"
		case model.ErrEngineTimeout:
			return "timeout"
		case model.ErrEngineUnavailable:
			return "unavailable"
		}
	}
	return "error"
}

func (c *Client) mapTransportError(ctx context.Context, method, path string, err error) error {
	c.log.Warn("engine request failed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Error(err),
	)
	if ctx.Err() != nil || isTimeoutError(err) {
		return model.NewEngineTimeoutError()
	}
	if isConnectionError(err) {
		return model.NewEngineUnavailableError()
	}
	return fmt.Errorf("engine: request failed: %w", err)
}

// rejectionMessage extracts the engine's own error message so it can be
// surfaced verbatim.
func rejectionMessage(status int, body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("engine returned status %d", status)
}

func buildHeaders(rctx *model.RequestContext, method string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	if method == http.MethodPost || method == http.MethodPut {
		h.Set("Content-Type", "application/json")
	}
	if rctx != nil {
		h.Set("X-Tenant-Id", sanitizeHeader(rctx.TenantID))
		h.Set("X-Correlation-Id", sanitizeHeader(rctx.CorrelationID))
		h.Set("X-Request-Subject", sanitizeHeader(rctx.SubjectID))
	}
	return h
}

// sanitizeHeader strips newlines and carriage returns to prevent header injection.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
