package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/compiler"
	"github.com/sukanihq/sukani/model"
)

func testRctx() *model.RequestContext {
	return &model.RequestContext{
		SubjectID:     "user-alice",
		TenantID:      "tenant-1",
		CorrelationID: "corr-1",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zap.NewNop())
}

func TestProcessNodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-definition/invoice:2/nodes" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Tenant-Id"); got != "tenant-1" {
			t.Errorf("X-Tenant-Id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"taskA","name":"Approve","type":"userTask"}]`)
	})

	nodes, err := c.ProcessNodes(context.Background(), testRctx(), "invoice:2")
	if err != nil {
		t.Fatalf("ProcessNodes: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "taskA" || nodes[0].Type != "userTask" {
		t.Errorf("unexpected nodes %+v", nodes)
	}
}

func TestActiveActivityIDsFlattensLeaves(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"activityId": "invoice-process",
			"childActivityInstances": [
				{"activityId": "taskA", "childActivityInstances": []},
				{"activityId": "subprocess", "childActivityInstances": [
					{"activityId": "taskB", "childActivityInstances": []}
				]}
			]
		}`)
	})

	ids, err := c.ActiveActivityIDs(context.Background(), testRctx(), "inst-1")
	if err != nil {
		t.Fatalf("ActiveActivityIDs: %v", err)
	}
	want := []string{"taskA", "taskB"}
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestDefinitionActiveActivityIDsDropsIdleActivities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-definition/invoice:1/statistics" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `[
			{"id": "taskA", "instances": 3},
			{"id": "taskB", "instances": 0},
			{"id": "taskC", "instances": 1}
		]`)
	})

	ids, err := c.DefinitionActiveActivityIDs(context.Background(), testRctx(), "invoice:1")
	if err != nil {
		t.Fatalf("DefinitionActiveActivityIDs: %v", err)
	}
	want := []string{"taskA", "taskC"}
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestValidateModificationDecodesReports(t *testing.T) {
	var gotBody modificationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		io.WriteString(w, `{"instructionReports":[
			{"failures":[],"warnings":[]},
			{"failures":["activity taskZ does not exist"],"warnings":["token already active"]}
		]}`)
	})

	set := model.InstructionSet{
		Instructions: []model.Instruction{
			{Type: model.InstrStartBefore, ActivityID: "taskA"},
			{Type: model.InstrCancel, ActivityID: "taskZ", CancelCurrentActiveActivityInstances: true},
		},
		Options: model.ExecutionOptions{SkipIoMappings: true},
	}
	report, err := c.ValidateModification(context.Background(), testRctx(), "inst-1", set)
	if err != nil {
		t.Fatalf("ValidateModification: %v", err)
	}

	if len(gotBody.Instructions) != 2 || !gotBody.SkipIoMappings {
		t.Errorf("unexpected request body %+v", gotBody)
	}
	if !report.HasFailures() {
		t.Error("expected failures in report")
	}
	if got := report.InstructionReports[1].Failures[0]; got != "activity taskZ does not exist" {
		t.Errorf("failure = %q", got)
	}
}

func TestExecuteModificationSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process-instance/inst-1/modification" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.ExecuteModification(context.Background(), testRctx(), "inst-1", model.InstructionSet{})
	if err != nil {
		t.Fatalf("ExecuteModification: %v", err)
	}
	if res.InstanceID != "inst-1" {
		t.Errorf("InstanceID = %q", res.InstanceID)
	}
}

func TestExecuteMigrationReturnsBatchID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/migration/executeAsync" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"id":"batch-42"}`)
	})

	plan := MigrationPlan{
		SourceProcessDefinitionID: "invoice:1",
		TargetProcessDefinitionID: "invoice:2",
		Instructions: []compiler.MigrationInstruction{
			{SourceActivityIDs: []string{"taskA"}, TargetActivityID: "taskA2"},
		},
	}
	res, err := c.ExecuteMigration(context.Background(), testRctx(), plan, []string{"inst-1"}, model.ExecutionOptions{})
	if err != nil {
		t.Fatalf("ExecuteMigration: %v", err)
	}
	if res.BatchID != "batch-42" {
		t.Errorf("BatchID = %q", res.BatchID)
	}
}

func TestGenerateMappings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"instructions":[
			{"sourceActivityIds":["taskA"],"targetActivityId":"taskA2"}
		]}`)
	})

	got, err := c.GenerateMappings(context.Background(), testRctx(), "invoice:1", "invoice:2", true)
	if err != nil {
		t.Fatalf("GenerateMappings: %v", err)
	}
	if len(got) != 1 || got[0].TargetActivityID != "taskA2" {
		t.Errorf("unexpected suggestions %+v", got)
	}
}

func TestRejectionSurfacesEngineMessageVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"InvalidRequestException","message":"activity taskZ does not exist in process definition"}`)
	})

	_, err := c.ExecuteModification(context.Background(), testRctx(), "inst-1", model.InstructionSet{})
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected ErrorEnvelope, got %v", err)
	}
	if env.Code != model.ErrEngineRejected {
		t.Errorf("code = %q", env.Code)
	}
	if env.Message != "activity taskZ does not exist in process definition" {
		t.Errorf("message was not surfaced verbatim: %q", env.Message)
	}
}

func TestUnavailableMapsToEngineUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := NewClient(srv.URL, time.Second, zap.NewNop())

	_, err := c.ProcessNodes(context.Background(), testRctx(), "invoice:1")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected ErrorEnvelope, got %v", err)
	}
	if env.Code != model.ErrEngineUnavailable {
		t.Errorf("code = %q, want %q", env.Code, model.ErrEngineUnavailable)
	}
}

func TestSlowEngineMapsToTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	c.client.Timeout = 50 * time.Millisecond

	_, err := c.ProcessNodes(context.Background(), testRctx(), "invoice:1")
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		t.Fatalf("expected ErrorEnvelope, got %v", err)
	}
	if env.Code != model.ErrEngineTimeout {
		t.Errorf("code = %q, want %q", env.Code, model.ErrEngineTimeout)
	}
}
