package transport

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sukanihq/sukani/internal/compiler"
	"github.com/sukanihq/sukani/internal/engine"
	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/model"
)

// commitRequest is the shared body of the preview, validate, and execute
// endpoints.
type commitRequest struct {
	Options     model.ExecutionOptions `json:"options"`
	InstanceIDs []string               `json:"instance_ids"`
}

// previewResponse shows the exact engine call an execute would make, so the
// operator can inspect the literal payload before committing.
type previewResponse struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Payload any    `json:"payload"`
}

// handlePreview compiles the current plan and returns the engine payload
// without sending anything.
func handlePreview(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		var body commitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		var resp previewResponse
		err := mgr.Read(r.Context(), rctx, sessionID, func(s *session.Session) error {
			switch s.Kind {
			case session.KindModification:
				set := compiler.CompilePlan(s.Plan.Operations(), body.Options)
				resp = previewResponse{
					Method: http.MethodPost,
					Path:   "/process-instance/" + url.PathEscape(s.InstanceID) + "/modification",
					Payload: struct {
						Instructions        []model.Instruction `json:"instructions"`
						SkipCustomListeners bool                `json:"skipCustomListeners"`
						SkipIoMappings      bool                `json:"skipIoMappings"`
						Annotation          string              `json:"annotation,omitempty"`
					}{set.Instructions, set.Options.SkipCustomListeners, set.Options.SkipIoMappings, set.Options.Annotation},
				}
			case session.KindMigration:
				plan := engine.MigrationPlan{
					SourceProcessDefinitionID: s.SourceDefinitionID,
					TargetProcessDefinitionID: s.TargetDefinitionID,
					Instructions:              compiler.CompileMapping(s.Mapping.Entries()),
				}
				resp = previewResponse{
					Method: http.MethodPost,
					Path:   "/migration/executeAsync",
					Payload: struct {
						MigrationPlan       engine.MigrationPlan `json:"migrationPlan"`
						ProcessInstanceIDs  []string             `json:"processInstanceIds"`
						SkipCustomListeners bool                 `json:"skipCustomListeners"`
						SkipIoMappings      bool                 `json:"skipIoMappings"`
						Annotation          string               `json:"annotation,omitempty"`
					}{plan, body.InstanceIDs, body.Options.SkipCustomListeners, body.Options.SkipIoMappings, body.Options.Annotation},
				}
			}
			return nil
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// handleValidate dry-runs the compiled plan against the engine. The engine's
// per-instruction findings are returned as-is; a report with failures still
// responds 200, since validation itself succeeded.
func handleValidate(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		var body commitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		report, err := mgr.Validate(r.Context(), rctx, sessionID, body.Options, body.InstanceIDs)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

// handleExecute applies the compiled plan. The call is single-shot: a
// failure is surfaced verbatim and the plan survives untouched for the
// operator to retry explicitly. An X-Idempotency-Key header makes retries
// safe to replay.
func handleExecute(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		var body commitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		idempotencyKey := r.Header.Get("X-Idempotency-Key")

		result, err := mgr.Execute(r.Context(), rctx, sessionID, body.Options, body.InstanceIDs, idempotencyKey)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}
