package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/model"
)

func handleCreateModification(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body struct {
			InstanceID   string `json:"instance_id"`
			DefinitionID string `json:"definition_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		var details []model.FieldError
		if body.InstanceID == "" {
			details = append(details, model.FieldError{Field: "instance_id", Code: "required", Message: "instance_id is required"})
		}
		if body.DefinitionID == "" {
			details = append(details, model.FieldError{Field: "definition_id", Code: "required", Message: "definition_id is required"})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		s, err := mgr.CreateModification(r.Context(), rctx, body.InstanceID, body.DefinitionID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, newSessionView(s))
	}
}

func handleCreateMigration(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body struct {
			SourceDefinitionID  string `json:"source_definition_id"`
			TargetDefinitionID  string `json:"target_definition_id"`
			UpdateEventTriggers bool   `json:"update_event_triggers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		var details []model.FieldError
		if body.SourceDefinitionID == "" {
			details = append(details, model.FieldError{Field: "source_definition_id", Code: "required", Message: "source_definition_id is required"})
		}
		if body.TargetDefinitionID == "" {
			details = append(details, model.FieldError{Field: "target_definition_id", Code: "required", Message: "target_definition_id is required"})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		s, err := mgr.CreateMigration(r.Context(), rctx, body.SourceDefinitionID, body.TargetDefinitionID, body.UpdateEventTriggers)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, newSessionView(s))
	}
}

// handleGetSession resumes a session, rehydrating it from its saved draft
// when it is no longer in memory.
func handleGetSession(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		if _, err := mgr.Resume(r.Context(), rctx, sessionID); err != nil {
			WriteError(w, err)
			return
		}

		var view sessionView
		err := mgr.Read(r.Context(), rctx, sessionID, func(s *session.Session) error {
			view = newSessionView(s)
			return nil
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleDiscardSession(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		if err := mgr.Discard(r.Context(), rctx, sessionID); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
