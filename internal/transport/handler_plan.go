package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sukanihq/sukani/internal/compiler"
	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/model"
)

// mutatePlan runs fn against the session's plan store and responds with the
// updated session view. Stale references inside fn are no-ops, so the caller
// always gets a 200 with the current state.
func mutatePlan(mgr *session.Manager, w http.ResponseWriter, r *http.Request, mutation string, fn func(*session.Session)) {
	rctx := model.RequestContextFrom(r.Context())
	if rctx == nil {
		WriteError(w, model.NewUnauthorizedError("missing request context"))
		return
	}
	sessionID := chi.URLParam(r, "sessionId")

	var view sessionView
	err := mgr.Mutate(r.Context(), rctx, sessionID, mutation, func(s *session.Session) error {
		if s.Kind != session.KindModification {
			return model.NewConflictError("operation requires a modification session")
		}
		fn(s)
		view = newSessionView(s)
		return nil
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

func handleAddOperation(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Kind       model.OperationKind `json:"kind"`
			ActivityID string              `json:"activity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutatePlan(mgr, w, r, "add_operation", func(s *session.Session) {
			if !s.Graph.Has(body.ActivityID) {
				return
			}
			s.Plan.AddOperation(body.Kind, body.ActivityID)
		})
	}
}

func handleToggleMove(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ActivityID string `json:"activity_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutatePlan(mgr, w, r, "toggle_move", func(s *session.Session) {
			if !s.Graph.Has(body.ActivityID) {
				return
			}
			s.Plan.ToggleMoveSelection(body.ActivityID)
		})
	}
}

func handleMoveMany(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TargetActivityID  string   `json:"target_activity_id"`
			SourceActivityIDs []string `json:"source_activity_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutatePlan(mgr, w, r, "move_many", func(s *session.Session) {
			if !s.Graph.Has(body.TargetActivityID) {
				return
			}
			sources := make([]string, 0, len(body.SourceActivityIDs))
			for _, id := range body.SourceActivityIDs {
				if s.Graph.Has(id) {
					sources = append(sources, id)
				}
			}
			s.Plan.AddMoveToMany(body.TargetActivityID, sources)
		})
	}
}

func handleRemoveOperation(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, model.NewBadRequestError("invalid operation index"))
			return
		}

		mutatePlan(mgr, w, r, "remove_operation", func(s *session.Session) {
			s.Plan.Remove(index)
		})
	}
}

func handleReorderOperation(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, model.NewBadRequestError("invalid operation index"))
			return
		}

		var body struct {
			Direction string `json:"direction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutatePlan(mgr, w, r, "reorder_operation", func(s *session.Session) {
			s.Plan.Reorder(index, body.Direction)
		})
	}
}

func handleUndoOperation(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutatePlan(mgr, w, r, "undo", func(s *session.Session) {
			s.Plan.UndoLast()
		})
	}
}

func handleClearPlan(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutatePlan(mgr, w, r, "clear_plan", func(s *session.Session) {
			s.Plan.Clear()
		})
	}
}

// handleSetVariables replaces the variable list of the operation at index.
// Values are checked advisorily: malformed values come back as warnings but
// never block the edit, since the engine is the final authority at commit
// time.
func handleSetVariables(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")

		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			WriteError(w, model.NewBadRequestError("invalid operation index"))
			return
		}

		var body struct {
			Variables []model.PlanVariable `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		var warnings []model.FieldError
		for _, v := range body.Variables {
			if cerr := compiler.CheckValue(v); cerr != nil {
				warnings = append(warnings, model.FieldError{
					Field:   v.Name,
					Code:    "invalid_value",
					Message: cerr.Error(),
				})
			}
		}

		var view sessionView
		err = mgr.Mutate(r.Context(), rctx, sessionID, "set_variables", func(s *session.Session) error {
			if s.Kind != session.KindModification {
				return model.NewConflictError("operation requires a modification session")
			}
			s.Plan.SetVariables(index, body.Variables)
			view = newSessionView(s)
			return nil
		})
		if err != nil {
			WriteError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, struct {
			sessionView
			Warnings []model.FieldError `json:"warnings,omitempty"`
		}{view, warnings})
	}
}
