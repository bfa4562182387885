package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sukanihq/sukani/internal/session"
	"github.com/sukanihq/sukani/internal/status"
	"github.com/sukanihq/sukani/model"
)

// mutateMapping runs fn against the session's mapping table and responds
// with the updated session view, mirroring mutatePlan.
func mutateMapping(mgr *session.Manager, w http.ResponseWriter, r *http.Request, mutation string, fn func(*session.Session)) {
	rctx := model.RequestContextFrom(r.Context())
	if rctx == nil {
		WriteError(w, model.NewUnauthorizedError("missing request context"))
		return
	}
	sessionID := chi.URLParam(r, "sessionId")

	var view sessionView
	err := mgr.Mutate(r.Context(), rctx, sessionID, mutation, func(s *session.Session) error {
		if s.Kind != session.KindMigration {
			return model.NewConflictError("operation requires a migration session")
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

// parseFilters reads the visibility toggles from query parameters. The
// mapped-only and unmapped-only toggles are mutually exclusive in the UI;
// when both arrive, unmapped-only wins.
func parseFilters(r *http.Request) status.Filters {
	q := r.URL.Query()
	f := status.Filters{
		ActiveOnly:       q.Get("active_only") == "true",
		MappedOnly:       q.Get("mapped_only") == "true",
		UnmappedOnly:     q.Get("unmapped_only") == "true",
		IncompatibleOnly: q.Get("incompatible_only") == "true",
	}
	if f.UnmappedOnly {
		f.MappedOnly = false
	}
	return f
}

// handleMappingRows returns the mapping rows that pass the requested filters
// together with the pre-commit summary counts.
func handleMappingRows(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}
		sessionID := chi.URLParam(r, "sessionId")
		filters := parseFilters(r)

		var resp struct {
			Rows    []mappingRow   `json:"rows"`
			Summary status.Summary `json:"summary"`
			Filters status.Filters `json:"filters"`
		}
		err := mgr.Read(r.Context(), rctx, sessionID, func(s *session.Session) error {
			if s.Kind != session.KindMigration {
				return model.NewConflictError("operation requires a migration session")
			}
			active := status.NewTokenSet(s.ActiveIDs)
			resp.Rows = mappingRows(s, filters)
			resp.Summary = status.Summarize(s.Mapping.Entries(), filters, active, s.SourceGraph, s.TargetGraph)
			resp.Filters = filters
			return nil
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleSetOverride(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := chi.URLParam(r, "sourceId")

		var body struct {
			TargetID string `json:"target_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutateMapping(mgr, w, r, "set_override", func(s *session.Session) {
			if !s.TargetGraph.Has(body.TargetID) {
				return
			}
			s.Mapping.SetOverride(sourceID, body.TargetID)
		})
	}
}

func handleClearOverride(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := chi.URLParam(r, "sourceId")

		mutateMapping(mgr, w, r, "clear_override", func(s *session.Session) {
			s.Mapping.ClearOverride(sourceID)
		})
	}
}

func handleSetExcluded(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := chi.URLParam(r, "sourceId")

		var body struct {
			Excluded bool `json:"excluded"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutateMapping(mgr, w, r, "set_excluded", func(s *session.Session) {
			s.Mapping.SetExcluded(sourceID, body.Excluded)
		})
	}
}

func handleSetTrigger(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := chi.URLParam(r, "sourceId")

		var body struct {
			Value *bool `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		mutateMapping(mgr, w, r, "set_trigger", func(s *session.Session) {
			s.Mapping.SetTriggerOverride(sourceID, body.Value)
		})
	}
}

// handleAutoMap fills one unmapped row using the normalized-name heuristic.
func handleAutoMap(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := chi.URLParam(r, "sourceId")

		mutateMapping(mgr, w, r, "auto_map", func(s *session.Session) {
			s.Mapping.AutoMap(sourceID, s.SourceGraph, s.TargetGraph)
		})
	}
}

// handleAutoMapAll fills every unmapped row using the normalized-name
// heuristic. Manual overrides and exclusions are left untouched.
func handleAutoMapAll(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mutateMapping(mgr, w, r, "auto_map_all", func(s *session.Session) {
			s.Mapping.AutoMapAll(s.SourceGraph, s.TargetGraph)
		})
	}
}
