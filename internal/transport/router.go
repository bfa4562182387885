package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/config"
	"github.com/sukanihq/sukani/internal/session"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	Authenticate   func(http.Handler) http.Handler
	Sessions       *session.Manager
	HealthHandler  http.Handler
	ReadyHandler   http.Handler
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(log))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes bypass authentication.
	if deps.HealthHandler != nil {
		r.Method(http.MethodGet, "/health", deps.HealthHandler)
	}
	if deps.ReadyHandler != nil {
		r.Method(http.MethodGet, "/ready", deps.ReadyHandler)
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	mgr := deps.Sessions

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContextMiddleware(deps.Config.Identity.ClaimPaths))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(log))

		// Session lifecycle.
		r.Post("/sessions/modifications", handleCreateModification(mgr))
		r.Post("/sessions/migrations", handleCreateMigration(mgr))
		r.Get("/sessions/{sessionId}", handleGetSession(mgr))
		r.Delete("/sessions/{sessionId}", handleDiscardSession(mgr))

		// Modification plan edits.
		r.Post("/sessions/{sessionId}/operations", handleAddOperation(mgr))
		r.Delete("/sessions/{sessionId}/operations", handleClearPlan(mgr))
		r.Post("/sessions/{sessionId}/operations/move", handleToggleMove(mgr))
		r.Post("/sessions/{sessionId}/operations/move-many", handleMoveMany(mgr))
		r.Post("/sessions/{sessionId}/operations/undo", handleUndoOperation(mgr))
		r.Delete("/sessions/{sessionId}/operations/{index}", handleRemoveOperation(mgr))
		r.Post("/sessions/{sessionId}/operations/{index}/reorder", handleReorderOperation(mgr))
		r.Put("/sessions/{sessionId}/operations/{index}/variables", handleSetVariables(mgr))

		// Migration mapping edits.
		r.Get("/sessions/{sessionId}/mapping", handleMappingRows(mgr))
		r.Put("/sessions/{sessionId}/mapping/{sourceId}/target", handleSetOverride(mgr))
		r.Delete("/sessions/{sessionId}/mapping/{sourceId}/target", handleClearOverride(mgr))
		r.Put("/sessions/{sessionId}/mapping/{sourceId}/excluded", handleSetExcluded(mgr))
		r.Put("/sessions/{sessionId}/mapping/{sourceId}/trigger", handleSetTrigger(mgr))
		r.Post("/sessions/{sessionId}/mapping/{sourceId}/auto-map", handleAutoMap(mgr))
		r.Post("/sessions/{sessionId}/mapping/auto-map", handleAutoMapAll(mgr))

		// Commit phase.
		r.Post("/sessions/{sessionId}/preview", handlePreview(mgr))
		r.Post("/sessions/{sessionId}/validate", handleValidate(mgr))
		r.Post("/sessions/{sessionId}/execute", handleExecute(mgr))
	})

	return r
}
