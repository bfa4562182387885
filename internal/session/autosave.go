package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sukanihq/sukani/internal/observability"
)

const autosaveWriteTimeout = 5 * time.Second

// Autosaver debounces draft writes: each mutation re-arms a per-session
// timer, and the draft is written once the session has been quiet for the
// configured delay. The snapshot is taken when the mutation happens, not
// when the timer fires, so a write never races a later mutation.
type Autosaver struct {
	store   DraftStore
	delay   time.Duration
	log     *zap.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	pending map[string]*pendingSave
}

type pendingSave struct {
	timer *time.Timer
	draft Draft
}

// NewAutosaver creates an autosaver writing to the given store after each
// quiet period.
func NewAutosaver(store DraftStore, delay time.Duration, log *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Autosaver{
		store:   store,
		delay:   delay,
		log:     log,
		pending: make(map[string]*pendingSave),
	}
}

// SetMetrics attaches the metrics recorder. Optional.
func (a *Autosaver) SetMetrics(mx *observability.Metrics) {
	a.metrics = mx
}

func (a *Autosaver) save(ctx context.Context, draft Draft) error {
	err := a.store.Save(ctx, draft)
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordAutosaveWrite(status)
	}
	return err
}

// Schedule records the latest draft for a session and (re)arms its debounce
// timer.
func (a *Autosaver) Schedule(draft Draft) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.pending[draft.SessionID]; ok {
		p.draft = draft
		p.timer.Reset(a.delay)
		return
	}

	p := &pendingSave{draft: draft}
	p.timer = time.AfterFunc(a.delay, func() { a.fire(draft.SessionID) })
	a.pending[draft.SessionID] = p
}

// Flush writes any pending draft for the session immediately and disarms
// its timer. Used before validate/execute so the persisted draft matches
// what is being committed.
func (a *Autosaver) Flush(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	p, ok := a.pending[sessionID]
	if ok {
		p.timer.Stop()
		delete(a.pending, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return nil
	}
	return a.save(ctx, p.draft)
}

// Cancel disarms any pending write for the session without saving. Used
// when a session is discarded.
func (a *Autosaver) Cancel(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[sessionID]; ok {
		p.timer.Stop()
		delete(a.pending, sessionID)
	}
}

func (a *Autosaver) fire(sessionID string) {
	a.mu.Lock()
	p, ok := a.pending[sessionID]
	if ok {
		delete(a.pending, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), autosaveWriteTimeout)
	defer cancel()

	if err := a.save(ctx, p.draft); err != nil {
		a.log.Warn("autosave failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
