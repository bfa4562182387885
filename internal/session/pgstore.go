package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sukanihq/sukani/model"
)

// PgDraftStore is a PostgreSQL-backed DraftStore using pgx/v5. The typed
// plan payload is stored as a single JSONB column; only the columns the
// store queries on are broken out.
type PgDraftStore struct {
	pool *pgxpool.Pool
}

// NewPgDraftStore creates a new PostgreSQL draft store.
func NewPgDraftStore(pool *pgxpool.Pool) *PgDraftStore {
	return &PgDraftStore{pool: pool}
}

// Save inserts or replaces a draft. The update only applies when the
// incoming snapshot is at least as new as the stored one, so a delayed
// debounce write from another node never clobbers a fresher draft.
func (s *PgDraftStore) Save(ctx context.Context, draft Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO planning_drafts (session_id, tenant_id, subject_id, kind, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
		WHERE planning_drafts.updated_at <= EXCLUDED.updated_at`,
		draft.SessionID, draft.TenantID, draft.SubjectID, draft.Kind,
		payload, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// Get retrieves a draft by session ID, scoped to tenant.
func (s *PgDraftStore) Get(ctx context.Context, tenantID, sessionID string) (Draft, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload
		FROM planning_drafts
		WHERE session_id = $1 AND tenant_id = $2`,
		sessionID, tenantID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return Draft{}, model.NewNotFoundError(
			fmt.Sprintf("draft for session %q not found", sessionID),
		)
	}
	if err != nil {
		return Draft{}, fmt.Errorf("query draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return Draft{}, fmt.Errorf("unmarshal draft: %w", err)
	}
	return draft, nil
}

// Delete removes a draft.
func (s *PgDraftStore) Delete(ctx context.Context, tenantID, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM planning_drafts
		WHERE session_id = $1 AND tenant_id = $2`,
		sessionID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// HealthCheck pings the database. Used by the readiness endpoint.
func (s *PgDraftStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// DeleteExpired removes drafts not updated since the cutoff.
func (s *PgDraftStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM planning_drafts
		WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired drafts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
