// Package audit provides PostgreSQL-backed storage for moderation decisions.
// Each row captures one completed check: the community, the message, the
// verdict, and timing metadata for moderator review. Community state itself
// is never persisted here — the registry stays memory-only.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision is a single moderation decision to be persisted.
type Decision struct {
	ID           uuid.UUID
	CommunityID  string
	Message      string
	IsValid      bool
	ViolatedRule string // empty when IsValid
	RuleCount    int    // size of the rule snapshot the check ran against
	Cached       bool   // verdict came from the cache, no backend call
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store manages moderation decisions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a decision store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts a decision. A zero ID is assigned a fresh UUID.
func (s *Store) Record(ctx context.Context, d *Decision) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	const query = `
		INSERT INTO moderation_decisions
			(id, community_id, message, is_valid, violated_rule, rule_count, cached, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.CommunityID,
		d.Message,
		d.IsValid,
		nullIfEmpty(d.ViolatedRule),
		d.RuleCount,
		d.Cached,
		d.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// RecentByCommunity returns the most recent decisions for a community,
// newest first, up to limit rows.
func (s *Store) RecentByCommunity(ctx context.Context, communityID string, limit int) ([]Decision, error) {
	const query = `
		SELECT id, community_id, message, is_valid,
		       COALESCE(violated_rule, ''), rule_count, cached, duration_ms, created_at
		FROM moderation_decisions
		WHERE community_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, communityID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var durationMs int64
		if err := rows.Scan(&d.ID, &d.CommunityID, &d.Message, &d.IsValid,
			&d.ViolatedRule, &d.RuleCount, &d.Cached, &durationMs, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		d.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return out, nil
}

// CountViolations returns the number of violation decisions recorded for a
// community within the given time window. Useful for surfacing noisy
// communities to operators.
func (s *Store) CountViolations(ctx context.Context, communityID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM moderation_decisions
		WHERE community_id = $1
		  AND is_valid = FALSE
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, communityID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count violations: %w", err)
	}
	return count, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
