package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// DefaultHistoryLimit is the number of views RecentViews returns when no
// limit is given.
const DefaultHistoryLimit = 20

// View is one resolved documentation view.
type View struct {
	ID            string
	SessionID     string
	QualifiedName string
	Facet         core.DocFacet
	ViewedAt      time.Time
}

// NewSessionID returns an identifier grouping the views of one process.
func NewSessionID() string {
	return uuid.NewString()
}

// RecordView appends a view to the history.
func (s *Store) RecordView(ctx context.Context, sessionID, qualifiedName string, facet core.DocFacet) (*View, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	v := &View{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		QualifiedName: qualifiedName,
		Facet:         facet,
		ViewedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, session_id, qualified_name, facet, viewed_at) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.SessionID, v.QualifiedName, v.Facet.String(), v.ViewedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record view: %w", err)
	}
	return v, nil
}

// RecentViews returns the latest views, newest first.
func (s *Store) RecentViews(ctx context.Context, limit int) ([]View, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, qualified_name, facet, viewed_at
		FROM history
		ORDER BY viewed_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []View
	for rows.Next() {
		var v View
		var facet string
		var viewed int64
		if err := rows.Scan(&v.ID, &v.SessionID, &v.QualifiedName, &facet, &viewed); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		v.Facet, _ = core.ParseDocFacet(facet)
		v.ViewedAt = time.Unix(0, viewed).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}
