package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// NamespaceRecord is a namespace as last listed by the host.
type NamespaceRecord struct {
	core.NamespaceInfo
	MemberCount int
	UpdatedAt   time.Time
}

// SaveNamespaces replaces the namespace snapshot with infos, keeping the
// host's order. Members of namespaces that disappeared or are no longer
// loaded are dropped.
func (s *Store) SaveNamespaces(ctx context.Context, infos []core.NamespaceInfo) error {
	if s.db == nil {
		return errNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO namespaces (name, loaded, source, position, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			loaded = excluded.loaded,
			source = excluded.source,
			position = excluded.position,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	stamp := time.Now().UnixNano()
	for i, info := range infos {
		if _, err := stmt.ExecContext(ctx, info.Name, info.Loaded, info.Source, i, stamp); err != nil {
			return fmt.Errorf("save namespace %s: %w", info.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE updated_at <> ?`, stamp); err != nil {
		return fmt.Errorf("prune namespaces: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM members
		WHERE namespace NOT IN (SELECT name FROM namespaces WHERE loaded = 1)
	`); err != nil {
		return fmt.Errorf("prune members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE namespaces SET member_count = 0 WHERE loaded = 0`); err != nil {
		return fmt.Errorf("reset member counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Namespaces returns the namespace snapshot in host order.
func (s *Store) Namespaces(ctx context.Context) ([]NamespaceRecord, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, loaded, source, member_count, updated_at
		FROM namespaces
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []NamespaceRecord
	for rows.Next() {
		var r NamespaceRecord
		var updated int64
		if err := rows.Scan(&r.Name, &r.Loaded, &r.Source, &r.MemberCount, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		r.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveMembers replaces the member snapshot of one namespace.
func (s *Store) SaveMembers(ctx context.Context, namespace string, members []core.MemberInfo) error {
	if s.db == nil {
		return errNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("clear members of %s: %w", namespace, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO members (namespace, name, kinds, line, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, m := range members {
		if _, err := stmt.ExecContext(ctx, namespace, m.Name, m.Kinds.String(), m.Line, i); err != nil {
			return fmt.Errorf("save member %s: %w", core.QualifiedName(namespace, m.Name), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE namespaces SET member_count = ? WHERE name = ?`, len(members), namespace); err != nil {
		return fmt.Errorf("update member count of %s: %w", namespace, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Members returns the member snapshot of a namespace in host order. A
// namespace missing from the snapshot is core.ErrNotFound.
func (s *Store) Members(ctx context.Context, namespace string) ([]core.MemberInfo, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	var loaded bool
	err := s.db.QueryRowContext(ctx, `SELECT loaded FROM namespaces WHERE name = ?`, namespace).Scan(&loaded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("namespace %s: %w", namespace, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get namespace: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kinds, line FROM members
		WHERE namespace = ?
		ORDER BY position
	`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.MemberInfo
	for rows.Next() {
		var m core.MemberInfo
		var kinds string
		if err := rows.Scan(&m.Name, &kinds, &m.Line); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Kinds = core.ParseKindSet(kinds)
		out = append(out, m)
	}
	return out, rows.Err()
}
