package database

import (
	"context"
	"database/sql"
	"fmt"

	"blogarchive/pkg/models"
)

// SaveMember inserts or refreshes one member row.
func (db *DB) SaveMember(ctx context.Context, m models.Member) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO members (id, name, blog_url)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			blog_url = excluded.blog_url`,
		m.ID, m.Name, m.BlogURL)
	if err != nil {
		return fmt.Errorf("failed to save member %d: %w", m.ID, err)
	}
	return nil
}

// SaveMembers stores a member roster in one transaction.
func (db *DB) SaveMembers(ctx context.Context, members []models.Member) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO members (id, name, blog_url)
			VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				blog_url = excluded.blog_url`,
			m.ID, m.Name, m.BlogURL)
		if err != nil {
			return fmt.Errorf("failed to save member %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit members: %w", err)
	}

	db.logger.InfoWithFields("Members saved", map[string]interface{}{
		"count": len(members),
	})

	return nil
}

// GetMembers returns all members ordered by id.
func (db *DB) GetMembers(ctx context.Context) ([]models.Member, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, blog_url FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer db.closeRows(rows)

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.BlogURL); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// GetMember returns one member by id, or nil when unknown.
func (db *DB) GetMember(ctx context.Context, id int) (*models.Member, error) {
	var m models.Member
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, blog_url FROM members WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.BlogURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query member %d: %w", id, err)
	}
	return &m, nil
}
