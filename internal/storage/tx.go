package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"symptomlog/internal/core"
)

// Tx exposes row-level operations bound to one open transaction. It is only
// valid inside the Update or View callback that produced it.
type Tx struct {
	tx   *sql.Tx
	repo *SQLiteRepository
}

// Now returns the repository clock reading used for timestamps.
func (t *Tx) Now() time.Time {
	return t.repo.now()
}

// NewID mints a fresh category id.
func (t *Tx) NewID() string {
	return t.repo.newID()
}

func (t *Tx) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

// ListCategories returns every category in storage order.
func (t *Tx) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, archived, created_at FROM categories ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// GetCategory returns nil without error when id is unknown.
func (t *Tx) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id, name, archived, created_at FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutCategory inserts c or overwrites the row with the same id.
func (t *Tx) PutCategory(ctx context.Context, c core.Category) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO categories (id, name, archived, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			archived = excluded.archived,
			created_at = excluded.created_at`,
		c.ID, c.Name, boolToInt(c.Archived), c.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put category %s: %w", c.ID, err)
	}
	return nil
}

func (t *Tx) ClearCategories(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	return nil
}

// GetEntry returns nil without error when no entry exists for isoDate.
func (t *Tx) GetEntry(ctx context.Context, isoDate string) (*core.Entry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT iso_date, scores, updated_at FROM entries WHERE iso_date = ?`, isoDate)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutEntry inserts e or replaces the whole record for its date.
func (t *Tx) PutEntry(ctx context.Context, e core.Entry) error {
	scores, err := encodeScores(e.Scores)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO entries (iso_date, scores, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(iso_date) DO UPDATE SET
			scores = excluded.scores,
			updated_at = excluded.updated_at`,
		e.ISODate, scores, e.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put entry %s: %w", e.ISODate, err)
	}
	return nil
}

func (t *Tx) DeleteEntry(ctx context.Context, isoDate string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM entries WHERE iso_date = ?`, isoDate); err != nil {
		return fmt.Errorf("delete entry %s: %w", isoDate, err)
	}
	return nil
}

func (t *Tx) ClearEntries(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

// ListEntries returns entries with from <= iso_date <= to, ascending.
func (t *Tx) ListEntries(ctx context.Context, from, to string) ([]core.Entry, error) {
	return t.queryEntries(ctx,
		`SELECT iso_date, scores, updated_at FROM entries WHERE iso_date BETWEEN ? AND ? ORDER BY iso_date`,
		from, to)
}

// AllEntries returns every entry, ascending by date.
func (t *Tx) AllEntries(ctx context.Context) ([]core.Entry, error) {
	return t.queryEntries(ctx, `SELECT iso_date, scores, updated_at FROM entries ORDER BY iso_date`)
}

func (t *Tx) queryEntries(ctx context.Context, query string, args ...any) ([]core.Entry, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c         core.Category
		archived  int64
		createdAt int64
	)
	if err := s.Scan(&c.ID, &c.Name, &archived, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("scan category: %w", err)
	}
	c.Archived = archived != 0
	c.CreatedAt = core.MillisToTime(createdAt)
	return c, nil
}

func scanEntry(s scanner) (core.Entry, error) {
	var (
		e         core.Entry
		raw       string
		updatedAt int64
	)
	if err := s.Scan(&e.ISODate, &raw, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan entry: %w", err)
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return e, fmt.Errorf("decode scores for %s: %w", e.ISODate, err)
	}
	e.Scores = scores
	e.UpdatedAt = core.MillisToTime(updatedAt)
	return e, nil
}

func encodeScores(s core.Scores) (string, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode scores: %w", err)
	}
	return string(b), nil
}

func decodeScores(raw string) (core.Scores, error) {
	scores := core.Scores{}
	if raw == "" {
		return scores, nil
	}
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, err
	}
	if scores == nil {
		scores = core.Scores{}
	}
	return scores, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
