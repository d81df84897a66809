package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Turn is one query and its response for a user.
type Turn struct {
	CreatedAt  time.Time `json:"created_at"`
	UserID     string    `json:"user_id"`
	RequestID  string    `json:"request_id"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	Capability string    `json:"capability,omitempty"`
	Coin       string    `json:"coin,omitempty"`
	ID         int64     `json:"id"`
}

// HistoryStore keeps the last limit turns per user.
type HistoryStore struct {
	db    *sql.DB
	limit int
}

// NewHistoryStore creates a store over an opened database. A limit below 1
// keeps every turn.
func NewHistoryStore(db *sql.DB, limit int) *HistoryStore {
	return &HistoryStore{db: db, limit: limit}
}

// Append stores a turn and prunes the user's history down to the limit.
func (s *HistoryStore) Append(ctx context.Context, turn *Turn) error {
	if strings.TrimSpace(turn.UserID) == "" {
		return fmt.Errorf("turn has no user id")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO turns (user_id, request_id, query, response, capability, coin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.UserID, turn.RequestID, turn.Query, turn.Response, turn.Capability, turn.Coin,
		turn.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		turn.ID = id
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM turns WHERE user_id = ? AND id NOT IN (
				SELECT id FROM turns WHERE user_id = ? ORDER BY id DESC LIMIT ?
			)`, turn.UserID, turn.UserID, s.limit)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

// Recent returns up to n of the user's latest turns, oldest first.
func (s *HistoryStore) Recent(ctx context.Context, userID string, n int) ([]Turn, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, request_id, query, response, capability, coin, created_at
		FROM turns WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []Turn
	for rows.Next() {
		var (
			t       Turn
			created string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.RequestID, &t.Query, &t.Response, &t.Capability, &t.Coin, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.CreatedAt = parseTimestamp(created)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear removes every turn of a user and returns how many were deleted.
func (s *HistoryStore) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared turns: %w", err)
	}
	return n, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
