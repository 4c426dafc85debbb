package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, capture_id, status, retry_count, max_retries, error_message, next_retry_at, last_heartbeat, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		captureID    string
		statusStr    string
		retryCount   int
		maxRetries   int
		errorMessage sql.NullString
		nextRetryRaw sql.NullString
		heartbeatRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&captureID,
		&statusStr,
		&retryCount,
		&maxRetries,
		&errorMessage,
		&nextRetryRaw,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		CaptureID:    captureID,
		Status:       Status(statusStr),
		RetryCount:   retryCount,
		MaxRetries:   maxRetries,
		ErrorMessage: errorMessage.String,
	}
	item.NextRetryAt = parseNullableTime(nextRetryRaw)
	item.LastHeartbeat = parseNullableTime(heartbeatRaw)
	if created, err := parseTimestamp(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimestamp(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimestamp(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

// Enqueue inserts a pending item for the capture. When a live item for the
// same capture already exists the existing item is returned instead, so a
// capture never has two in-flight classification requests.
func (s *Store) Enqueue(ctx context.Context, captureID string, maxRetries int) (*Item, error) {
	captureID = strings.TrimSpace(captureID)
	if captureID == "" {
		return nil, errors.New("capture id is empty")
	}

	existing, err := s.liveItemForCapture(ctx, captureID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	timestamp := formatTimestamp(time.Now().UTC())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (capture_id, status, retry_count, max_retries, created_at, updated_at)
         VALUES (?, ?, 0, ?, ?, ?)`,
		captureID,
		StatusPending,
		maxRetries,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches an item by identifier. Returns nil when missing.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// HasLiveItemForCapture reports whether the capture already has a pending or
// processing item.
func (s *Store) HasLiveItemForCapture(ctx context.Context, captureID string) (bool, error) {
	item, err := s.liveItemForCapture(ctx, captureID)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

func (s *Store) liveItemForCapture(ctx context.Context, captureID string) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE capture_id = ? AND status IN (?, ?)
         ORDER BY created_at LIMIT 1`,
		captureID,
		StatusPending,
		StatusProcessing,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find live item: %w", err)
	}
	return item, nil
}

// DuePending returns pending items whose retry time has arrived, oldest first.
func (s *Store) DuePending(ctx context.Context, now time.Time) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at`,
		StatusPending,
		formatTimestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// List returns items filtered by status, or all items when statuses is empty,
// newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
