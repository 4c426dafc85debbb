package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkProcessing claims a pending item. The update is conditional on the
// current status so two workers cannot claim the same item.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	now := formatTimestamp(time.Now().UTC())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		now,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkCompleted finishes an item successfully and clears any error state.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	now := formatTimestamp(time.Now().UTC())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_message = NULL, next_retry_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusCompleted,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed moves an item to the terminal failed state with the final error.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := formatTimestamp(time.Now().UTC())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_message = ?, next_retry_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusFailed,
		message,
		now,
		id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ScheduleRetry returns an item to pending with an incremented retry count
// and the time at which it next becomes eligible.
func (s *Store) ScheduleRetry(ctx context.Context, id int64, message string, nextRetryAt time.Time) error {
	now := formatTimestamp(time.Now().UTC())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, retry_count = retry_count + 1, error_message = ?,
             next_retry_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusPending,
		message,
		formatTimestamp(nextRetryAt),
		now,
		id,
	); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTimestamp(time.Now().UTC())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ResetStaleProcessing returns processing items back to pending, keeping
// their retry counts. Used at daemon startup and when heartbeats expire.
func (s *Store) ResetStaleProcessing(ctx context.Context, cutoff *time.Time) (int64, error) {
	now := formatTimestamp(time.Now().UTC())

	query := `UPDATE queue_items
        SET status = ?, last_heartbeat = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, now, StatusProcessing}
	if cutoff != nil {
		query += ` AND (last_heartbeat IS NULL OR last_heartbeat < ?)`
		args = append(args, formatTimestamp(*cutoff))
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stale processing: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed returns failed items to pending with a fresh retry budget.
// When ids is empty every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTimestamp(time.Now().UTC())

	query := `UPDATE queue_items
        SET status = ?, retry_count = 0, error_message = NULL, next_retry_at = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, now, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
