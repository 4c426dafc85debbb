package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"captor/internal/classify"
)

// InsertClassificationLog appends one audit row. Rows are never updated.
func (q *queries) InsertClassificationLog(ctx context.Context, entry *ClassificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var elapsed any
	if entry.TimeSinceClassificationMS != nil {
		elapsed = *entry.TimeSinceClassificationMS
	}

	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO classification_log (id, capture_id, original_type, original_sub_type, new_type, new_sub_type, time_since_classification_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CaptureID,
		entry.OriginalType,
		nullableString(string(entry.OriginalSubType)),
		entry.NewType,
		nullableString(string(entry.NewSubType)),
		elapsed,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert classification log: %w", err)
	}
	return nil
}

// LogsForCapture returns audit rows for a capture oldest first.
func (q *queries) LogsForCapture(ctx context.Context, captureID string) ([]*ClassificationLog, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, capture_id, original_type, original_sub_type, new_type, new_sub_type, time_since_classification_ms, created_at
         FROM classification_log WHERE capture_id = ? ORDER BY created_at`,
		captureID,
	)
	if err != nil {
		return nil, fmt.Errorf("list classification logs: %w", err)
	}
	defer rows.Close()

	var logs []*ClassificationLog
	for rows.Next() {
		var (
			entry       ClassificationLog
			origSub     sql.NullString
			newSub      sql.NullString
			elapsed     sql.NullInt64
			originalRaw string
			newRaw      string
			createdRaw  string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.CaptureID,
			&originalRaw,
			&origSub,
			&newRaw,
			&newSub,
			&elapsed,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		entry.OriginalType = classify.ClassifiedType(originalRaw)
		entry.OriginalSubType = classify.NoteSubType(origSub.String)
		entry.NewType = classify.ClassifiedType(newRaw)
		entry.NewSubType = classify.NoteSubType(newSub.String)
		if elapsed.Valid {
			value := elapsed.Int64
			entry.TimeSinceClassificationMS = &value
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = created
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
