package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"captor/internal/classify"
)

const captureColumns = "id, original_text, ai_title, classified_type, note_sub_type, confidence, source, parent_capture_id, is_confirmed, confirmed_at, is_deleted, deleted_at, classified_at, created_at, updated_at"

// SaveCapture inserts a new capture. Missing id, source, and timestamps are
// defaulted; a new capture always starts at the temp classification.
func (q *queries) SaveCapture(ctx context.Context, capture *Capture) error {
	if capture == nil {
		return errors.New("capture is nil")
	}
	if strings.TrimSpace(capture.OriginalText) == "" {
		return errors.New("capture text is empty")
	}
	if capture.ID == "" {
		capture.ID = uuid.NewString()
	}
	if capture.Source == "" {
		capture.Source = SourceApp
	}
	if capture.ClassifiedType == "" {
		capture.ClassifiedType = classify.TypeTemp
	}
	now := time.Now().UTC()
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = now
	}
	capture.UpdatedAt = capture.CreatedAt

	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO captures (
            id, original_text, ai_title, classified_type, note_sub_type, confidence,
            source, parent_capture_id, is_confirmed, confirmed_at, is_deleted,
            deleted_at, classified_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		capture.ID,
		capture.OriginalText,
		nullableString(capture.AITitle),
		capture.ClassifiedType,
		nullableString(string(capture.NoteSubType)),
		nullableString(string(capture.Confidence)),
		capture.Source,
		nullableString(capture.ParentCaptureID),
		boolToInt(capture.IsConfirmed),
		nullableTime(capture.ConfirmedAt),
		boolToInt(capture.IsDeleted),
		nullableTime(capture.DeletedAt),
		nullableTime(capture.ClassifiedAt),
		formatTime(capture.CreatedAt),
		formatTime(capture.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	return nil
}

// GetCapture fetches a capture by identifier. Returns nil when missing.
func (q *queries) GetCapture(ctx context.Context, id string) (*Capture, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	capture, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capture: %w", err)
	}
	return capture, nil
}

// UpdateClassification applies classifier output to the capture record and
// stamps the classification time.
func (q *queries) UpdateClassification(ctx context.Context, captureID string, classifiedType classify.ClassifiedType, subType classify.NoteSubType, title string, confidence classify.Confidence) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE captures
         SET classified_type = ?, note_sub_type = ?, ai_title = ?, confidence = ?,
             classified_at = ?, updated_at = ?
         WHERE id = ?`,
		classifiedType,
		nullableString(string(subType)),
		nullableString(title),
		nullableString(string(confidence)),
		formatTime(now),
		formatTime(now),
		captureID,
	)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return requireRowAffected(res, "capture", captureID)
}

// UpdateClassifiedType changes only the classification type and subtype,
// used by manual reclassification.
func (q *queries) UpdateClassifiedType(ctx context.Context, captureID string, classifiedType classify.ClassifiedType, subType classify.NoteSubType) error {
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE captures SET classified_type = ?, note_sub_type = ?, updated_at = ? WHERE id = ?`,
		classifiedType,
		nullableString(string(subType)),
		formatTime(time.Now().UTC()),
		captureID,
	)
	if err != nil {
		return fmt.Errorf("update classified type: %w", err)
	}
	return requireRowAffected(res, "capture", captureID)
}

// ConfirmCapture marks the capture's classification as user-confirmed.
func (q *queries) ConfirmCapture(ctx context.Context, captureID string, at time.Time) error {
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE captures SET is_confirmed = 1, confirmed_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(at),
		formatTime(time.Now().UTC()),
		captureID,
	)
	if err != nil {
		return fmt.Errorf("confirm capture: %w", err)
	}
	return requireRowAffected(res, "capture", captureID)
}

// SoftDeleteCapture marks a capture deleted without removing the row.
func (q *queries) SoftDeleteCapture(ctx context.Context, captureID string) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE captures SET is_deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(now),
		formatTime(now),
		captureID,
	)
	if err != nil {
		return fmt.Errorf("soft delete capture: %w", err)
	}
	return requireRowAffected(res, "capture", captureID)
}

// ListCaptures returns non-deleted captures ordered newest first.
func (q *queries) ListCaptures(ctx context.Context, limit int) ([]*Capture, error) {
	query := `SELECT ` + captureColumns + ` FROM captures WHERE is_deleted = 0 ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()
	return collectCaptures(rows)
}

// ChildCaptures returns split children of the given capture ordered by creation.
func (q *queries) ChildCaptures(ctx context.Context, parentID string) ([]*Capture, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT `+captureColumns+` FROM captures WHERE parent_capture_id = ? ORDER BY created_at`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list child captures: %w", err)
	}
	defer rows.Close()
	return collectCaptures(rows)
}

// TempCapturesOlderThan returns live captures still awaiting classification
// that were created before the cutoff.
func (q *queries) TempCapturesOlderThan(ctx context.Context, cutoff time.Time) ([]*Capture, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT `+captureColumns+` FROM captures
         WHERE classified_type = ? AND is_deleted = 0 AND created_at < ?
         ORDER BY created_at`,
		classify.TypeTemp,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale temp captures: %w", err)
	}
	defer rows.Close()
	return collectCaptures(rows)
}

func collectCaptures(rows *sql.Rows) ([]*Capture, error) {
	var captures []*Capture
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, capture)
	}
	return captures, rows.Err()
}

func scanCapture(scanner interface{ Scan(dest ...any) error }) (*Capture, error) {
	var (
		id           string
		originalText string
		aiTitle      sql.NullString
		classified   string
		subType      sql.NullString
		confidence   sql.NullString
		source       string
		parentID     sql.NullString
		isConfirmed  int
		confirmedAt  sql.NullString
		isDeleted    int
		deletedAt    sql.NullString
		classifiedAt sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&originalText,
		&aiTitle,
		&classified,
		&subType,
		&confidence,
		&source,
		&parentID,
		&isConfirmed,
		&confirmedAt,
		&isDeleted,
		&deletedAt,
		&classifiedAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	capture := &Capture{
		ID:              id,
		OriginalText:    originalText,
		AITitle:         aiTitle.String,
		ClassifiedType:  classify.ClassifiedType(classified),
		NoteSubType:     classify.NoteSubType(subType.String),
		Confidence:      classify.Confidence(confidence.String),
		Source:          CaptureSource(source),
		ParentCaptureID: parentID.String,
		IsConfirmed:     isConfirmed != 0,
		ConfirmedAt:     timePtrFromNull(confirmedAt),
		IsDeleted:       isDeleted != 0,
		DeletedAt:       timePtrFromNull(deletedAt),
		ClassifiedAt:    timePtrFromNull(classifiedAt),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		capture.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		capture.UpdatedAt = updated
	}
	return capture, nil
}

func requireRowAffected(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
