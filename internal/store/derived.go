package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"captor/internal/classify"
)

const todoColumns = "id, capture_id, deadline, deadline_source, is_completed, completed_at, created_at, updated_at"

const scheduleColumns = "id, capture_id, start_time, end_time, location, is_all_day, confidence, sync_status, external_event_id, created_at, updated_at"

const noteColumns = "id, capture_id, folder_id, created_at, updated_at"

// CreateTodo inserts the todo derived entity for a capture.
func (q *queries) CreateTodo(ctx context.Context, todo *Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = todo.CreatedAt

	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO todos (id, capture_id, deadline, deadline_source, is_completed, completed_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.CaptureID,
		nullableTime(todo.Deadline),
		nullableString(string(todo.DeadlineSource)),
		boolToInt(todo.IsCompleted),
		nullableTime(todo.CompletedAt),
		formatTime(todo.CreatedAt),
		formatTime(todo.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

// GetTodoByCapture fetches the todo for a capture. Returns nil when missing.
func (q *queries) GetTodoByCapture(ctx context.Context, captureID string) (*Todo, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE capture_id = ?`, captureID)
	todo, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return todo, nil
}

// CreateSchedule inserts the schedule derived entity for a capture.
func (q *queries) CreateSchedule(ctx context.Context, schedule *Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.SyncStatus == "" {
		schedule.SyncStatus = SyncNotLinked
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = schedule.CreatedAt

	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO schedules (id, capture_id, start_time, end_time, location, is_all_day, confidence, sync_status, external_event_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.CaptureID,
		nullableTime(schedule.StartTime),
		nullableTime(schedule.EndTime),
		nullableString(schedule.Location),
		boolToInt(schedule.IsAllDay),
		nullableString(string(schedule.Confidence)),
		schedule.SyncStatus,
		nullableString(schedule.ExternalEventID),
		formatTime(schedule.CreatedAt),
		formatTime(schedule.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetScheduleByCapture fetches the schedule for a capture. Returns nil when missing.
func (q *queries) GetScheduleByCapture(ctx context.Context, captureID string) (*Schedule, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE capture_id = ?`, captureID)
	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

// UpdateScheduleSyncStatus records the outcome of a calendar sync attempt.
func (q *queries) UpdateScheduleSyncStatus(ctx context.Context, scheduleID string, status CalendarSyncStatus, externalEventID string) error {
	res, err := q.db.ExecContext(
		ctx,
		`UPDATE schedules SET sync_status = ?, external_event_id = ?, updated_at = ? WHERE id = ?`,
		status,
		nullableString(externalEventID),
		formatTime(time.Now().UTC()),
		scheduleID,
	)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return requireRowAffected(res, "schedule", scheduleID)
}

// SchedulesWithSyncStatus returns schedules in the given sync state oldest first.
func (q *queries) SchedulesWithSyncStatus(ctx context.Context, status CalendarSyncStatus) ([]*Schedule, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE sync_status = ? ORDER BY created_at`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules by sync status: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

// CreateNote inserts the note derived entity for a capture.
func (q *queries) CreateNote(ctx context.Context, note *Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.FolderID == "" {
		note.FolderID = FolderInbox
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = note.CreatedAt

	_, err := q.db.ExecContext(
		ctx,
		`INSERT INTO notes (id, capture_id, folder_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		note.ID,
		note.CaptureID,
		note.FolderID,
		formatTime(note.CreatedAt),
		formatTime(note.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// GetNoteByCapture fetches the note for a capture. Returns nil when missing.
func (q *queries) GetNoteByCapture(ctx context.Context, captureID string) (*Note, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE capture_id = ?`, captureID)
	note := &Note{}
	var createdRaw, updatedRaw string
	err := row.Scan(&note.ID, &note.CaptureID, &note.FolderID, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		note.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		note.UpdatedAt = updated
	}
	return note, nil
}

// DeleteDerivedEntities removes every todo, schedule, and note attached to
// the capture. Safe to call when none exist.
func (q *queries) DeleteDerivedEntities(ctx context.Context, captureID string) error {
	for _, table := range []string{"todos", "schedules", "notes"} {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE capture_id = ?`, captureID); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

func scanTodo(scanner interface{ Scan(dest ...any) error }) (*Todo, error) {
	var (
		todo        Todo
		deadline    sql.NullString
		source      sql.NullString
		isCompleted int
		completedAt sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&todo.ID,
		&todo.CaptureID,
		&deadline,
		&source,
		&isCompleted,
		&completedAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	todo.Deadline = timePtrFromNull(deadline)
	todo.DeadlineSource = classify.DeadlineSource(source.String)
	todo.IsCompleted = isCompleted != 0
	todo.CompletedAt = timePtrFromNull(completedAt)
	if created, err := parseTimeString(createdRaw); err == nil {
		todo.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		todo.UpdatedAt = updated
	}
	return &todo, nil
}

func scanSchedule(scanner interface{ Scan(dest ...any) error }) (*Schedule, error) {
	var (
		schedule   Schedule
		startTime  sql.NullString
		endTime    sql.NullString
		location   sql.NullString
		isAllDay   int
		confidence sql.NullString
		syncStatus string
		eventID    sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&schedule.ID,
		&schedule.CaptureID,
		&startTime,
		&endTime,
		&location,
		&isAllDay,
		&confidence,
		&syncStatus,
		&eventID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	schedule.StartTime = timePtrFromNull(startTime)
	schedule.EndTime = timePtrFromNull(endTime)
	schedule.Location = location.String
	schedule.IsAllDay = isAllDay != 0
	schedule.Confidence = classify.Confidence(confidence.String)
	schedule.SyncStatus = CalendarSyncStatus(syncStatus)
	schedule.ExternalEventID = eventID.String
	if created, err := parseTimeString(createdRaw); err == nil {
		schedule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		schedule.UpdatedAt = updated
	}
	return &schedule, nil
}
