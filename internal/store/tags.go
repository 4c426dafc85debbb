package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

var tagFolder = cases.Fold()

// foldTagName produces the case-insensitive uniqueness key for a tag.
func foldTagName(name string) string {
	return tagFolder.String(strings.TrimSpace(name))
}

// GetOrCreateTag returns the tag with the given name, creating it when
// absent. Matching is case-insensitive so "Urgent" and "urgent" share a row.
func (q *queries) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tag name is empty")
	}
	folded := foldTagName(name)

	tag, err := q.tagByFoldedName(ctx, folded)
	if err != nil {
		return nil, err
	}
	if tag != nil {
		return tag, nil
	}

	created := &Tag{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err = q.db.ExecContext(
		ctx,
		`INSERT INTO tags (id, name, folded_name, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(folded_name) DO NOTHING`,
		created.ID,
		created.Name,
		folded,
		formatTime(created.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	// Re-read so a conflict loser still returns the winning row.
	tag, err = q.tagByFoldedName(ctx, folded)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q vanished after insert", name)
	}
	return tag, nil
}

// LinkTagToCapture attaches a tag to a capture. Linking twice is a no-op.
func (q *queries) LinkTagToCapture(ctx context.Context, captureID, tagID string) error {
	_, err := q.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO capture_tags (capture_id, tag_id) VALUES (?, ?)`,
		captureID,
		tagID,
	)
	if err != nil {
		return fmt.Errorf("link tag: %w", err)
	}
	return nil
}

// TagsForCapture returns the capture's tags ordered by name.
func (q *queries) TagsForCapture(ctx context.Context, captureID string) ([]*Tag, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT t.id, t.name, t.created_at
         FROM tags t
         JOIN capture_tags ct ON ct.tag_id = t.id
         WHERE ct.capture_id = ?
         ORDER BY t.name`,
		captureID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var tag Tag
		var createdRaw string
		if err := rows.Scan(&tag.ID, &tag.Name, &createdRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			tag.CreatedAt = created
		}
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

func (q *queries) tagByFoldedName(ctx context.Context, folded string) (*Tag, error) {
	var tag Tag
	var createdRaw string
	err := q.db.QueryRowContext(
		ctx,
		`SELECT id, name, created_at FROM tags WHERE folded_name = ?`,
		folded,
	).Scan(&tag.ID, &tag.Name, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		tag.CreatedAt = created
	}
	return &tag, nil
}
