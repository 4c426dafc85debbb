package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ReplaceExtractedEntities deletes existing extracted entities for the
// capture and inserts the new set, so re-applying classifier output never
// duplicates rows.
func (q *queries) ReplaceExtractedEntities(ctx context.Context, captureID string, entities []ExtractedEntity) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM extracted_entities WHERE capture_id = ?`, captureID); err != nil {
		return fmt.Errorf("clear extracted entities: %w", err)
	}
	for i := range entities {
		entity := &entities[i]
		if entity.ID == "" {
			entity.ID = uuid.NewString()
		}
		entity.CaptureID = captureID
		_, err := q.db.ExecContext(
			ctx,
			`INSERT INTO extracted_entities (id, capture_id, type, value, normalized_value)
             VALUES (?, ?, ?, ?, ?)`,
			entity.ID,
			entity.CaptureID,
			entity.Type,
			entity.Value,
			nullableString(entity.NormalizedValue),
		)
		if err != nil {
			return fmt.Errorf("insert extracted entity: %w", err)
		}
	}
	return nil
}

// ExtractedEntitiesForCapture returns extracted entities in insertion order.
func (q *queries) ExtractedEntitiesForCapture(ctx context.Context, captureID string) ([]ExtractedEntity, error) {
	rows, err := q.db.QueryContext(
		ctx,
		`SELECT id, capture_id, type, value, normalized_value
         FROM extracted_entities WHERE capture_id = ? ORDER BY rowid`,
		captureID,
	)
	if err != nil {
		return nil, fmt.Errorf("list extracted entities: %w", err)
	}
	defer rows.Close()

	var entities []ExtractedEntity
	for rows.Next() {
		var entity ExtractedEntity
		var normalized sql.NullString
		if err := rows.Scan(&entity.ID, &entity.CaptureID, &entity.Type, &entity.Value, &normalized); err != nil {
			return nil, err
		}
		entity.NormalizedValue = normalized.String
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
