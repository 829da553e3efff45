package repository

import (
	"context"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/audit"
)

type systemLogRepository struct {
	db DBTX
}

func NewSystemLogRepository(db DBTX) SystemLogRepository {
	return &systemLogRepository{db: db}
}

func (r *systemLogRepository) Create(ctx context.Context, entry *audit.SystemLog) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO system_logs (id, actor_id, action, entity, entity_id, detail, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.Entity,
		entry.EntityID,
		entry.Detail,
		entry.CreatedAt,
	)
	return err
}

func (r *systemLogRepository) ListByEntity(ctx context.Context, entity string, entityID uuid.UUID) ([]audit.SystemLog, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, actor_id, action, entity, entity_id, detail, created_at
        FROM system_logs
        WHERE entity = $1 AND entity_id = $2
        ORDER BY created_at ASC
    `, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.SystemLog
	for rows.Next() {
		var entry audit.SystemLog
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.Entity,
			&entry.EntityID,
			&entry.Detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
