package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/delivery"
	core_errors "event-planner-core/pkg/errors"
)

const deliveryColumns = `
    id, job_id, event_type, dedup_key, signature_ok, normalized_payload,
    outcome, receipt, processing_time_ms, received_at, updated_at`

type deliveryRepository struct {
	db DBTX
}

func NewDeliveryRepository(db DBTX) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) exec(tx DBTX) DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *deliveryRepository) Insert(ctx context.Context, d *delivery.WebhookDelivery) error {
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO webhook_deliveries
            (id, job_id, event_type, dedup_key, signature_ok, normalized_payload,
             outcome, processing_time_ms, received_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (dedup_key) DO NOTHING
    `,
		d.ID,
		d.JobID,
		d.EventType,
		d.DedupKey,
		d.SignatureOK,
		d.NormalizedBody,
		d.Outcome,
		d.ProcessingTimeMs,
		d.ReceivedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core_errors.ErrAlreadyExists
	}
	return nil
}

func (r *deliveryRepository) GetByDedupKey(ctx context.Context, dedupKey string) (delivery.WebhookDelivery, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE dedup_key = $1`, dedupKey)
	return scanDelivery(row)
}

func (r *deliveryRepository) Reclaim(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE webhook_deliveries SET outcome = $1, updated_at = $2
        WHERE id = $3 AND outcome = $4
    `, delivery.OutcomeInProgress, time.Now(), id, delivery.OutcomeError)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core_errors.ErrConflict
	}
	return nil
}

func (r *deliveryRepository) SetOutcome(ctx context.Context, tx DBTX, id uuid.UUID, outcome delivery.Outcome, receipt []byte, processingTimeMs int64) error {
	execDB := r.exec(tx)
	_, err := execDB.ExecContext(ctx, `
        UPDATE webhook_deliveries
        SET outcome = $1, receipt = $2, processing_time_ms = $3, updated_at = $4
        WHERE id = $5
    `, outcome, receipt, processingTimeMs, time.Now(), id)
	return err
}

func (r *deliveryRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]delivery.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE job_id = $1 ORDER BY received_at ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []delivery.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (delivery.WebhookDelivery, error) {
	var d delivery.WebhookDelivery
	err := row.Scan(
		&d.ID,
		&d.JobID,
		&d.EventType,
		&d.DedupKey,
		&d.SignatureOK,
		&d.NormalizedBody,
		&d.Outcome,
		&d.Receipt,
		&d.ProcessingTimeMs,
		&d.ReceivedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return delivery.WebhookDelivery{}, core_errors.ErrNotFound
		}
		return delivery.WebhookDelivery{}, err
	}
	return d, nil
}
