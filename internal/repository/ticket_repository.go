package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/ticket"
	core_errors "event-planner-core/pkg/errors"
)

const ticketColumns = `
    id, event_guest_id, ticket_type_id, ticket_template_id, ticket_code, status,
    qr_code_data, ticket_file_url, ticket_file_path, generation_job_id,
    payment_status, payment_intent_id, is_validated, created_at, updated_at, deleted_at`

type ticketRepository struct {
	db DBTX
}

func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) exec(tx DBTX) DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ticketRepository) GetByID(ctx context.Context, id uuid.UUID) (ticket.Ticket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]ticket.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE generation_job_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC`,
		jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []ticket.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// ApplyOutcomes writes generation artifacts (or failure marks) for tickets of
// jobID. The generation_job_id predicate makes the job's ownership of its
// ticket rows explicit; rows of other jobs are never touched. Artifact
// columns of validated tickets keep their prior values via the CASE guards,
// since a validated ticket is already in a guest's hands.
func (r *ticketRepository) ApplyOutcomes(ctx context.Context, tx DBTX, jobID uuid.UUID, outcomes []ticket.Outcome) (int, error) {
	execDB := r.exec(tx)
	changed := 0

	for _, out := range outcomes {
		var res sql.Result
		var err error
		if out.Success {
			res, err = execDB.ExecContext(ctx, `
                UPDATE tickets SET
                    status = 'generated',
                    qr_code_data     = CASE WHEN is_validated THEN qr_code_data     ELSE NULLIF($1, '') END,
                    ticket_file_url  = CASE WHEN is_validated THEN ticket_file_url  ELSE NULLIF($2, '') END,
                    ticket_file_path = CASE WHEN is_validated THEN ticket_file_path ELSE NULLIF($3, '') END,
                    updated_at = $4
                WHERE id = $5 AND generation_job_id = $6 AND deleted_at IS NULL
            `, out.QRCodeData, out.FileURL, out.FilePath, time.Now(), out.TicketID, jobID)
		} else {
			res, err = execDB.ExecContext(ctx, `
                UPDATE tickets SET status = 'failed', updated_at = $1
                WHERE id = $2 AND generation_job_id = $3 AND deleted_at IS NULL
            `, time.Now(), out.TicketID, jobID)
		}
		if err != nil {
			return changed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return changed, err
		}
		changed += int(n)
	}
	return changed, nil
}

func (r *ticketRepository) GenerationBreakdown(ctx context.Context, eventID uuid.UUID) (ticket.GenerationBreakdown, error) {
	var b ticket.GenerationBreakdown
	err := r.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE t.status = 'pending'),
            COUNT(*) FILTER (WHERE t.status = 'generated'),
            COUNT(*) FILTER (WHERE t.status = 'failed'),
            COUNT(*) FILTER (WHERE t.qr_code_data IS NOT NULL
                AND t.ticket_file_url IS NOT NULL AND t.ticket_file_path IS NOT NULL),
            COUNT(*) FILTER (WHERE t.is_validated)
        FROM tickets t
        JOIN event_guests eg ON eg.id = t.event_guest_id
        WHERE eg.event_id = $1 AND t.deleted_at IS NULL
    `, eventID).Scan(&b.Total, &b.Pending, &b.Generated, &b.Failed, &b.WithArtifacts, &b.Validated)
	return b, err
}

func (r *ticketRepository) MarkValidated(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE tickets SET is_validated = TRUE, updated_at = $1
        WHERE id = $2 AND is_validated = FALSE AND deleted_at IS NULL
    `, time.Now(), id)
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

func scanTicket(row rowScanner) (ticket.Ticket, error) {
	var t ticket.Ticket
	err := row.Scan(
		&t.ID,
		&t.EventGuestID,
		&t.TicketTypeID,
		&t.TicketTemplateID,
		&t.TicketCode,
		&t.Status,
		&t.QRCodeData,
		&t.TicketFileURL,
		&t.TicketFilePath,
		&t.GenerationJobID,
		&t.PaymentStatus,
		&t.PaymentIntentID,
		&t.IsValidated,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ticket.Ticket{}, core_errors.ErrNotFound
		}
		return ticket.Ticket{}, err
	}
	return t, nil
}
