package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/job"
	"event-planner-core/internal/domain/ticket"
	core_errors "event-planner-core/pkg/errors"
)

const jobColumns = `
    id, event_id, created_by, status, details, tickets_processed, tickets_total,
    error_message, correlation_id, attempt_count, created_at, started_at, completed_at, updated_at`

type jobRepository struct {
	db DBTX
}

func NewJobRepository(db DBTX) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) exec(tx DBTX) DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *jobRepository) CreateWithTickets(ctx context.Context, tx DBTX, j *job.Job, tickets []ticket.Ticket) error {
	execDB := r.exec(tx)

	// Fast path for the common duplicate. Concurrent racers are caught by
	// the partial unique index on correlation_id below.
	var blocking int
	err := execDB.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM ticket_generation_jobs
        WHERE correlation_id = $1 AND status NOT IN ('completed', 'failed')
    `, j.CorrelationID).Scan(&blocking)
	if err != nil {
		return err
	}
	if blocking > 0 {
		return core_errors.ErrConflict
	}

	details, err := j.DetailsJSON()
	if err != nil {
		return err
	}

	_, err = execDB.ExecContext(ctx, `
        INSERT INTO ticket_generation_jobs
            (id, event_id, created_by, status, details, tickets_processed, tickets_total,
             correlation_id, attempt_count, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    `,
		j.ID,
		j.EventID,
		j.CreatedBy,
		j.Status,
		details,
		j.TicketsProcessed,
		j.TicketsTotal,
		j.CorrelationID,
		j.AttemptCount,
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return core_errors.ErrConflict
		}
		return err
	}

	for i := range tickets {
		t := &tickets[i]
		_, err = execDB.ExecContext(ctx, `
            INSERT INTO tickets
                (id, event_guest_id, ticket_type_id, ticket_template_id, ticket_code,
                 status, generation_job_id, is_validated, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        `,
			t.ID,
			t.EventGuestID,
			t.TicketTypeID,
			t.TicketTemplateID,
			t.TicketCode,
			t.Status,
			t.GenerationJobID,
			t.IsValidated,
			t.CreatedAt,
			t.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return core_errors.ErrConflict
			}
			return err
		}
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (job.Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM ticket_generation_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (r *jobRepository) List(ctx context.Context, filter JobFilter) ([]job.Job, int64, error) {
	where := "TRUE"
	args := []interface{}{}
	idx := 1

	if filter.EventID.Valid {
		where += fmt.Sprintf(" AND event_id = $%d", idx)
		args = append(args, filter.EventID.UUID)
		idx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ticket_generation_jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM ticket_generation_jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, idx, idx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *jobRepository) ListFailed(ctx context.Context, limit int) ([]job.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM ticket_generation_jobs WHERE status = 'failed' ORDER BY updated_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *jobRepository) ListByEvent(ctx context.Context, eventID uuid.UUID, filter JobFilter) ([]job.Job, int64, error) {
	filter.EventID = uuid.NullUUID{UUID: eventID, Valid: true}
	return r.List(ctx, filter)
}

func (r *jobRepository) Stats(ctx context.Context, eventID uuid.NullUUID) (job.Stats, error) {
	where := "TRUE"
	args := []interface{}{}
	if eventID.Valid {
		where = "event_id = $1"
		args = append(args, eventID.UUID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ticket_generation_jobs WHERE `+where+` GROUP BY status`, args...)
	if err != nil {
		return job.Stats{}, err
	}
	defer rows.Close()

	var stats job.Stats
	for rows.Next() {
		var status job.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return job.Stats{}, err
		}
		stats.Total += count
		switch status {
		case job.StatusPending:
			stats.Pending = count
		case job.StatusProcessing:
			stats.Processing = count
		case job.StatusCompleted:
			stats.Completed = count
		case job.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// Transition performs the status CAS. The WHERE clause carries the expected
// status, so two concurrent writers can never both win the same edge; the
// database linearizes the state machine.
func (r *jobRepository) Transition(ctx context.Context, tx DBTX, id uuid.UUID, from, to job.Status, fields TransitionFields) (*job.Job, error) {
	if !job.CanTransition(from, to) {
		return nil, core_errors.ErrInvalidTransition
	}
	execDB := r.exec(tx)

	set := "status = $1, updated_at = $2"
	args := []interface{}{to, time.Now()}
	idx := 3

	switch {
	case from == job.StatusPending && to == job.StatusProcessing:
		set += fmt.Sprintf(", started_at = $%d", idx)
		args = append(args, time.Now())
		idx++
	case to == job.StatusCompleted:
		set += fmt.Sprintf(", completed_at = $%d", idx)
		args = append(args, time.Now())
		idx++
		if fields.TicketsProcessed != nil {
			set += fmt.Sprintf(", tickets_processed = $%d", idx)
			args = append(args, *fields.TicketsProcessed)
			idx++
		}
		if fields.ErrorMessage != nil {
			set += fmt.Sprintf(", error_message = $%d", idx)
			args = append(args, *fields.ErrorMessage)
			idx++
		}
	case to == job.StatusFailed:
		set += fmt.Sprintf(", completed_at = $%d", idx)
		args = append(args, time.Now())
		idx++
		if fields.ErrorMessage != nil {
			set += fmt.Sprintf(", error_message = $%d", idx)
			args = append(args, *fields.ErrorMessage)
			idx++
		}
	case from == job.StatusFailed && to == job.StatusPending:
		// Retry: wipe the previous run and count the attempt.
		set += ", error_message = NULL, started_at = NULL, completed_at = NULL, attempt_count = attempt_count + 1"
	}

	args = append(args, id, from)
	query := fmt.Sprintf(
		`UPDATE ticket_generation_jobs SET %s WHERE id = $%d AND status = $%d RETURNING %s`,
		set, idx, idx+1, jobColumns)

	row := execDB.QueryRowContext(ctx, query, args...)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, core_errors.ErrNotFound) {
			// CAS precondition failed (or the job does not exist).
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (job.Job, error) {
	var j job.Job
	var details []byte
	err := row.Scan(
		&j.ID,
		&j.EventID,
		&j.CreatedBy,
		&j.Status,
		&details,
		&j.TicketsProcessed,
		&j.TicketsTotal,
		&j.ErrorMessage,
		&j.CorrelationID,
		&j.AttemptCount,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job.Job{}, core_errors.ErrNotFound
		}
		return job.Job{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &j.Details); err != nil {
			return job.Job{}, fmt.Errorf("decode job details: %w", err)
		}
	}
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]job.Job, error) {
	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
