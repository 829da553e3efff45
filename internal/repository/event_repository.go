package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"event-planner-core/internal/domain/event"
	core_errors "event-planner-core/pkg/errors"
)

type eventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetEvent(ctx context.Context, id uuid.UUID) (event.Event, error) {
	var e event.Event
	err := r.db.QueryRowContext(ctx, `
        SELECT id, organizer_id, title, status, event_date, created_at, updated_at, deleted_at
        FROM events WHERE id = $1
    `, id).Scan(
		&e.ID,
		&e.OrganizerID,
		&e.Title,
		&e.Status,
		&e.EventDate,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.Event{}, core_errors.ErrNotFound
		}
		return event.Event{}, err
	}
	return e, nil
}

func (r *eventRepository) GetTicketType(ctx context.Context, id uuid.UUID) (event.TicketType, error) {
	var tt event.TicketType
	err := r.db.QueryRowContext(ctx, `
        SELECT id, event_id, name, price, quantity, currency, type, created_at, updated_at
        FROM ticket_types WHERE id = $1
    `, id).Scan(
		&tt.ID,
		&tt.EventID,
		&tt.Name,
		&tt.Price,
		&tt.Quantity,
		&tt.Currency,
		&tt.Kind,
		&tt.CreatedAt,
		&tt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return event.TicketType{}, core_errors.ErrNotFound
		}
		return event.TicketType{}, err
	}
	return tt, nil
}

func (r *eventRepository) GetEventGuests(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]event.EventGuest, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, eventID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, event_id, guest_id, created_at
        FROM event_guests
        WHERE event_id = $1 AND id IN (`+buildPlaceholders(2, len(ids))+`)
    `, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []event.EventGuest
	for rows.Next() {
		var g event.EventGuest
		if err := rows.Scan(&g.ID, &g.EventID, &g.GuestID, &g.CreatedAt); err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}
