package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

const ticketColumns = `id, event_id, owner_id, transaction_id, code, qr_payload, status, checked_in_at, created_at`

// TicketRepository implements persistence.TicketRepository.
type TicketRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTicketRepository creates a ticket repository.
func NewTicketRepository(pool *ConnectionPool) *TicketRepository {
	return &TicketRepository{pool: pool, helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateTickets inserts a batch atomically: either every ticket is stored or none.
func (r *TicketRepository) CreateTickets(ctx context.Context, tickets []persistence.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO tickets (`+ticketColumns+`) VALUES (`+placeholders(9)+`)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ticket := range tickets {
			if _, err := stmt.ExecContext(ctx,
				ticket.ID, ticket.EventID, ticket.OwnerID, ticket.TransactionID, ticket.Code, ticket.QRPayload,
				ticket.Status, nullMillis(ticket.CheckedInAt), toMillis(ticket.CreatedAt),
			); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

// GetTicket loads one ticket.
func (r *TicketRepository) GetTicket(ctx context.Context, id string) (persistence.Ticket, error) {
	return r.getTicket(ctx, r.pool.db, id)
}

func (r *TicketRepository) getTicket(ctx context.Context, q querier, id string) (persistence.Ticket, error) {
	ticket, err := scanTicket(q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		return persistence.Ticket{}, r.mapper.MapError(err)
	}
	return ticket, nil
}

// GetTicketByCode finds a ticket by its code within one event.
func (r *TicketRepository) GetTicketByCode(ctx context.Context, eventID, code string) (persistence.Ticket, error) {
	ticket, err := scanTicket(r.helper.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? AND code = ?`, eventID, code))
	if err != nil {
		return persistence.Ticket{}, r.mapper.MapError(err)
	}
	return ticket, nil
}

// ListTicketsByOwner returns the owner's tickets, newest first.
func (r *TicketRepository) ListTicketsByOwner(ctx context.Context, ownerID string) ([]persistence.Ticket, error) {
	rows, err := r.helper.Query(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	tickets := []persistence.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// CountTicketsByEvent counts an event's tickets in any of the given statuses.
func (r *TicketRepository) CountTicketsByEvent(ctx context.Context, eventID string, statuses ...string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	args := []any{eventID}
	for _, status := range statuses {
		args = append(args, status)
	}
	var n int64
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE event_id = ? AND status IN (`+placeholders(len(statuses))+`)`, args...,
	).Scan(&n)
	return n, r.mapper.MapError(err)
}

// CountTicketsByTransaction counts the tickets issued for one payment.
func (r *TicketRepository) CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error) {
	var n int64
	err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE transaction_id = ?`, transactionID).Scan(&n)
	return n, r.mapper.MapError(err)
}

// TransitionTicket moves a ticket from one status to another in a single
// conditional update, so concurrent callers cannot both succeed. Moving to
// "used" stamps checked_in_at.
func (r *TicketRepository) TransitionTicket(ctx context.Context, id, from, to string, at time.Time) (persistence.Ticket, error) {
	var ticket persistence.Ticket
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var checkedIn sql.NullInt64
		if to == "used" {
			checkedIn = sql.NullInt64{Int64: toMillis(at), Valid: true}
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE tickets SET status = ?, checked_in_at = COALESCE(?, checked_in_at) WHERE id = ? AND status = ?`,
			to, checkedIn, id, from)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}

		ticket, err = r.getTicket(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrConflict
		}
		return nil
	})
	if err != nil {
		return persistence.Ticket{}, err
	}
	return ticket, nil
}

// CancelTransactionTickets cancels the still-valid tickets of a payment.
func (r *TicketRepository) CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error) {
	return r.helper.ExecAffected(ctx,
		`UPDATE tickets SET status = 'cancelled' WHERE transaction_id = ? AND status = 'valid'`, transactionID)
}

func scanTicket(row rowScanner) (persistence.Ticket, error) {
	var (
		ticket    persistence.Ticket
		checkedIn sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&ticket.ID, &ticket.EventID, &ticket.OwnerID, &ticket.TransactionID, &ticket.Code,
		&ticket.QRPayload, &ticket.Status, &checkedIn, &createdAt)
	if err != nil {
		return persistence.Ticket{}, err
	}
	ticket.CheckedInAt = timePtr(checkedIn)
	ticket.CreatedAt = fromMillis(createdAt)
	return ticket, nil
}

// CheckInRepository implements persistence.CheckInRepository.
type CheckInRepository struct {
	helper *QueryHelper
}

// NewCheckInRepository creates a check-in repository.
func NewCheckInRepository(pool *ConnectionPool) *CheckInRepository {
	return &CheckInRepository{helper: NewQueryHelper(pool)}
}

// CreateCheckIn appends a scan record.
func (r *CheckInRepository) CreateCheckIn(ctx context.Context, checkIn persistence.CheckIn) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO check_ins (id, event_id, ticket_id, scanned_by, location, checked_in_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		checkIn.ID, checkIn.EventID, checkIn.TicketID, checkIn.ScannedBy, checkIn.Location, toMillis(checkIn.CheckedInAt),
	)
	return err
}
