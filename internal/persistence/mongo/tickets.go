package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotevents/spot/internal/persistence"
)

const (
	ticketValid     = "valid"
	ticketUsed      = "used"
	ticketCancelled = "cancelled"
)

// TicketRepository stores issued tickets.
type TicketRepository struct {
	col *mongo.Collection
}

// NewTicketRepository creates a repository over db.
func NewTicketRepository(db *mongo.Database) *TicketRepository {
	return &TicketRepository{col: db.Collection(ticketsCollection)}
}

// CreateTickets inserts a batch in order. When an insert fails the tickets
// already written by this call are removed again.
func (r *TicketRepository) CreateTickets(ctx context.Context, tickets []persistence.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	docs := make([]any, len(tickets))
	ids := make([]string, len(tickets))
	for i, t := range tickets {
		docs[i] = toTicketDoc(t)
		ids[i] = t.ID
	}

	_, err := r.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}
	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) && len(bulkErr.WriteErrors) > 0 {
		if written := ids[:bulkErr.WriteErrors[0].Index]; len(written) > 0 {
			_, _ = r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": written}})
		}
	}
	return mapError(err)
}

// GetTicket loads a ticket by ID.
func (r *TicketRepository) GetTicket(ctx context.Context, id string) (persistence.Ticket, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetTicketByCode loads a ticket by its per-event code.
func (r *TicketRepository) GetTicketByCode(ctx context.Context, eventID, code string) (persistence.Ticket, error) {
	return r.findOne(ctx, bson.M{"event_id": eventID, "code": code})
}

func (r *TicketRepository) findOne(ctx context.Context, filter bson.M) (persistence.Ticket, error) {
	var doc ticketDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		return persistence.Ticket{}, mapError(err)
	}
	return doc.model(), nil
}

// ListTicketsByOwner returns a holder's tickets, newest first.
func (r *TicketRepository) ListTicketsByOwner(ctx context.Context, ownerID string) ([]persistence.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	docs, err := findAll[ticketDoc](ctx, r.col, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	tickets := make([]persistence.Ticket, len(docs))
	for i, doc := range docs {
		tickets[i] = doc.model()
	}
	return tickets, nil
}

// CountTicketsByEvent counts an event's tickets, optionally restricted to statuses.
func (r *TicketRepository) CountTicketsByEvent(ctx context.Context, eventID string, statuses ...string) (int64, error) {
	filter := bson.M{"event_id": eventID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	n, err := r.col.CountDocuments(ctx, filter)
	return n, mapError(err)
}

// CountTicketsByTransaction counts the tickets issued by a payment.
func (r *TicketRepository) CountTicketsByTransaction(ctx context.Context, transactionID string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"transaction_id": transactionID})
	return n, mapError(err)
}

// TransitionTicket moves a ticket from one status to another in a single
// conditional update. Moving to used stamps the check-in time.
func (r *TicketRepository) TransitionTicket(ctx context.Context, id, from, to string, at time.Time) (persistence.Ticket, error) {
	set := bson.M{"status": to}
	if to == ticketUsed {
		set["checked_in_at"] = at.UTC()
	}
	var doc ticketDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.model(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return persistence.Ticket{}, mapError(err)
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return persistence.Ticket{}, mapError(err)
	}
	if n == 0 {
		return persistence.Ticket{}, persistence.ErrNotFound
	}
	return persistence.Ticket{}, persistence.ErrConflict
}

// CancelTransactionTickets cancels the still-valid tickets of a payment and
// returns how many changed.
func (r *TicketRepository) CancelTransactionTickets(ctx context.Context, transactionID string) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"transaction_id": transactionID, "status": ticketValid},
		bson.M{"$set": bson.M{"status": ticketCancelled}},
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.ModifiedCount, nil
}

// CheckInRepository appends check-in records.
type CheckInRepository struct {
	col *mongo.Collection
}

// NewCheckInRepository creates a repository over db.
func NewCheckInRepository(db *mongo.Database) *CheckInRepository {
	return &CheckInRepository{col: db.Collection(checkInsCollection)}
}

// CreateCheckIn stores a scan record.
func (r *CheckInRepository) CreateCheckIn(ctx context.Context, checkIn persistence.CheckIn) error {
	_, err := r.col.InsertOne(ctx, checkInDoc{
		ID:          checkIn.ID,
		EventID:     checkIn.EventID,
		TicketID:    checkIn.TicketID,
		ScannedBy:   checkIn.ScannedBy,
		Location:    checkIn.Location,
		CheckedInAt: checkIn.CheckedInAt.UTC(),
	})
	return mapError(err)
}
