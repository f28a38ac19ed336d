package mongo

import (
	"context"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spotevents/spot/internal/persistence"
)

// EventRepository stores catalog entries.
type EventRepository struct {
	col *mongo.Collection
}

// NewEventRepository creates a repository over db.
func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(eventsCollection)}
}

// CreateEvent inserts a new event.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	_, err := r.col.InsertOne(ctx, toEventDoc(event))
	return mapError(err)
}

// GetEvent loads an event by ID.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	var doc eventDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return persistence.Event{}, mapError(err)
	}
	return doc.model(), nil
}

// UpdateEvent overwrites the mutable fields. Organizer and creation time are
// fixed.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	doc := toEventDoc(event)
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": event.ID}, bson.M{"$set": bson.M{
		"title":           doc.Title,
		"description":     doc.Description,
		"category":        doc.Category,
		"city":            doc.City,
		"location":        doc.Location,
		"start_date":      doc.StartDate,
		"end_date":        doc.EndDate,
		"image_url":       doc.ImageURL,
		"image_public_id": doc.ImagePublicID,
		"price":           doc.Price,
		"capacity":        doc.Capacity,
		"is_published":    doc.IsPublished,
		"updated_at":      doc.UpdatedAt,
	}})
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEvents returns matching events by start date, latest first.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter, offset, limit int) ([]persistence.Event, int64, error) {
	query := eventQuery(filter)
	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, mapError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_date", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	docs, err := findAll[eventDoc](ctx, r.col, query, opts)
	if err != nil {
		return nil, 0, err
	}
	events := make([]persistence.Event, len(docs))
	for i, doc := range docs {
		events[i] = doc.model()
	}
	return events, total, nil
}

func eventQuery(filter persistence.EventFilter) bson.M {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.City != "" {
		query["city"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.City) + "$", Options: "i"}
	}
	if filter.Query != "" {
		query["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
	}
	if filter.OrganizerID != "" {
		query["organizer_id"] = filter.OrganizerID
	}
	if filter.Published != nil {
		query["is_published"] = *filter.Published
	}
	return query
}
