package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/spotevents/spot/internal/persistence"
)

const eventColumns = `id, title, description, category, city, lat, lng, start_date, end_date,
	image_url, image_public_id, price, capacity, organizer_id, is_published, created_at, updated_at`

// EventRepository implements persistence.EventRepository.
type EventRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewEventRepository creates an event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateEvent inserts a catalog entry.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	lat, lng := geoColumns(event.Location)
	_, err := r.helper.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Title, event.Description, event.Category, event.City, lat, lng,
		toMillis(event.StartDate), toMillis(event.EndDate), event.ImageURL, event.ImagePublicID,
		event.Price, event.Capacity, event.OrganizerID, event.IsPublished,
		toMillis(event.CreatedAt), toMillis(event.UpdatedAt),
	)
	return err
}

// GetEvent loads one event.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	event, err := scanEvent(r.helper.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return persistence.Event{}, r.mapper.MapError(err)
	}
	return event, nil
}

// UpdateEvent replaces every mutable column. The organizer and creation time never change.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	lat, lng := geoColumns(event.Location)
	n, err := r.helper.ExecAffected(ctx, `
		UPDATE events
		SET title = ?, description = ?, category = ?, city = ?, lat = ?, lng = ?, start_date = ?, end_date = ?,
			image_url = ?, image_public_id = ?, price = ?, capacity = ?, is_published = ?, updated_at = ?
		WHERE id = ?`,
		event.Title, event.Description, event.Category, event.City, lat, lng,
		toMillis(event.StartDate), toMillis(event.EndDate), event.ImageURL, event.ImagePublicID,
		event.Price, event.Capacity, event.IsPublished, toMillis(event.UpdatedAt), event.ID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event.
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	n, err := r.helper.ExecAffected(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEvents filters and pages events, latest start date first. City matches
// case-insensitively and Query is a case-insensitive title substring.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter, offset, limit int) ([]persistence.Event, int64, error) {
	where, args := eventWhere(filter)

	var total int64
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&total); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}

	rows, err := r.helper.Query(ctx,
		`SELECT `+eventColumns+` FROM events`+where+` ORDER BY start_date DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := []persistence.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

func eventWhere(filter persistence.EventFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.City != "" {
		clauses = append(clauses, "city = ? COLLATE NOCASE")
		args = append(args, filter.City)
	}
	if filter.Query != "" {
		clauses = append(clauses, "instr(lower(title), lower(?)) > 0")
		args = append(args, filter.Query)
	}
	if filter.OrganizerID != "" {
		clauses = append(clauses, "organizer_id = ?")
		args = append(args, filter.OrganizerID)
	}
	if filter.Published != nil {
		clauses = append(clauses, "is_published = ?")
		args = append(args, *filter.Published)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                            persistence.Event
		lat, lng                         sql.NullFloat64
		start, end, createdAt, updatedAt int64
	)
	err := row.Scan(&event.ID, &event.Title, &event.Description, &event.Category, &event.City, &lat, &lng,
		&start, &end, &event.ImageURL, &event.ImagePublicID, &event.Price, &event.Capacity,
		&event.OrganizerID, &event.IsPublished, &createdAt, &updatedAt)
	if err != nil {
		return persistence.Event{}, err
	}
	event.Location = geoPoint(lat, lng)
	event.StartDate = fromMillis(start)
	event.EndDate = fromMillis(end)
	event.CreatedAt = fromMillis(createdAt)
	event.UpdatedAt = fromMillis(updatedAt)
	return event, nil
}
