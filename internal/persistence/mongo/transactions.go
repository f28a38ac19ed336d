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
	transactionSuccess  = "success"
	transactionRefunded = "refunded"
)

// TransactionRepository stores settled payments keyed by payment intent.
type TransactionRepository struct {
	col *mongo.Collection
}

// NewTransactionRepository creates a repository over db.
func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{col: db.Collection(transactionsCollection)}
}

// CreateTransaction records a payment. A second record for the same intent
// fails with persistence.ErrDuplicate.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx persistence.Transaction) error {
	_, err := r.col.InsertOne(ctx, toTransactionDoc(tx))
	return mapError(err)
}

// GetTransactionByIntent loads a payment by its gateway intent ID.
func (r *TransactionRepository) GetTransactionByIntent(ctx context.Context, paymentIntentID string) (persistence.Transaction, error) {
	var doc transactionDoc
	if err := r.col.FindOne(ctx, bson.M{"payment_intent_id": paymentIntentID}).Decode(&doc); err != nil {
		return persistence.Transaction{}, mapError(err)
	}
	return doc.model(), nil
}

// MarkRefunded flips a successful payment to refunded.
func (r *TransactionRepository) MarkRefunded(ctx context.Context, paymentIntentID string, at time.Time) (persistence.Transaction, error) {
	var doc transactionDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"payment_intent_id": paymentIntentID, "status": transactionSuccess},
		bson.M{"$set": bson.M{"status": transactionRefunded, "refunded_at": at.UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.model(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return persistence.Transaction{}, mapError(err)
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"payment_intent_id": paymentIntentID})
	if err != nil {
		return persistence.Transaction{}, mapError(err)
	}
	if n == 0 {
		return persistence.Transaction{}, persistence.ErrNotFound
	}
	return persistence.Transaction{}, persistence.ErrConflict
}

// ListTransactions pages through payments, newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, offset, limit int) ([]persistence.Transaction, int64, error) {
	total, err := r.col.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, mapError(err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	docs, err := findAll[transactionDoc](ctx, r.col, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	txs := make([]persistence.Transaction, len(docs))
	for i, doc := range docs {
		txs[i] = doc.model()
	}
	return txs, total, nil
}

// SumTransactions totals payments with status, for one event or, when eventID
// is empty, for the whole platform.
func (r *TransactionRepository) SumTransactions(ctx context.Context, eventID, status string) (persistence.TransactionTotals, error) {
	match := bson.M{"status": status}
	if eventID != "" {
		match["event_id"] = eventID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.M{"$sum": 1}},
			{Key: "gross", Value: bson.M{"$sum": "$amount"}},
			{Key: "fees", Value: bson.M{"$sum": "$platform_fee"}},
			{Key: "share", Value: bson.M{"$sum": "$organizer_share"}},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return persistence.TransactionTotals{}, mapError(err)
	}
	defer cur.Close(ctx)

	var totals persistence.TransactionTotals
	if cur.Next(ctx) {
		var row struct {
			Count int64 `bson:"count"`
			Gross int64 `bson:"gross"`
			Fees  int64 `bson:"fees"`
			Share int64 `bson:"share"`
		}
		if err := cur.Decode(&row); err != nil {
			return persistence.TransactionTotals{}, err
		}
		totals = persistence.TransactionTotals{
			Count:          row.Count,
			Gross:          row.Gross,
			PlatformFees:   row.Fees,
			OrganizerShare: row.Share,
		}
	}
	return totals, mapError(cur.Err())
}

// PayoutRepository stores organizer payouts.
type PayoutRepository struct {
	col *mongo.Collection
}

// NewPayoutRepository creates a repository over db.
func NewPayoutRepository(db *mongo.Database) *PayoutRepository {
	return &PayoutRepository{col: db.Collection(payoutsCollection)}
}

// CreatePayout stores a payout.
func (r *PayoutRepository) CreatePayout(ctx context.Context, payout persistence.Payout) error {
	_, err := r.col.InsertOne(ctx, payoutDoc{
		ID:          payout.ID,
		OrganizerID: payout.OrganizerID,
		Amount:      payout.Amount,
		Status:      payout.Status,
		Note:        payout.Note,
		CreatedBy:   payout.CreatedBy,
		CreatedAt:   payout.CreatedAt.UTC(),
	})
	return mapError(err)
}

// SubscriptionRepository stores plan grants.
type SubscriptionRepository struct {
	col *mongo.Collection
}

// NewSubscriptionRepository creates a repository over db.
func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection(subscriptionsCollection)}
}

// CreateSubscription stores a plan grant.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, subscription persistence.Subscription) error {
	_, err := r.col.InsertOne(ctx, subscriptionDoc{
		ID:        subscription.ID,
		UserID:    subscription.UserID,
		Plan:      subscription.Plan,
		Status:    subscription.Status,
		StartedAt: subscription.StartedAt.UTC(),
		EndsAt:    utcPtr(subscription.EndsAt),
	})
	return mapError(err)
}

// AnalyticsRepository stores usage records.
type AnalyticsRepository struct {
	col *mongo.Collection
}

// NewAnalyticsRepository creates a repository over db.
func NewAnalyticsRepository(db *mongo.Database) *AnalyticsRepository {
	return &AnalyticsRepository{col: db.Collection(analyticsCollection)}
}

// RecordAnalytics appends a usage record.
func (r *AnalyticsRepository) RecordAnalytics(ctx context.Context, event persistence.AnalyticsEvent) error {
	_, err := r.col.InsertOne(ctx, analyticsDoc{
		ID:        event.ID,
		EventID:   event.EventID,
		Kind:      event.Kind,
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt.UTC(),
	})
	return mapError(err)
}

// CountAnalytics counts records of kind for an event.
func (r *AnalyticsRepository) CountAnalytics(ctx context.Context, eventID, kind string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"event_id": eventID, "kind": kind})
	return n, mapError(err)
}
