package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexSpecs() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_unique")},
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_name_unique")},
			// Sparse so that accounts without a linked provider do not collide.
			{Keys: bson.D{{Key: "google_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("users_google_id_unique")},
			{Keys: bson.D{{Key: "github_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true).SetName("users_github_id_unique")},
			{Keys: bson.D{{Key: "refresh_token_hash", Value: 1}}, Options: options.Index().SetName("users_refresh_token")},
			{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("users_created_at")},
		},
		pendingUsersCollection: {
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("pending_users_ttl")},
		},
		otpsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("otps_lookup")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("otps_ttl")},
		},
		eventsCollection: {
			{Keys: bson.D{{Key: "start_date", Value: -1}}, Options: options.Index().SetName("events_start_date")},
			{Keys: bson.D{{Key: "organizer_id", Value: 1}}, Options: options.Index().SetName("events_organizer")},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "is_published", Value: 1}}, Options: options.Index().SetName("events_category")},
		},
		ticketsCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "code", Value: 1}}, Options: options.Index().SetUnique(true).SetName("tickets_event_code_unique")},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("tickets_owner")},
			{Keys: bson.D{{Key: "transaction_id", Value: 1}}, Options: options.Index().SetName("tickets_transaction")},
		},
		checkInsCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetName("check_ins_event")},
		},
		transactionsCollection: {
			{Keys: bson.D{{Key: "payment_intent_id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("transactions_intent_unique")},
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "status", Value: 1}}, Options: options.Index().SetName("transactions_event_status")},
			{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("transactions_created_at")},
		},
		analyticsCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "kind", Value: 1}}, Options: options.Index().SetName("analytics_event_kind")},
		},
	}
}

// EnsureIndexes creates every index the repositories rely on. Existing
// indexes with the same definition are left alone.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	for name, models := range indexSpecs() {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: %s indexes: %w", name, err)
		}
	}
	s.logger.InfoContext(ctx, "indexes ensured", "collections", len(indexSpecs()))
	return nil
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{"expires_at": bson.M{"$lte": now.UTC()}}
}
