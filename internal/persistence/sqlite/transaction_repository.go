package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/spotevents/spot/internal/persistence"
)

const transactionColumns = `id, payment_intent_id, event_id, organizer_id, payer_id, quantity, amount,
	platform_fee, organizer_share, currency, status, refunded_at, created_at`

// TransactionRepository implements persistence.TransactionRepository.
type TransactionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTransactionRepository creates a transaction repository.
func NewTransactionRepository(pool *ConnectionPool) *TransactionRepository {
	return &TransactionRepository{pool: pool, helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// CreateTransaction records a settled payment. The unique payment intent
// column makes redelivered webhooks fail with persistence.ErrDuplicate.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx persistence.Transaction) error {
	_, err := r.helper.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`) VALUES (`+placeholders(13)+`)`,
		tx.ID, tx.PaymentIntentID, tx.EventID, tx.OrganizerID, tx.PayerID, tx.Quantity, tx.Amount,
		tx.PlatformFee, tx.OrganizerShare, tx.Currency, tx.Status, nullMillis(tx.RefundedAt), toMillis(tx.CreatedAt),
	)
	return err
}

// GetTransactionByIntent loads the payment recorded for an intent.
func (r *TransactionRepository) GetTransactionByIntent(ctx context.Context, paymentIntentID string) (persistence.Transaction, error) {
	return r.getByIntent(ctx, r.pool.db, paymentIntentID)
}

func (r *TransactionRepository) getByIntent(ctx context.Context, q querier, paymentIntentID string) (persistence.Transaction, error) {
	tx, err := scanTransaction(q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE payment_intent_id = ?`, paymentIntentID))
	if err != nil {
		return persistence.Transaction{}, r.mapper.MapError(err)
	}
	return tx, nil
}

// MarkRefunded flips a successful payment to refunded exactly once. A second
// call reports persistence.ErrConflict.
func (r *TransactionRepository) MarkRefunded(ctx context.Context, paymentIntentID string, at time.Time) (persistence.Transaction, error) {
	var refunded persistence.Transaction
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = 'refunded', refunded_at = ? WHERE payment_intent_id = ? AND status = 'success'`,
			toMillis(at), paymentIntentID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if refunded, err = r.getByIntent(ctx, tx, paymentIntentID); err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrConflict
		}
		return nil
	})
	if err != nil {
		return persistence.Transaction{}, err
	}
	return refunded, nil
}

// ListTransactions pages through payments, newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, offset, limit int) ([]persistence.Transaction, int64, error) {
	var total int64
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	rows, err := r.helper.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, r.mapper.MapError(err)
	}
	defer rows.Close()

	txs := []persistence.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}

// SumTransactions totals payments in status, for one event or for all events
// when eventID is empty.
func (r *TransactionRepository) SumTransactions(ctx context.Context, eventID, status string) (persistence.TransactionTotals, error) {
	var totals persistence.TransactionTotals
	err := r.helper.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(platform_fee), 0), COALESCE(SUM(organizer_share), 0)
		FROM transactions
		WHERE status = ? AND (? = '' OR event_id = ?)`, status, eventID, eventID,
	).Scan(&totals.Count, &totals.Gross, &totals.PlatformFees, &totals.OrganizerShare)
	if err != nil {
		return persistence.TransactionTotals{}, r.mapper.MapError(err)
	}
	return totals, nil
}

func scanTransaction(row rowScanner) (persistence.Transaction, error) {
	var (
		tx        persistence.Transaction
		refunded  sql.NullInt64
		createdAt int64
	)
	err := row.Scan(&tx.ID, &tx.PaymentIntentID, &tx.EventID, &tx.OrganizerID, &tx.PayerID, &tx.Quantity,
		&tx.Amount, &tx.PlatformFee, &tx.OrganizerShare, &tx.Currency, &tx.Status, &refunded, &createdAt)
	if err != nil {
		return persistence.Transaction{}, err
	}
	tx.RefundedAt = timePtr(refunded)
	tx.CreatedAt = fromMillis(createdAt)
	return tx, nil
}

// PayoutRepository implements persistence.PayoutRepository.
type PayoutRepository struct {
	helper *QueryHelper
}

// NewPayoutRepository creates a payout repository.
func NewPayoutRepository(pool *ConnectionPool) *PayoutRepository {
	return &PayoutRepository{helper: NewQueryHelper(pool)}
}

// CreatePayout records an amount owed to an organizer.
func (r *PayoutRepository) CreatePayout(ctx context.Context, payout persistence.Payout) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO payouts (id, organizer_id, amount, status, note, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		payout.ID, payout.OrganizerID, payout.Amount, payout.Status, payout.Note, payout.CreatedBy, toMillis(payout.CreatedAt),
	)
	return err
}

// SubscriptionRepository implements persistence.SubscriptionRepository.
type SubscriptionRepository struct {
	helper *QueryHelper
}

// NewSubscriptionRepository creates a subscription repository.
func NewSubscriptionRepository(pool *ConnectionPool) *SubscriptionRepository {
	return &SubscriptionRepository{helper: NewQueryHelper(pool)}
}

// CreateSubscription records a plan grant.
func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, subscription persistence.Subscription) error {
	_, err := r.helper.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan, status, started_at, ends_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		subscription.ID, subscription.UserID, subscription.Plan, subscription.Status,
		toMillis(subscription.StartedAt), nullMillis(subscription.EndsAt),
	)
	return err
}

// AnalyticsRepository implements persistence.AnalyticsRepository.
type AnalyticsRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAnalyticsRepository creates an analytics repository.
func NewAnalyticsRepository(pool *ConnectionPool) *AnalyticsRepository {
	return &AnalyticsRepository{helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

// RecordAnalytics appends a usage row.
func (r *AnalyticsRepository) RecordAnalytics(ctx context.Context, event persistence.AnalyticsEvent) error {
	_, err := r.helper.Exec(ctx,
		`INSERT INTO analytics_events (id, event_id, kind, user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.EventID, event.Kind, event.UserID, toMillis(event.CreatedAt))
	return err
}

// CountAnalytics counts rows of one kind for an event.
func (r *AnalyticsRepository) CountAnalytics(ctx context.Context, eventID, kind string) (int64, error) {
	var n int64
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM analytics_events WHERE event_id = ? AND kind = ?`, eventID, kind).Scan(&n)
	return n, r.mapper.MapError(err)
}
