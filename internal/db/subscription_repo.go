package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/billing"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// SubscriptionRepo is the persistence for per-firm subscription records.
// Implements billing.SubscriptionRepository.
//
// Every mutation is a targeted field update so the three concurrent writers
// (payment verification, webhooks, seat scheduling) cannot clobber each
// other's unrelated fields.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewSubscriptionRepo creates a SubscriptionRepo backed by the given
// connection.
func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

const subscriptionColumns = `firm_id, plan, status,
	provider_subscription_id, COALESCE(provider_payment_id, ''),
	current_period_end,
	seats_purchased, COALESCE(seats_provider_subscription_id, ''),
	seats_period_end, COALESCE(seats_status, ''), seats_pending_reduction,
	created_at, updated_at`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.FirmID, &s.Plan, &s.Status,
		&s.ProviderSubscriptionID, &s.ProviderPaymentID,
		&s.CurrentPeriodEnd,
		&s.Seats.Purchased, &s.Seats.ProviderSubscriptionID,
		&s.Seats.PeriodEnd, &s.Seats.Status, &s.Seats.PendingReduction,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Seats.Included = types.IncludedSeats
	s.Seats.Total = s.Seats.Included + s.Seats.Purchased
	return &s, nil
}

// Get returns the firm's subscription record, or (nil, nil) when none
// exists. Absence is the trial state, not an error.
func (r *SubscriptionRepo) Get(ctx context.Context, firmID string) (*types.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE firm_id = $1`,
		firmID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load subscription", err)
	}
	return sub, nil
}

// UpsertActivation creates or refreshes the base subscription on a verified
// charge. Seat columns are initialized only on insert; the update path
// leaves them alone.
func (r *SubscriptionRepo) UpsertActivation(ctx context.Context, up billing.ActivationUpdate) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (
		     firm_id, plan, status,
		     provider_subscription_id, provider_payment_id, current_period_end,
		     seats_purchased, created_at, updated_at
		 ) VALUES ($1, $2, 'active', $3, $4, $5, 0, NOW(), NOW())
		 ON CONFLICT (firm_id) DO UPDATE SET
		     plan = EXCLUDED.plan,
		     status = 'active',
		     provider_subscription_id = EXCLUDED.provider_subscription_id,
		     provider_payment_id = EXCLUDED.provider_payment_id,
		     current_period_end = EXCLUDED.current_period_end,
		     updated_at = NOW()`,
		up.FirmID, up.Plan, up.ProviderSubscriptionID, up.ProviderPaymentID, up.CurrentPeriodEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert subscription activation", err)
	}
	return nil
}

// SetStatus sets the base subscription status.
func (r *SubscriptionRepo) SetStatus(ctx context.Context, firmID string, status types.SubscriptionStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = NOW() WHERE firm_id = $2`,
		status, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set subscription status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}

// SetCurrentPeriodEnd sets the base period end.
func (r *SubscriptionRepo) SetCurrentPeriodEnd(ctx context.Context, firmID string, end time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET current_period_end = $1, updated_at = NOW() WHERE firm_id = $2`,
		end, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set period end", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}

// UpdateSeats refreshes the seats sub-record. Empty ProviderSubscriptionID
// and nil PeriodEnd leave the stored values untouched.
func (r *SubscriptionRepo) UpdateSeats(ctx context.Context, firmID string, up billing.SeatUpdate) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET
		     seats_purchased = $1,
		     seats_provider_subscription_id = COALESCE(NULLIF($2, ''), seats_provider_subscription_id),
		     seats_period_end = COALESCE($3, seats_period_end),
		     seats_status = $4,
		     updated_at = NOW()
		 WHERE firm_id = $5`,
		up.Purchased, up.ProviderSubscriptionID, up.PeriodEnd, up.Status, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update seats", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}

// SetSeatStatus sets only the seats status.
func (r *SubscriptionRepo) SetSeatStatus(ctx context.Context, firmID string, status types.SeatStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET seats_status = $1, updated_at = NOW() WHERE firm_id = $2`,
		status, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set seat status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}

// SetPendingReduction stages a purchased-seat target for the next seats
// renewal.
func (r *SubscriptionRepo) SetPendingReduction(ctx context.Context, firmID string, target int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET seats_pending_reduction = $1, updated_at = NOW() WHERE firm_id = $2`,
		target, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set pending reduction", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}

// ClearPendingReduction removes any staged reduction. The marker goes to
// NULL, never zero; zero is a real target meaning "cancel all seats".
func (r *SubscriptionRepo) ClearPendingReduction(ctx context.Context, firmID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET seats_pending_reduction = NULL, updated_at = NOW() WHERE firm_id = $1`,
		firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear pending reduction", err)
	}
	return nil
}

// ResetSeats zeroes purchased seats, marks the seat status cancelled, and
// clears the provider linkage and any pending reduction.
func (r *SubscriptionRepo) ResetSeats(ctx context.Context, firmID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET
		     seats_purchased = 0,
		     seats_provider_subscription_id = NULL,
		     seats_period_end = NULL,
		     seats_status = $1,
		     seats_pending_reduction = NULL,
		     updated_at = NOW()
		 WHERE firm_id = $2`,
		types.SeatStatusCancelled, firmID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reset seats", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for firm", nil)
	}
	return nil
}
