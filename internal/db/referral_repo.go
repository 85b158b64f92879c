package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// ReferralRepo persists referral records. Implements
// billing.ReferralRepository.
type ReferralRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewReferralRepo creates a ReferralRepo backed by the given connection.
func NewReferralRepo(db DBTX, logger *slog.Logger) *ReferralRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferralRepo{db: db, logger: logger}
}

// Create records a pending referral at firm signup. The conflict guard
// enforces at most one referral per referee firm; a duplicate insert is a
// silent no-op, keeping signup idempotent on retry.
func (r *ReferralRepo) Create(ctx context.Context, ref types.Referral) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO referrals (id, referrer_firm_id, referee_firm_id, referee_user_id,
		                        status, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		 ON CONFLICT (referee_firm_id) DO NOTHING`,
		ref.ID, ref.ReferrerFirmID, ref.RefereeFirmID, ref.RefereeUserID,
		types.ReferralPending, ref.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create referral", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "referral already recorded for firm, skipping",
			"referee_firm_id", ref.RefereeFirmID,
		)
	}
	return nil
}

// FindPending returns the pending referral linking the referee to the
// referrer, or (nil, nil) when none exists.
func (r *ReferralRepo) FindPending(ctx context.Context, refereeFirmID, referrerFirmID string) (*types.Referral, error) {
	var ref types.Referral
	err := r.db.QueryRow(ctx,
		`SELECT id, referrer_firm_id, referee_firm_id, COALESCE(referee_user_id, ''),
		        status, created_at, rewarded_at
		 FROM referrals
		 WHERE referee_firm_id = $1 AND referrer_firm_id = $2 AND status = $3`,
		refereeFirmID, referrerFirmID, types.ReferralPending,
	).Scan(
		&ref.ID, &ref.ReferrerFirmID, &ref.RefereeFirmID, &ref.RefereeUserID,
		&ref.Status, &ref.CreatedAt, &ref.RewardedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load referral", err)
	}
	return &ref, nil
}

// MarkRewarded flips the referral to rewarded. The status guard in the
// WHERE clause makes the transition one-way; a referral already rewarded is
// left untouched.
func (r *ReferralRepo) MarkRewarded(ctx context.Context, referralID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE referrals SET status = $1, rewarded_at = $2
		 WHERE id = $3 AND status = $4`,
		types.ReferralRewarded, at, referralID, types.ReferralPending,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark referral rewarded", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.InfoContext(ctx, "referral already rewarded, skipping",
			"referral_id", referralID,
		)
	}
	return nil
}
