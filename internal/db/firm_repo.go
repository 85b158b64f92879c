package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// FirmRepo provides firm lookups and the trial-report counter. Implements
// billing.FirmReader.
type FirmRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewFirmRepo creates a FirmRepo backed by the given connection.
func NewFirmRepo(db DBTX, logger *slog.Logger) *FirmRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirmRepo{db: db, logger: logger}
}

// Create inserts a new firm. The referral code must already be generated
// and unique; a collision surfaces as a database error.
func (r *FirmRepo) Create(ctx context.Context, f *types.Firm) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO firms (id, name, owner_id, referral_code, referred_by,
		                    trial_reports_used, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), 0, NOW(), NOW())`,
		f.ID, f.Name, f.OwnerID, f.ReferralCode, f.ReferredBy,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create firm", err)
	}
	return nil
}

// GetByReferralCode resolves a referral code to its owning firm. Returns
// (nil, nil) when no firm carries the code; an unknown code is not an error
// at this layer.
func (r *FirmRepo) GetByReferralCode(ctx context.Context, code string) (*types.Firm, error) {
	var f types.Firm
	err := r.db.QueryRow(ctx,
		`SELECT id, name, owner_id, referral_code, COALESCE(referred_by, ''),
		        trial_reports_used, created_at, updated_at, deleted_at
		 FROM firms
		 WHERE referral_code = $1 AND deleted_at IS NULL`,
		code,
	).Scan(
		&f.ID, &f.Name, &f.OwnerID, &f.ReferralCode, &f.ReferredBy,
		&f.TrialReportsUsed, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve referral code", err)
	}
	return &f, nil
}

// GetByID returns the firm, excluding soft-deleted records.
func (r *FirmRepo) GetByID(ctx context.Context, firmID string) (*types.Firm, error) {
	var f types.Firm
	err := r.db.QueryRow(ctx,
		`SELECT id, name, owner_id, referral_code, COALESCE(referred_by, ''),
		        trial_reports_used, created_at, updated_at, deleted_at
		 FROM firms
		 WHERE id = $1 AND deleted_at IS NULL`,
		firmID,
	).Scan(
		&f.ID, &f.Name, &f.OwnerID, &f.ReferralCode, &f.ReferredBy,
		&f.TrialReportsUsed, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundFirm, "firm not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load firm", err)
	}
	return &f, nil
}

// CountActiveMembers counts the firm's non-deleted memberships. Seat
// reductions may not drop the total allotment below this number.
func (r *FirmRepo) CountActiveMembers(ctx context.Context, firmID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM firm_members
		 WHERE firm_id = $1 AND deleted_at IS NULL`,
		firmID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count firm members", err)
	}
	return count, nil
}

// ConsumeTrialReport increments the firm's trial counter if and only if it
// is still under the limit. Returns the updated count and whether the
// consumption was allowed. The guarded UPDATE makes concurrent consumption
// safe without an explicit transaction.
func (r *FirmRepo) ConsumeTrialReport(ctx context.Context, firmID string, limit int) (int, bool, error) {
	var used int
	err := r.db.QueryRow(ctx,
		`UPDATE firms
		 SET trial_reports_used = trial_reports_used + 1,
		     updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL AND trial_reports_used < $2
		 RETURNING trial_reports_used`,
		firmID, limit,
	).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the firm is gone or the limit is already reached;
			// disambiguate with a read.
			firm, lookupErr := r.GetByID(ctx, firmID)
			if lookupErr != nil {
				return 0, false, lookupErr
			}
			return firm.TrialReportsUsed, false, nil
		}
		return 0, false, types.NewAppError(types.ErrCodeInternalDB, "failed to consume trial report", err)
	}
	return used, true, nil
}
