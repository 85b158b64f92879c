package billing

import (
	"context"
	"encoding/base32"
	"log/slog"

	"github.com/google/uuid"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// FirmStore is the persistence contract for firm bootstrap. Implemented by
// db.FirmRepo. GetByReferralCode returns (nil, nil) for an unknown code.
type FirmStore interface {
	Create(ctx context.Context, f *types.Firm) error
	GetByReferralCode(ctx context.Context, code string) (*types.Firm, error)
}

// ReferralCreator records pending referrals at signup. Implemented by
// db.ReferralRepo.
type ReferralCreator interface {
	Create(ctx context.Context, ref types.Referral) error
}

// RegisterFirmInput carries the signup details for a new firm. ReferralCode
// is the code of the referring firm, when the signup came through a
// referral link.
type RegisterFirmInput struct {
	Name         string
	OwnerID      string
	ReferralCode string
}

// Onboarding creates firms and their referral linkage. Every firm is issued
// its own referral code at creation; when the signup carries another firm's
// code, the link is captured as a pending referral that the reward processor
// settles on the referee's first verified payment.
type Onboarding struct {
	firms     FirmStore
	referrals ReferralCreator
	clock     types.Clock
	logger    *slog.Logger
}

// NewOnboarding creates the Onboarding service.
func NewOnboarding(firms FirmStore, referrals ReferralCreator, clock types.Clock, logger *slog.Logger) *Onboarding {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Onboarding{firms: firms, referrals: referrals, clock: clock, logger: logger}
}

// RegisterFirm creates the firm record and, when a valid referral code was
// supplied, the pending referral. An unknown or self-owned referral code is
// ignored rather than rejected: a stale link must not block signup.
func (o *Onboarding) RegisterFirm(ctx context.Context, in RegisterFirmInput) (*types.Firm, error) {
	firm := &types.Firm{
		ID:           uuid.New().String(),
		Name:         in.Name,
		OwnerID:      in.OwnerID,
		ReferralCode: newReferralCode(),
	}

	var referrer *types.Firm
	if in.ReferralCode != "" {
		var err error
		referrer, err = o.firms.GetByReferralCode(ctx, in.ReferralCode)
		if err != nil {
			return nil, err
		}
		switch {
		case referrer == nil:
			o.logger.InfoContext(ctx, "unknown referral code at signup, ignoring",
				"referral_code", in.ReferralCode,
			)
		case referrer.OwnerID == in.OwnerID:
			// An owner cannot refer their own new firm.
			o.logger.InfoContext(ctx, "self-referral at signup, ignoring",
				"referrer_firm_id", referrer.ID,
			)
			referrer = nil
		default:
			firm.ReferredBy = referrer.ID
		}
	}

	if err := o.firms.Create(ctx, firm); err != nil {
		return nil, err
	}

	if referrer != nil {
		ref := types.Referral{
			ID:             uuid.New().String(),
			ReferrerFirmID: referrer.ID,
			RefereeFirmID:  firm.ID,
			RefereeUserID:  in.OwnerID,
			Status:         types.ReferralPending,
			CreatedAt:      o.clock.Now(),
		}
		// The firm exists either way; a failed referral insert loses the
		// perk, not the signup.
		if err := o.referrals.Create(ctx, ref); err != nil {
			o.logger.ErrorContext(ctx, "failed to record referral at signup",
				"referrer_firm_id", referrer.ID,
				"referee_firm_id", firm.ID,
				"error", err,
			)
		}
	}

	return firm, nil
}

var referralCodeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newReferralCode generates an 8-character shareable code. Base32 keeps it
// case-insensitive and free of ambiguous URL characters.
func newReferralCode() string {
	id := uuid.New()
	return referralCodeEncoding.EncodeToString(id[:5])
}
