package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

type mockFirmStore struct {
	mock.Mock
}

func (m *mockFirmStore) Create(ctx context.Context, f *types.Firm) error {
	return m.Called(ctx, f).Error(0)
}

func (m *mockFirmStore) GetByReferralCode(ctx context.Context, code string) (*types.Firm, error) {
	args := m.Called(ctx, code)
	if f := args.Get(0); f != nil {
		return f.(*types.Firm), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReferralCreator struct {
	mock.Mock
}

func (m *mockReferralCreator) Create(ctx context.Context, ref types.Referral) error {
	return m.Called(ctx, ref).Error(0)
}

func newOnboardingFixture() (*Onboarding, *mockFirmStore, *mockReferralCreator) {
	firms := new(mockFirmStore)
	referrals := new(mockReferralCreator)
	return NewOnboarding(firms, referrals, fixedClock{}, nil), firms, referrals
}

func TestRegisterFirm_IssuesReferralCode(t *testing.T) {
	svc, firms, referrals := newOnboardingFixture()

	firms.On("Create", mock.Anything, mock.MatchedBy(func(f *types.Firm) bool {
		return f.Name == "Verma Valuers" &&
			f.OwnerID == "u_owner" &&
			f.ID != "" &&
			len(f.ReferralCode) == 8 &&
			f.ReferredBy == ""
	})).Return(nil)

	firm, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:    "Verma Valuers",
		OwnerID: "u_owner",
	})
	require.NoError(t, err)
	assert.Len(t, firm.ReferralCode, 8)
	firms.AssertExpectations(t)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterFirm_LinksPendingReferral(t *testing.T) {
	svc, firms, referrals := newOnboardingFixture()

	firms.On("GetByReferralCode", mock.Anything, "SHARMA10").
		Return(&types.Firm{ID: "F_ref", OwnerID: "u_other", ReferralCode: "SHARMA10"}, nil)

	var created *types.Firm
	firms.On("Create", mock.Anything, mock.MatchedBy(func(f *types.Firm) bool {
		created = f
		return f.ReferredBy == "F_ref"
	})).Return(nil)
	referrals.On("Create", mock.Anything, mock.MatchedBy(func(ref types.Referral) bool {
		return ref.ReferrerFirmID == "F_ref" &&
			ref.RefereeFirmID == created.ID &&
			ref.RefereeUserID == "u_owner" &&
			ref.Status == types.ReferralPending
	})).Return(nil)

	firm, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:         "Verma Valuers",
		OwnerID:      "u_owner",
		ReferralCode: "SHARMA10",
	})
	require.NoError(t, err)
	assert.Equal(t, "F_ref", firm.ReferredBy)
	firms.AssertExpectations(t)
	referrals.AssertExpectations(t)
}

func TestRegisterFirm_UnknownCodeIgnored(t *testing.T) {
	svc, firms, referrals := newOnboardingFixture()

	// A stale referral link must not block signup.
	firms.On("GetByReferralCode", mock.Anything, "GONE1234").Return(nil, nil)
	firms.On("Create", mock.Anything, mock.MatchedBy(func(f *types.Firm) bool {
		return f.ReferredBy == ""
	})).Return(nil)

	firm, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:         "Verma Valuers",
		OwnerID:      "u_owner",
		ReferralCode: "GONE1234",
	})
	require.NoError(t, err)
	assert.Empty(t, firm.ReferredBy)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterFirm_SelfReferralIgnored(t *testing.T) {
	svc, firms, referrals := newOnboardingFixture()

	// The owner's own code on an earlier firm earns them nothing.
	firms.On("GetByReferralCode", mock.Anything, "MINE1234").
		Return(&types.Firm{ID: "F_mine", OwnerID: "u_owner", ReferralCode: "MINE1234"}, nil)
	firms.On("Create", mock.Anything, mock.MatchedBy(func(f *types.Firm) bool {
		return f.ReferredBy == ""
	})).Return(nil)

	firm, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:         "Second Firm",
		OwnerID:      "u_owner",
		ReferralCode: "MINE1234",
	})
	require.NoError(t, err)
	assert.Empty(t, firm.ReferredBy)
	referrals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterFirm_ReferralInsertFailureKeepsSignup(t *testing.T) {
	svc, firms, referrals := newOnboardingFixture()

	firms.On("GetByReferralCode", mock.Anything, "SHARMA10").
		Return(&types.Firm{ID: "F_ref", OwnerID: "u_other"}, nil)
	firms.On("Create", mock.Anything, mock.Anything).Return(nil)
	referrals.On("Create", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeInternalDB, "insert failed", errors.New("down")))

	firm, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:         "Verma Valuers",
		OwnerID:      "u_owner",
		ReferralCode: "SHARMA10",
	})
	require.NoError(t, err)
	assert.NotNil(t, firm)
}

func TestRegisterFirm_CreateFailurePropagates(t *testing.T) {
	svc, firms, _ := newOnboardingFixture()

	firms.On("Create", mock.Anything, mock.Anything).
		Return(types.NewAppError(types.ErrCodeInternalDB, "insert failed", errors.New("down")))

	_, err := svc.RegisterFirm(context.Background(), RegisterFirmInput{
		Name:    "Verma Valuers",
		OwnerID: "u_owner",
	})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
