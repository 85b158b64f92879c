package auth

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

func newTestAuthenticator() (*TokenAuthenticator, *stepClock) {
	clock := &stepClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokenAuthenticator(types.SecretString("signing-secret"), clock), clock
}

func testRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/v1/billing/subscription", nil)
}

func TestAuthenticate_MintedTokenRoundTrips(t *testing.T) {
	a, _ := newTestAuthenticator()

	token, err := a.Mint("u_1", "F1", types.RoleOwner, time.Hour)
	require.NoError(t, err)

	actor, err := a.Authenticate(testRequest(), token)
	require.NoError(t, err)
	assert.Equal(t, "u_1", actor.ID)
	assert.Equal(t, "F1", actor.FirmID)
	assert.Equal(t, types.RoleOwner, actor.Role)
	assert.Equal(t, types.ActorTypeUser, actor.Type)
}

func TestAuthenticate_RejectsTamperedPayload(t *testing.T) {
	a, _ := newTestAuthenticator()

	memberToken, err := a.Mint("u_1", "F1", types.RoleMember, time.Hour)
	require.NoError(t, err)
	ownerToken, err := a.Mint("u_1", "F1", types.RoleOwner, time.Hour)
	require.NoError(t, err)

	// Splicing an owner claims segment onto a member signature must not
	// verify.
	ownerParts := strings.Split(ownerToken, ".")
	memberParts := strings.Split(memberToken, ".")
	require.Len(t, ownerParts, 3)
	require.Len(t, memberParts, 3)
	forged := memberParts[0] + "." + ownerParts[1] + "." + memberParts[2]

	_, err = a.Authenticate(testRequest(), forged)
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestAuthenticate_RejectsWrongSecret(t *testing.T) {
	a, _ := newTestAuthenticator()
	other := NewTokenAuthenticator(types.SecretString("different-secret"), nil)

	token, err := other.Mint("u_1", "F1", types.RoleOwner, time.Hour)
	require.NoError(t, err)

	_, err = a.Authenticate(testRequest(), token)
	assert.Error(t, err)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	a, clock := newTestAuthenticator()

	token, err := a.Mint("u_1", "F1", types.RoleOwner, time.Hour)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)

	_, err = a.Authenticate(testRequest(), token)
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeAuthTokenExpired, appErr.Code)
}

func TestAuthenticate_ZeroTTLNeverExpires(t *testing.T) {
	a, clock := newTestAuthenticator()

	token, err := a.Mint("svc_internal", "", "", 0)
	require.NoError(t, err)

	clock.t = clock.t.AddDate(1, 0, 0)

	actor, err := a.Authenticate(testRequest(), token)
	require.NoError(t, err)
	assert.Equal(t, "svc_internal", actor.ID)
}

func TestAuthenticate_RejectsUnsignedAlgorithm(t *testing.T) {
	a, _ := newTestAuthenticator()

	// A token whose header declares alg "none" must never be accepted,
	// whatever its claims say.
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"uid":"u_1","fid":"F1","role":"owner"}`))

	_, err := a.Authenticate(testRequest(), header+"."+payload+".")
	require.Error(t, err)
	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, appErr.Code)
}

func TestAuthenticate_MalformedTokens(t *testing.T) {
	a, _ := newTestAuthenticator()

	for _, token := range []string{"", "no-dot-here", "one.dot", "!!!.???.sig", "aGVsbG8.aGVsbG8.not-a-signature"} {
		_, err := a.Authenticate(testRequest(), token)
		assert.Error(t, err, "token %q should be rejected", token)
	}
}
