package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestService(accessTTL, refreshTTL time.Duration) *Service {
	return NewService("access-secret", "refresh-secret", accessTTL, refreshTTL)
}

func TestIssuePairRoundTrip(t *testing.T) {
	svc := newTestService(15*time.Minute, 7*24*time.Hour)
	userID := primitive.NewObjectID()

	access, refresh, err := svc.IssuePair(userID)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	gotAccess, err := svc.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, userID, gotAccess)

	gotRefresh, err := svc.VerifyRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, userID, gotRefresh)
}

func TestVerifyRejectsCrossTokenKind(t *testing.T) {
	svc := newTestService(15*time.Minute, 7*24*time.Hour)
	userID := primitive.NewObjectID()

	access, refresh, err := svc.IssuePair(userID)
	require.NoError(t, err)

	// distinct secrets: a refresh token must never pass access
	// verification, or vice versa
	_, err = svc.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := newTestService(-time.Minute, -time.Minute)
	userID := primitive.NewObjectID()

	access, refresh, err := svc.IssuePair(userID)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = svc.VerifyRefresh(refresh)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyGarbageToken(t *testing.T) {
	svc := newTestService(15*time.Minute, 7*24*time.Hour)

	for _, raw := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		_, err := svc.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, "raw=%q", raw)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := newTestService(15*time.Minute, 7*24*time.Hour)
	other := NewService("other-access", "other-refresh", 15*time.Minute, 7*24*time.Hour)
	userID := primitive.NewObjectID()

	access, err := other.IssueAccess(userID)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestHashTokenStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
