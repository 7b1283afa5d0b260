package shared_models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBookingNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		number, err := GenerateBookingNumber()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(number, "BK"))
		assert.Len(t, number, 2+16)
		assert.False(t, seen[number], "booking numbers must not repeat")
		seen[number] = true
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{BookingStatusPending, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusCancelled, true},
		{BookingStatusConfirmed, BookingStatusPending, false},
		{BookingStatusCancelled, BookingStatusConfirmed, false},
		{BookingStatusCancelled, BookingStatusPending, false},
		{BookingStatusPending, BookingStatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	userID, err := uuid.NewV7()
	require.NoError(t, err)

	token, err := GenerateAccessToken(userID, RoleCustomer, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RoleCustomer, claims.Role)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	userID, err := uuid.NewV7()
	require.NoError(t, err)

	token, err := GenerateAccessToken(userID, RoleAdmin, -2*time.Hour)
	require.NoError(t, err)

	_, err = ParseAccessToken(token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsGarbage(t *testing.T) {
	_, err := ParseAccessToken("not-a-token")
	assert.Error(t, err)
}
