package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustomRate(t *testing.T) {
	cases := []struct {
		in     string
		limit  int64
		period time.Duration
	}{
		{"10-2m", 10, 2 * time.Minute},
		{"5-1h", 5, time.Hour},
		{"20-10s", 20, 10 * time.Second},
		{"1-30m", 1, 30 * time.Minute},
	}
	for _, c := range cases {
		rate, err := ParseCustomRate(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.limit, rate.Limit, c.in)
		assert.Equal(t, c.period, rate.Period, c.in)
	}
}

func TestParseCustomRateRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "10", "10-2d", "x-2m", "10-xm", "10-2m-extra"} {
		_, err := ParseCustomRate(in)
		assert.Error(t, err, in)
	}
}
