package bus_models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

func TestDayWindowUTC(t *testing.T) {
	t.Run("MidDayUTC", func(t *testing.T) {
		start, end := DayWindowUTC(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("ZoneAheadOfUTC", func(t *testing.T) {
		// 01:00 on March 11 in UTC+3 is still March 10 in UTC.
		zone := time.FixedZone("EAT", 3*60*60)
		start, _ := DayWindowUTC(time.Date(2026, 3, 11, 1, 0, 0, 0, zone))
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), start)
	})

	t.Run("WindowIsExactly24Hours", func(t *testing.T) {
		start, end := DayWindowUTC(time.Now())
		assert.Equal(t, 24*time.Hour, end.Sub(start))
	})
}

func TestNewBus(t *testing.T) {
	dep := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	arr := dep.Add(7 * time.Hour)

	t.Run("Defaults", func(t *testing.T) {
		bus, err := NewBus("Dahab Express", "DH-102", "Mogadishu", "Garowe", dep, arr, 25, 40, "", "AC", []string{"wifi"})
		require.NoError(t, err)
		assert.Equal(t, 40, bus.AvailableSeats, "available seats start at total")
		assert.Equal(t, "2x2", bus.SeatLayout, "layout defaults to 2x2")
		assert.Equal(t, shared_models.BusStatusActive, bus.Status)
		assert.Equal(t, 7, bus.Duration())
	})

	t.Run("RejectsNonPositiveFare", func(t *testing.T) {
		_, err := NewBus("Dahab Express", "DH-103", "Mogadishu", "Garowe", dep, arr, 0, 40, "2x2", "AC", nil)
		require.Error(t, err)
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "fare", ve.Field)
	})

	t.Run("RejectsZeroSeats", func(t *testing.T) {
		_, err := NewBus("Dahab Express", "DH-104", "Mogadishu", "Garowe", dep, arr, 25, 0, "2x2", "AC", nil)
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "total_seats", ve.Field)
	})
}
