package booking_models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/shared_models"
)

func testSeats(numbers ...int) []Seat {
	seats := make([]Seat, 0, len(numbers))
	for _, n := range numbers {
		seats = append(seats, Seat{
			SeatNumber: n,
			Passenger:  Passenger{Name: "Ayan Warsame", Age: 28, Gender: "female"},
		})
	}
	return seats
}

func TestCalculateRefund(t *testing.T) {
	cases := []struct {
		total float64
		want  float64
	}{
		{100, 75},
		{40, 30},
		{10, 8},  // 7.5 rounds up
		{33, 25}, // 24.75 rounds up
		{0.5, 0}, // 0.375 rounds down
		{0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CalculateRefund(c.total), "total %.2f", c.total)
	}
}

func TestCanCancelAt(t *testing.T) {
	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.True(t, CanCancelAt(departure, departure.Add(-25*time.Hour)))
	assert.True(t, CanCancelAt(departure, departure.Add(-24*time.Hour)), "exactly 24 hours out is still allowed")
	assert.False(t, CanCancelAt(departure, departure.Add(-23*time.Hour)))
	assert.False(t, CanCancelAt(departure, departure.Add(time.Hour)), "after departure")
}

func TestNewTemporaryBooking(t *testing.T) {
	userID := uuid.New()
	bus := &bus_models.Bus{
		ID:            uuid.New(),
		Fare:          12.50,
		DepartureTime: time.Now().Add(72 * time.Hour),
	}

	booking, err := NewTemporaryBooking(userID, bus, testSeats(3, 4, 5))
	require.NoError(t, err)

	assert.Equal(t, userID, booking.UserID)
	assert.Equal(t, bus.ID, booking.BusID)
	assert.Equal(t, 37.50, booking.TotalAmount, "total is seats times fare")
	assert.Equal(t, shared_models.BookingStatusPending, booking.Status)
	assert.Equal(t, shared_models.PaymentStatusPending, booking.PaymentStatus)
	assert.True(t, booking.IsPending())
	assert.Nil(t, booking.BookingNumber)

	require.NotNil(t, booking.ExpiresAt)
	ttl := time.Until(*booking.ExpiresAt)
	assert.InDelta(t, shared_models.TemporaryBookingTTL.Seconds(), ttl.Seconds(), 5)

	assert.Equal(t, []int{3, 4, 5}, booking.SeatNumbers())
}

func TestBookingJourneyDateComesFromBus(t *testing.T) {
	// A bus leaving in two hours is inside the cancellation cutoff no matter
	// what date the caller might claim.
	bus := &bus_models.Bus{
		ID:            uuid.New(),
		Fare:          15.00,
		DepartureTime: time.Now().Add(2 * time.Hour),
	}

	booking, err := NewTemporaryBooking(uuid.New(), bus, testSeats(1))
	require.NoError(t, err)

	assert.Equal(t, bus.DepartureTime, booking.JourneyDate)
	assert.False(t, CanCancelAt(booking.JourneyDate, time.Now()))
}

func TestNewDirectBooking(t *testing.T) {
	bus := &bus_models.Bus{
		ID:            uuid.New(),
		Fare:          20.00,
		DepartureTime: time.Now().Add(72 * time.Hour),
	}

	booking, err := NewDirectBooking(uuid.New(), bus, testSeats(7), "evc")
	require.NoError(t, err)

	assert.Nil(t, booking.ExpiresAt, "direct bookings carry no expiry window")
	require.NotNil(t, booking.PaymentMethod)
	assert.Equal(t, "evc", *booking.PaymentMethod)
	assert.Equal(t, 20.00, booking.TotalAmount)
	assert.True(t, booking.IsPending())
}

func TestIsPending(t *testing.T) {
	b := &Booking{Status: shared_models.BookingStatusPending, PaymentStatus: shared_models.PaymentStatusPending}
	assert.True(t, b.IsPending())

	b.PaymentStatus = shared_models.PaymentStatusFailed
	assert.False(t, b.IsPending(), "failed payment is no longer a live hold")

	b = &Booking{Status: shared_models.BookingStatusConfirmed, PaymentStatus: shared_models.PaymentStatusCompleted}
	assert.False(t, b.IsPending())
}
