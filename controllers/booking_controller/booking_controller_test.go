package booking_controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/shared_models"
)

func seatReq(busID string, numbers ...int) CreateBookingRequest {
	seats := make([]booking_models.Seat, 0, len(numbers))
	for _, n := range numbers {
		seats = append(seats, booking_models.Seat{
			SeatNumber: n,
			Passenger:  booking_models.Passenger{Name: "Hodan Ali", Age: 30, Gender: "female"},
		})
	}
	return CreateBookingRequest{BusID: busID, Seats: seats}
}

func TestCreateBookingRequestParse(t *testing.T) {
	valid := "0198a3c2-71f7-7000-8000-000000000001"

	t.Run("Valid", func(t *testing.T) {
		req := seatReq(valid, 1, 2)
		busID, err := req.parse()
		require.NoError(t, err)
		assert.Equal(t, valid, busID.String())
	})

	t.Run("BadBusID", func(t *testing.T) {
		req := seatReq("not-a-uuid", 1)
		_, err := req.parse()
		assert.ErrorContains(t, err, "invalid bus id")
	})

	t.Run("DuplicateSeat", func(t *testing.T) {
		req := seatReq(valid, 3, 3)
		_, err := req.parse()
		assert.ErrorContains(t, err, "duplicate seat number 3")
	})

	t.Run("NonPositiveSeat", func(t *testing.T) {
		req := seatReq(valid, 0)
		_, err := req.parse()
		assert.ErrorContains(t, err, "positive")
	})
}

func TestSeatHoldKey(t *testing.T) {
	req := seatReq("0198a3c2-71f7-7000-8000-000000000001", 1)
	busID, err := req.parse()
	require.NoError(t, err)

	key := seatHoldKey(busID, 12)
	assert.Equal(t, "seat_hold:0198a3c2-71f7-7000-8000-000000000001:12", key)
}

// authedRouter wires a handler behind a stub auth step so binding failures
// can be exercised without a database.
func authedRouter(method, path string, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Handle(method, path, func(c *gin.Context) {
		c.Set("user_id", uuid.Max)
		c.Set("role", "customer")
	}, handler)
	return router
}

func TestCreateBookingRejectsUnknownPaymentMethod(t *testing.T) {
	bc := &BookingController{Service: NewBookingService(nil, nil)}
	router := authedRouter(http.MethodPost, "/bookings", bc.CreateBooking)

	body := []byte(`{
		"bus_id": "0198a3c2-71f7-7000-8000-000000000001",
		"seats": [{"seat_number": 1, "passenger": {"name": "Hodan Ali", "age": 30, "gender": "female"}}],
		"payment_method": "paypal"
	}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid booking data")
}

func TestConfirmBookingValidation(t *testing.T) {
	bc := &BookingController{Service: NewBookingService(nil, nil)}

	t.Run("BadBookingID", func(t *testing.T) {
		router := authedRouter(http.MethodPost, "/bookings/:booking_id/confirm", bc.ConfirmBooking)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings/nope/confirm", bytes.NewReader([]byte(`{}`)))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid booking id")
	})

	t.Run("MissingPaymentIDs", func(t *testing.T) {
		router := authedRouter(http.MethodPost, "/bookings/:booking_id/confirm", bc.ConfirmBooking)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost,
			"/bookings/0198a3c2-71f7-7000-8000-000000000002/confirm", bytes.NewReader([]byte(`{}`)))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Payment and transaction ids are required")
	})
}

func TestDeleteBookingAllowsConfirmed(t *testing.T) {
	origFetch := fetchBooking
	origRemove := removeBooking
	t.Cleanup(func() {
		fetchBooking = origFetch
		removeBooking = origRemove
	})

	confirmed := &booking_models.Booking{
		ID:     uuid.New(),
		UserID: uuid.Max,
		BusID:  uuid.New(),
		Seats: []booking_models.Seat{
			{SeatNumber: 6, Passenger: booking_models.Passenger{Name: "Hodan Ali", Age: 30, Gender: "female"}},
		},
		Status:        shared_models.BookingStatusConfirmed,
		PaymentStatus: shared_models.PaymentStatusCompleted,
	}
	fetchBooking = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) (*booking_models.Booking, error) {
		return confirmed, nil
	}
	removed := 0
	removeBooking = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) error {
		removed++
		return nil
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	bc := &BookingController{Service: NewBookingService(nil, rdb)}
	router := authedRouter(http.MethodDelete, "/bookings/:booking_id", bc.DeleteBooking)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/bookings/"+confirmed.ID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "confirmed bookings are deletable, seats released by the model")
	assert.Equal(t, 1, removed)
}

func TestUpdatePaymentStatusRejectsUnknownStatus(t *testing.T) {
	bc := &BookingController{Service: NewBookingService(nil, nil)}
	router := authedRouter(http.MethodPut, "/bookings/:booking_id/payment", bc.UpdatePaymentStatus)

	body := []byte(`{"payment_status": "refunded", "payment_id": "PAY-1"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/bookings/0198a3c2-71f7-7000-8000-000000000002/payment", bytes.NewReader(body))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid payment data")
}
