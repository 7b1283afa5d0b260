package booking_controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mantay/busbooking/controllers/user_controller"
	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

// Redis key scheme for pending-booking seat holds.
const RedisSeatHoldPrefix = "seat_hold:"

// BookingService handles the business logic for bookings. Seat holds for
// pending bookings live in Redis; seats are only committed to the bus at
// confirmation time.
type BookingService struct {
	DB          *pgxpool.Pool
	RedisClient *redis.Client
}

// NewBookingService creates a new BookingService.
func NewBookingService(db *pgxpool.Pool, rdb *redis.Client) *BookingService {
	return &BookingService{DB: db, RedisClient: rdb}
}

func seatHoldKey(busID uuid.UUID, seatNumber int) string {
	return fmt.Sprintf("%s%s:%d", RedisSeatHoldPrefix, busID.String(), seatNumber)
}

// HoldSeats places a Redis hold on each requested seat for the pending
// booking TTL. If any seat is already held the acquired holds are released
// and a conflict error listing the held seats is returned.
func (s *BookingService) HoldSeats(ctx context.Context, busID uuid.UUID, seatNumbers []int, bookingID uuid.UUID) error {
	var acquired []int
	var conflicts []int

	for _, n := range seatNumbers {
		ok, err := s.RedisClient.SetNX(ctx, seatHoldKey(busID, n), bookingID.String(), shared_models.TemporaryBookingTTL).Result()
		if err != nil {
			s.releaseHolds(ctx, busID, acquired)
			return fmt.Errorf("failed to place seat hold: %w", err)
		}
		if !ok {
			conflicts = append(conflicts, n)
			continue
		}
		acquired = append(acquired, n)
	}

	if len(conflicts) > 0 {
		s.releaseHolds(ctx, busID, acquired)
		return &utils.SeatConflictError{SeatNumbers: conflicts}
	}
	return nil
}

// ReleaseSeatHolds drops the Redis holds for a booking's seats.
func (s *BookingService) ReleaseSeatHolds(ctx context.Context, busID uuid.UUID, seatNumbers []int) {
	s.releaseHolds(ctx, busID, seatNumbers)
}

func (s *BookingService) releaseHolds(ctx context.Context, busID uuid.UUID, seatNumbers []int) {
	for _, n := range seatNumbers {
		if err := s.RedisClient.Del(ctx, seatHoldKey(busID, n)).Err(); err != nil {
			logger.WarnLogger.Warnf("Failed to release seat hold %d on bus %s: %v", n, busID, err)
		}
	}
}

// BookingController exposes the booking lifecycle endpoints.
type BookingController struct {
	Service *BookingService
}

type CreateBookingRequest struct {
	BusID string                `json:"bus_id" binding:"required"`
	Seats []booking_models.Seat `json:"seats" binding:"required,min=1,dive"`
}

func (r *CreateBookingRequest) parse() (uuid.UUID, error) {
	busID, err := uuid.Parse(r.BusID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid bus id")
	}
	seen := map[int]bool{}
	for _, s := range r.Seats {
		if s.SeatNumber < 1 {
			return uuid.Nil, fmt.Errorf("seat numbers must be positive")
		}
		if seen[s.SeatNumber] {
			return uuid.Nil, fmt.Errorf("duplicate seat number %d", s.SeatNumber)
		}
		seen[s.SeatNumber] = true
	}
	return busID, nil
}

// Model calls the handlers depend on, substitutable in tests.
var (
	fetchBooking  = booking_models.GetBookingByID
	removeBooking = booking_models.DeleteBooking
)

// CreateTemporaryBooking places a 15 minute hold on the chosen seats and
// returns a pending booking awaiting payment.
func (bc *BookingController) CreateTemporaryBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking data", "details": err.Error()})
		return
	}
	busID, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	bus, err := bus_models.GetBusByID(ctx, bc.Service.DB, busID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch bus %s: %v", busID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}
	if bus.Status != shared_models.BusStatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "This bus is not accepting bookings"})
		return
	}

	booking, err := booking_models.NewTemporaryBooking(userID, bus, req.Seats)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to build booking: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	if err := bc.Service.HoldSeats(ctx, busID, booking.SeatNumbers(), booking.ID); err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		logger.ErrorLogger.Errorf("Failed to hold seats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	created, err := booking_models.CreateTemporaryBooking(ctx, bc.Service.DB, booking)
	if err != nil {
		bc.Service.ReleaseSeatHolds(ctx, busID, booking.SeatNumbers())
		if sc, ok := utils.IsSeatConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		if errors.Is(err, utils.ErrInsufficientCapacity) {
			c.JSON(http.StatusConflict, gin.H{"error": "Not enough seats available on this bus"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to create temporary booking: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking":    created,
		"expires_at": created.ExpiresAt,
		"message":    "Seats held for 15 minutes, complete payment to confirm",
	})
}

type DirectBookingRequest struct {
	CreateBookingRequest
	PaymentMethod string `json:"payment_method" binding:"required,oneof=evc zaad golis"`
}

// CreateBooking is the direct create-and-pay path: seats are committed to the
// bus immediately and the booking waits for a payment status update.
func (bc *BookingController) CreateBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req DirectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking data", "details": err.Error()})
		return
	}
	busID, err := req.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	bus, err := bus_models.GetBusByID(ctx, bc.Service.DB, busID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch bus %s: %v", busID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}
	if bus.Status != shared_models.BusStatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "This bus is not accepting bookings"})
		return
	}

	booking, err := booking_models.NewDirectBooking(userID, bus, req.Seats, req.PaymentMethod)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to build booking: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	// Hold the seats in Redis for the duration of the insert so a concurrent
	// temporary booking cannot claim them between our check and commit.
	if err := bc.Service.HoldSeats(ctx, busID, booking.SeatNumbers(), booking.ID); err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		logger.ErrorLogger.Errorf("Failed to hold seats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	created, err := booking_models.CreateBooking(ctx, bc.Service.DB, booking)
	bc.Service.ReleaseSeatHolds(ctx, busID, booking.SeatNumbers())
	if err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		if errors.Is(err, utils.ErrInsufficientCapacity) {
			c.JSON(http.StatusConflict, gin.H{"error": "Not enough seats available on this bus"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to create booking: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create booking"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": created})
}

// GetTemporaryBooking returns a pending booking to its owner or an admin.
func (bc *BookingController) GetTemporaryBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	booking, err := fetchBooking(c.Request.Context(), bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch booking"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}
	if !booking.IsPending() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking is no longer pending"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": booking, "expires_at": booking.ExpiresAt})
}

type ConfirmBookingRequest struct {
	PaymentID     string `json:"payment_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

// ConfirmBooking promotes the caller's pending booking after an
// out-of-band payment. Seat availability is re-validated; a conflict
// discards the booking.
func (bc *BookingController) ConfirmBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	var req ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment and transaction ids are required", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	booking, err := fetchBooking(ctx, bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm booking"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}

	confirmed, err := booking_models.ConfirmBooking(ctx, bc.Service.DB, bookingID, req.PaymentID, req.TransactionID)
	if err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			bc.Service.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		if errors.Is(err, utils.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "Only pending bookings can be confirmed"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to confirm booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm booking"})
		return
	}
	bc.Service.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())

	c.JSON(http.StatusOK, gin.H{"booking": confirmed, "booking_number": confirmed.BookingNumber})
}

type UpdatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending completed failed"`
	PaymentID     string `json:"payment_id" binding:"required"`
	TransactionID string `json:"transaction_id"`
}

// UpdatePaymentStatus records a payment result on the caller's booking. A
// completed payment confirms the booking; temporary bookings go through the
// full confirmation path so their seats get committed.
func (bc *BookingController) UpdatePaymentStatus(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	var req UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment data", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	booking, err := fetchBooking(ctx, bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment status"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}

	var updated *booking_models.Booking
	if req.PaymentStatus == shared_models.PaymentStatusCompleted && booking.IsPending() && booking.ExpiresAt != nil {
		updated, err = booking_models.ConfirmBooking(ctx, bc.Service.DB, bookingID, req.PaymentID, req.TransactionID)
		if err == nil {
			bc.Service.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
		}
	} else {
		updated, err = booking_models.UpdatePaymentStatus(ctx, bc.Service.DB, bookingID, req.PaymentStatus, req.PaymentID)
	}
	if err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			bc.Service.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
			c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
			return
		}
		if errors.Is(err, utils.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "Booking cannot accept this payment status"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to update payment status for %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": updated})
}

// GetBooking returns one booking to its owner or an admin.
func (bc *BookingController) GetBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	booking, err := fetchBooking(c.Request.Context(), bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch booking"})
		return
	}

	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}

	c.JSON(http.StatusOK, booking)
}

// GetMyBookings lists the caller's confirmed bookings.
func (bc *BookingController) GetMyBookings(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	bookings, err := booking_models.GetUserBookings(c.Request.Context(), bc.Service.DB, userID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch bookings for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking cancels the caller's confirmed booking, releasing seats and
// recording the refund. Rejected within 24 hours of departure.
func (bc *BookingController) CancelBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	var req CancelBookingRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "Cancelled by customer"
	}

	ctx := c.Request.Context()
	booking, err := fetchBooking(ctx, bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel booking"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}

	cancelled, err := booking_models.CancelBooking(ctx, bc.Service.DB, bookingID, req.Reason, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "Only confirmed bookings can be cancelled"})
		case errors.Is(err, utils.ErrTooLateToCancel):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			logger.ErrorLogger.Errorf("Failed to cancel booking %s: %v", bookingID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":       cancelled,
		"refund_amount": cancelled.RefundAmount,
		"message":       "Booking cancelled, 75% of the fare will be refunded",
	})
}

// DeleteBooking removes the caller's booking. Committed seats are released
// by the model; pending holds are dropped from Redis.
func (bc *BookingController) DeleteBooking(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	ctx := c.Request.Context()
	booking, err := fetchBooking(ctx, bc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete booking"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}
	if err := removeBooking(ctx, bc.Service.DB, bookingID); err != nil {
		logger.ErrorLogger.Errorf("Failed to delete booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete booking"})
		return
	}
	bc.Service.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())

	c.JSON(http.StatusOK, gin.H{"message": "Booking deleted"})
}
