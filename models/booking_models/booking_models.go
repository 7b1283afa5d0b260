package booking_models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

// Passenger holds per-seat passenger details.
type Passenger struct {
	Name   string `json:"name" binding:"required"`
	Age    int    `json:"age" binding:"required"`
	Gender string `json:"gender" binding:"required,oneof=male female other"`
}

// Seat is one seat assignment on a booking.
type Seat struct {
	SeatNumber int       `json:"seat_number" binding:"required"`
	Passenger  Passenger `json:"passenger" binding:"required"`
}

// Booking represents one passenger's reservation against one bus.
type Booking struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	BusID              uuid.UUID  `json:"bus_id"`
	Seats              []Seat     `json:"seats"`
	TotalAmount        float64    `json:"total_amount"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentID          *string    `json:"payment_id,omitempty"`
	PaymentMethod      *string    `json:"payment_method,omitempty"`
	TransactionID      *string    `json:"transaction_id,omitempty"`
	PaymentError       *string    `json:"payment_error,omitempty"`
	BookingNumber      *string    `json:"booking_number,omitempty"`
	BookingDate        time.Time  `json:"booking_date"`
	JourneyDate        time.Time  `json:"journey_date"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CancellationDate   *time.Time `json:"cancellation_date,omitempty"`
	RefundAmount       *float64   `json:"refund_amount,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SeatNumbers returns the seat numbers on the booking.
func (b *Booking) SeatNumbers() []int {
	nums := make([]int, 0, len(b.Seats))
	for _, s := range b.Seats {
		nums = append(nums, s.SeatNumber)
	}
	return nums
}

// IsPending reports whether the booking is still a temporary, unpaid hold.
func (b *Booking) IsPending() bool {
	return b.Status == shared_models.BookingStatusPending &&
		b.PaymentStatus == shared_models.PaymentStatusPending
}

// CalculateRefund applies the 75% refund policy for cancellations made more
// than a day before departure.
func CalculateRefund(totalAmount float64) float64 {
	return math.Round(totalAmount * 0.75)
}

// CancellationCutoff is how close to departure a booking may still be cancelled.
const CancellationCutoff = 24 * time.Hour

// CanCancelAt reports whether a journey departing at journeyDate may still be
// cancelled at the given instant.
func CanCancelAt(journeyDate, now time.Time) bool {
	return journeyDate.Sub(now) >= CancellationCutoff
}

// NewTemporaryBooking creates a pending booking struct holding a 15 minute
// claim; no seats are committed to the bus until confirmation. The journey
// date is always the bus's departure time, never caller input.
func NewTemporaryBooking(userID uuid.UUID, bus *bus_models.Bus, seats []Seat) (*Booking, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for booking: %w", err)
	}
	now := time.Now()
	expires := now.Add(shared_models.TemporaryBookingTTL)
	return &Booking{
		ID:            id,
		UserID:        userID,
		BusID:         bus.ID,
		Seats:         seats,
		TotalAmount:   float64(len(seats)) * bus.Fare,
		Status:        shared_models.BookingStatusPending,
		PaymentStatus: shared_models.PaymentStatusPending,
		BookingDate:   now,
		JourneyDate:   bus.DepartureTime,
		ExpiresAt:     &expires,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NewDirectBooking builds a booking for the direct create-and-pay path: no
// expiry window, seats are committed at creation and the payment method is
// recorded up front.
func NewDirectBooking(userID uuid.UUID, bus *bus_models.Bus, seats []Seat, paymentMethod string) (*Booking, error) {
	b, err := NewTemporaryBooking(userID, bus, seats)
	if err != nil {
		return nil, err
	}
	b.ExpiresAt = nil
	b.PaymentMethod = &paymentMethod
	return b, nil
}

const bookingColumns = `id, user_id, bus_id, total_amount, status, payment_status, payment_id,
		payment_method, transaction_id, payment_error, booking_number, booking_date, journey_date,
		cancellation_reason, cancellation_date, refund_amount, expires_at, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	b := &Booking{}
	err := row.Scan(&b.ID, &b.UserID, &b.BusID, &b.TotalAmount, &b.Status, &b.PaymentStatus,
		&b.PaymentID, &b.PaymentMethod, &b.TransactionID, &b.PaymentError, &b.BookingNumber,
		&b.BookingDate, &b.JourneyDate, &b.CancellationReason, &b.CancellationDate,
		&b.RefundAmount, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching booking: %w", err)
	}
	return b, nil
}

func loadSeats(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, bookingID uuid.UUID) ([]Seat, error) {
	rows, err := q.Query(ctx,
		`SELECT seat_number, passenger_name, passenger_age, passenger_gender
		 FROM booking_seats WHERE booking_id = $1 ORDER BY seat_number`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking seats: %w", err)
	}
	defer rows.Close()

	var seats []Seat
	for rows.Next() {
		var s Seat
		if err := rows.Scan(&s.SeatNumber, &s.Passenger.Name, &s.Passenger.Age, &s.Passenger.Gender); err != nil {
			return nil, fmt.Errorf("failed to scan booking seat: %w", err)
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func insertBooking(ctx context.Context, tx pgx.Tx, b *Booking) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, user_id, bus_id, total_amount, status, payment_status, payment_id,
			payment_method, transaction_id, payment_error, booking_number, booking_date, journey_date,
			cancellation_reason, cancellation_date, refund_amount, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		b.ID, b.UserID, b.BusID, b.TotalAmount, b.Status, b.PaymentStatus, b.PaymentID,
		b.PaymentMethod, b.TransactionID, b.PaymentError, b.BookingNumber, b.BookingDate,
		b.JourneyDate, b.CancellationReason, b.CancellationDate, b.RefundAmount, b.ExpiresAt,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	for _, s := range b.Seats {
		_, err := tx.Exec(ctx,
			`INSERT INTO booking_seats (booking_id, seat_number, passenger_name, passenger_age, passenger_gender)
			 VALUES ($1, $2, $3, $4, $5)`,
			b.ID, s.SeatNumber, s.Passenger.Name, s.Passenger.Age, s.Passenger.Gender)
		if err != nil {
			return fmt.Errorf("failed to insert booking seat %d: %w", s.SeatNumber, err)
		}
	}
	return nil
}

// CreateTemporaryBooking validates availability and stores a pending booking.
// Seats are NOT committed to the bus; the claim is only the booking row plus
// the caller's Redis holds.
func CreateTemporaryBooking(ctx context.Context, db *pgxpool.Pool, booking *Booking) (*Booking, error) {
	bus, err := bus_models.GetBusByID(ctx, db, booking.BusID)
	if err != nil {
		return nil, err
	}

	taken, err := bus_models.TakenSeats(ctx, db, booking.BusID, booking.SeatNumbers())
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &utils.SeatConflictError{SeatNumbers: taken}
	}
	if bus.AvailableSeats < len(booking.Seats) {
		return nil, utils.ErrInsufficientCapacity
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	logger.InfoLogger.Infof("Temporary booking %s created for bus %s (%d seats)", booking.ID, booking.BusID, len(booking.Seats))
	return booking, nil
}

// CreateBooking stores a booking and commits its seats to the bus in one
// transaction. Used by the direct create-and-pay path; the booking stays
// pending until its payment status is updated.
func CreateBooking(ctx context.Context, db *pgxpool.Pool, booking *Booking) (*Booking, error) {
	if _, err := bus_models.GetBusByID(ctx, db, booking.BusID); err != nil {
		return nil, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertBooking(ctx, tx, booking); err != nil {
		return nil, err
	}
	err = bus_models.ReserveSeats(ctx, tx, booking.BusID, booking.SeatNumbers(), booking.UserID, booking.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s created for bus %s (%d seats committed)", booking.ID, booking.BusID, len(booking.Seats))
	return booking, nil
}

// GetBookingByID fetches a booking and its seats.
func GetBookingByID(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID) (*Booking, error) {
	b, err := scanBooking(db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, bookingID))
	if err != nil {
		return nil, err
	}
	b.Seats, err = loadSeats(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ConfirmBooking promotes a pending booking after successful payment. Seat
// availability is re-validated inside the transaction; on conflict the pending
// booking is deleted and the conflict is returned.
func ConfirmBooking(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID, paymentID, transactionID string) (*Booking, error) {
	booking, err := GetBookingByID(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsPending() {
		return nil, utils.ErrInvalidState
	}
	if !shared_models.CanTransition(booking.Status, shared_models.BookingStatusConfirmed) {
		return nil, utils.ErrInvalidState
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = bus_models.ReserveSeats(ctx, tx, booking.BusID, booking.SeatNumbers(), booking.UserID, booking.ID)
	if err != nil {
		if sc, ok := utils.IsSeatConflict(err); ok {
			// Seats were taken while this booking was pending; discard it.
			if dErr := deleteBookingRows(ctx, db, bookingID); dErr != nil {
				logger.ErrorLogger.Errorf("Failed to delete conflicted booking %s: %v", bookingID, dErr)
			}
			return nil, sc
		}
		return nil, err
	}

	number, err := shared_models.GenerateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, payment_status = $3, payment_id = $4, transaction_id = $5,
			booking_number = $6, expires_at = NULL, updated_at = $7
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, shared_models.BookingStatusConfirmed, shared_models.PaymentStatusCompleted,
		paymentID, transactionID, number, now))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	b.Seats = booking.Seats
	logger.InfoLogger.Infof("Booking %s confirmed as %s", bookingID, number)
	return b, nil
}

// CancelBooking cancels a confirmed booking, releases its seats and records
// the 75% refund. Ownership is checked by the caller.
func CancelBooking(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID, reason string, now time.Time) (*Booking, error) {
	booking, err := GetBookingByID(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}
	if !shared_models.CanTransition(booking.Status, shared_models.BookingStatusCancelled) {
		return nil, utils.ErrInvalidState
	}
	if !CanCancelAt(booking.JourneyDate, now) {
		return nil, utils.ErrTooLateToCancel
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := bus_models.ReleaseSeats(ctx, tx, booking.BusID, booking.ID); err != nil {
		return nil, err
	}

	refund := CalculateRefund(booking.TotalAmount)
	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, cancellation_reason = $3, cancellation_date = $4, refund_amount = $5, updated_at = $4
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, shared_models.BookingStatusCancelled, reason, now, refund))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	b.Seats = booking.Seats
	logger.InfoLogger.Infof("Booking %s cancelled, refund %.2f", bookingID, refund)
	return b, nil
}

// DeleteBooking removes a booking and releases any seats it had committed.
// Used for payment rejection and explicit deletion.
func DeleteBooking(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID) error {
	booking, err := GetBookingByID(ctx, db, bookingID)
	if err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := bus_models.ReleaseSeats(ctx, tx, booking.BusID, booking.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM booking_seats WHERE booking_id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete booking seats: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID); err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit deletion: %w", err)
	}

	logger.InfoLogger.Infof("Booking %s deleted", bookingID)
	return nil
}

func deleteBookingRows(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID) error {
	if _, err := db.Exec(ctx, `DELETE FROM booking_seats WHERE booking_id = $1`, bookingID); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	return err
}

// UpdatePaymentStatus records payment information; a completed payment
// promotes the booking to confirmed and assigns its booking number.
// Temporary bookings (expires_at set) never had seats committed, so they
// must go through ConfirmBooking instead of being promoted here.
func UpdatePaymentStatus(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID, paymentStatus, paymentID string) (*Booking, error) {
	booking, err := GetBookingByID(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}

	status := booking.Status
	number := booking.BookingNumber
	if paymentStatus == shared_models.PaymentStatusCompleted &&
		booking.ExpiresAt == nil &&
		shared_models.CanTransition(booking.Status, shared_models.BookingStatusConfirmed) {
		status = shared_models.BookingStatusConfirmed
		if number == nil {
			n, err := shared_models.GenerateBookingNumber()
			if err != nil {
				return nil, err
			}
			number = &n
		}
	}

	b, err := scanBooking(db.QueryRow(ctx, `
		UPDATE bookings
		SET payment_status = $2, payment_id = $3, status = $4, booking_number = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, paymentStatus, paymentID, status, number, time.Now()))
	if err != nil {
		return nil, err
	}
	b.Seats = booking.Seats
	return b, nil
}

// MarkPaymentFailed stores the provider's failure message on the booking.
func MarkPaymentFailed(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID, providerMsg string) error {
	_, err := db.Exec(ctx, `
		UPDATE bookings SET payment_status = $2, payment_error = $3, updated_at = $4 WHERE id = $1`,
		bookingID, shared_models.PaymentStatusFailed, providerMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	return nil
}

// GetUserBookings lists a user's confirmed, paid bookings, newest first.
func GetUserBookings(ctx context.Context, db *pgxpool.Pool, userID uuid.UUID) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND status = $2 AND payment_status = $3
		ORDER BY booking_date DESC`
	rows, err := db.Query(ctx, query, userID, shared_models.BookingStatusConfirmed, shared_models.PaymentStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(ctx, db, rows)
}

// ListFilter parameterizes the admin booking listing; a single query method
// replaces the duplicated listing paths of older revisions.
type ListFilter struct {
	Status      string
	Date        *time.Time // journey-date calendar day
	SortBy      string     // created_at | journey_date | total_amount
	SortDesc    bool
	OnlySettled bool // exclude pending bookings and pending payments
}

// ListBookings returns bookings matching the filter.
func ListBookings(ctx context.Context, db *pgxpool.Pool, f ListFilter) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []any{}
	n := 0

	if f.OnlySettled {
		n++
		query += fmt.Sprintf(" AND status <> $%d", n)
		args = append(args, shared_models.BookingStatusPending)
		n++
		query += fmt.Sprintf(" AND payment_status <> $%d", n)
		args = append(args, shared_models.PaymentStatusPending)
	}
	if f.Status != "" && f.Status != "all" {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, f.Status)
	}
	if f.Date != nil {
		start, end := bus_models.DayWindowUTC(*f.Date)
		n++
		query += fmt.Sprintf(" AND journey_date >= $%d", n)
		args = append(args, start)
		n++
		query += fmt.Sprintf(" AND journey_date < $%d", n)
		args = append(args, end)
	}

	sortCol := "created_at"
	switch f.SortBy {
	case "journey_date", "total_amount", "created_at":
		sortCol = f.SortBy
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortCol, dir)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(ctx, db, rows)
}

func collectBookings(ctx context.Context, db *pgxpool.Pool, rows pgx.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		seats, err := loadSeats(ctx, db, bookings[i].ID)
		if err != nil {
			return nil, err
		}
		bookings[i].Seats = seats
	}
	return bookings, nil
}

// UpdateBookingStatus sets a booking's status directly (admin override).
// Forcing a booking to cancelled releases any seats it had committed so
// cancelled bookings never keep inventory.
func UpdateBookingStatus(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID, status string) (*Booking, error) {
	booking, err := GetBookingByID(ctx, db, bookingID)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if status == shared_models.BookingStatusCancelled && booking.Status != shared_models.BookingStatusCancelled {
		if err := bus_models.ReleaseSeats(ctx, tx, booking.BusID, booking.ID); err != nil {
			return nil, err
		}
	}

	b, err := scanBooking(tx.QueryRow(ctx, `
		UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, status, time.Now()))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	b.Seats = booking.Seats
	return b, nil
}

// FindExpired returns pending bookings whose claim has lapsed.
func FindExpired(ctx context.Context, db *pgxpool.Pool, now time.Time) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND payment_status = $2 AND expires_at IS NOT NULL AND expires_at < $3`
	rows, err := db.Query(ctx, query, shared_models.BookingStatusPending, shared_models.PaymentStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(ctx, db, rows)
}

// StatusStat is one per-status aggregate row.
type StatusStat struct {
	Status      string  `json:"status"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// GetBookingStats groups bookings by status.
func GetBookingStats(ctx context.Context, db *pgxpool.Pool) ([]StatusStat, error) {
	rows, err := db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking stats: %w", err)
	}
	defer rows.Close()

	var out []StatusStat
	for rows.Next() {
		var s StatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan booking stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PeriodStat is bookings/revenue grouped by day or month.
type PeriodStat struct {
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	Day                int     `json:"day,omitempty"`
	Bookings           int     `json:"bookings"`
	Revenue            float64 `json:"revenue"`
	AverageTicketPrice float64 `json:"average_ticket_price,omitempty"`
}

// GetBookingAnalytics groups bookings and revenue by calendar day, optionally
// restricted to a created_at range.
func GetBookingAnalytics(ctx context.Context, db *pgxpool.Pool, startDate, endDate *time.Time) ([]PeriodStat, error) {
	query := `
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int,
			EXTRACT(DAY FROM created_at)::int, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM bookings`
	args := []any{}
	if startDate != nil && endDate != nil {
		query += ` WHERE created_at >= $1 AND created_at <= $2`
		args = append(args, *startDate, *endDate)
	}
	query += ` GROUP BY 1, 2, 3 ORDER BY 1, 2, 3`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking analytics: %w", err)
	}
	defer rows.Close()

	var out []PeriodStat
	for rows.Next() {
		var s PeriodStat
		if err := rows.Scan(&s.Year, &s.Month, &s.Day, &s.Bookings, &s.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan booking analytics: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRevenueAnalytics groups confirmed revenue by month.
func GetRevenueAnalytics(ctx context.Context, db *pgxpool.Pool) ([]PeriodStat, error) {
	rows, err := db.Query(ctx, `
		SELECT EXTRACT(YEAR FROM created_at)::int, EXTRACT(MONTH FROM created_at)::int,
			COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(AVG(total_amount), 0)
		FROM bookings
		WHERE status = $1
		GROUP BY 1, 2 ORDER BY 1, 2`, shared_models.BookingStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch revenue analytics: %w", err)
	}
	defer rows.Close()

	var out []PeriodStat
	for rows.Next() {
		var s PeriodStat
		if err := rows.Scan(&s.Year, &s.Month, &s.Bookings, &s.Revenue, &s.AverageTicketPrice); err != nil {
			return nil, fmt.Errorf("failed to scan revenue analytics: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountBookings returns the total number of bookings.
func CountBookings(ctx context.Context, db *pgxpool.Pool) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// ConfirmedRevenue sums the total amount across confirmed bookings.
func ConfirmedRevenue(ctx context.Context, db *pgxpool.Pool) (float64, error) {
	var total float64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM bookings WHERE status = $1`,
		shared_models.BookingStatusConfirmed).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

// RecentBookings returns the newest bookings for the admin dashboard.
func RecentBookings(ctx context.Context, db *pgxpool.Pool, limit int) ([]Booking, error) {
	rows, err := db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(ctx, db, rows)
}
