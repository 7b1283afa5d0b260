package bus_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

// Bus represents one scheduled trip.
type Bus struct {
	ID             uuid.UUID    `json:"id"`
	BusName        string       `json:"bus_name"`
	BusNumber      string       `json:"bus_number"`
	From           string       `json:"from"`
	To             string       `json:"to"`
	DepartureTime  time.Time    `json:"departure_time"`
	ArrivalTime    time.Time    `json:"arrival_time"`
	Fare           float64      `json:"fare"`
	TotalSeats     int          `json:"total_seats"`
	AvailableSeats int          `json:"available_seats"`
	SeatLayout     string       `json:"seat_layout"` // "2x2" or "2x3"
	Amenities      []string     `json:"amenities"`
	Type           string       `json:"type"`
	Status         string       `json:"status"`
	BookedSeats    []BookedSeat `json:"booked_seats"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// BookedSeat is one committed seat on a bus.
type BookedSeat struct {
	SeatNumber int       `json:"seat_number"`
	UserID     uuid.UUID `json:"user_id"`
	BookingID  uuid.UUID `json:"booking_id"`
}

// Duration returns the trip length in whole hours.
func (b *Bus) Duration() int {
	return int(b.ArrivalTime.Sub(b.DepartureTime).Round(time.Hour).Hours())
}

// NewBus creates a Bus struct; available seats start at total seats.
func NewBus(busName, busNumber, from, to string, departure, arrival time.Time, fare float64, totalSeats int, seatLayout, busType string, amenities []string) (*Bus, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for bus: %w", err)
	}
	if fare <= 0 {
		return nil, &utils.ValidationError{Field: "fare", Msg: "must be positive"}
	}
	if totalSeats < 1 {
		return nil, &utils.ValidationError{Field: "total_seats", Msg: "must be at least 1"}
	}
	if seatLayout == "" {
		seatLayout = "2x2"
	}
	now := time.Now()
	return &Bus{
		ID:             id,
		BusName:        busName,
		BusNumber:      busNumber,
		From:           from,
		To:             to,
		DepartureTime:  departure,
		ArrivalTime:    arrival,
		Fare:           fare,
		TotalSeats:     totalSeats,
		AvailableSeats: totalSeats,
		SeatLayout:     seatLayout,
		Amenities:      amenities,
		Type:           busType,
		Status:         shared_models.BusStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// DayWindowUTC returns the UTC midnight-to-midnight window containing t.
// Search must use UTC regardless of the caller's zone so results are stable.
func DayWindowUTC(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

const busColumns = `id, bus_name, bus_number, from_city, to_city, departure_time, arrival_time,
		fare, total_seats, available_seats, seat_layout, amenities, bus_type, status, created_at, updated_at`

func scanBus(row pgx.Row) (*Bus, error) {
	b := &Bus{}
	err := row.Scan(&b.ID, &b.BusName, &b.BusNumber, &b.From, &b.To, &b.DepartureTime, &b.ArrivalTime,
		&b.Fare, &b.TotalSeats, &b.AvailableSeats, &b.SeatLayout, &b.Amenities, &b.Type, &b.Status,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching bus: %w", err)
	}
	return b, nil
}

// SearchBuses returns active buses on the route departing within the UTC
// calendar day of date with enough available seats, ordered by departure.
func SearchBuses(ctx context.Context, db *pgxpool.Pool, from, to string, date time.Time, passengers int) ([]Bus, error) {
	if passengers < 1 {
		passengers = 1
	}
	start, end := DayWindowUTC(date)

	query := `
		SELECT ` + busColumns + `
		FROM buses
		WHERE from_city = $1 AND to_city = $2 AND status = $3
		  AND departure_time >= $4 AND departure_time < $5
		  AND available_seats >= $6
		ORDER BY departure_time`

	rows, err := db.Query(ctx, query, from, to, shared_models.BusStatusActive, start, end, passengers)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to search buses %s -> %s: %v", from, to, err)
		return nil, fmt.Errorf("failed to search buses: %w", err)
	}
	defer rows.Close()

	var buses []Bus
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, *b)
	}
	return buses, rows.Err()
}

// GetBusByID fetches a bus together with its committed seats.
func GetBusByID(ctx context.Context, db *pgxpool.Pool, busID uuid.UUID) (*Bus, error) {
	bus, err := scanBus(db.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, busID))
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, `SELECT seat_number, user_id, booking_id FROM bus_seats WHERE bus_id = $1 ORDER BY seat_number`, busID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booked seats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s BookedSeat
		if err := rows.Scan(&s.SeatNumber, &s.UserID, &s.BookingID); err != nil {
			return nil, fmt.Errorf("failed to scan booked seat: %w", err)
		}
		bus.BookedSeats = append(bus.BookedSeats, s)
	}
	return bus, rows.Err()
}

// CreateBus inserts a new bus record.
func CreateBus(ctx context.Context, db *pgxpool.Pool, bus *Bus) (*Bus, error) {
	query := `
		INSERT INTO buses (id, bus_name, bus_number, from_city, to_city, departure_time, arrival_time,
			fare, total_seats, available_seats, seat_layout, amenities, bus_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	var insertedID uuid.UUID
	err := db.QueryRow(ctx, query,
		bus.ID, bus.BusName, bus.BusNumber, bus.From, bus.To, bus.DepartureTime, bus.ArrivalTime,
		bus.Fare, bus.TotalSeats, bus.AvailableSeats, bus.SeatLayout, bus.Amenities, bus.Type,
		bus.Status, bus.CreatedAt, bus.UpdatedAt,
	).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, utils.ErrDuplicateKey
		}
		logger.ErrorLogger.Errorf("Failed to insert bus %s: %v", bus.BusNumber, err)
		return nil, fmt.Errorf("failed to create bus: %w", err)
	}

	bus.ID = insertedID
	logger.InfoLogger.Infof("Bus %s (%s) created", bus.ID, bus.BusNumber)
	return bus, nil
}

// UpdateBus applies a full update to a bus record.
func UpdateBus(ctx context.Context, db *pgxpool.Pool, bus *Bus) (*Bus, error) {
	query := `
		UPDATE buses
		SET bus_name = $2, bus_number = $3, from_city = $4, to_city = $5, departure_time = $6,
			arrival_time = $7, fare = $8, total_seats = $9, available_seats = $10, seat_layout = $11,
			amenities = $12, bus_type = $13, status = $14, updated_at = $15
		WHERE id = $1
		RETURNING ` + busColumns

	updated, err := scanBus(db.QueryRow(ctx, query,
		bus.ID, bus.BusName, bus.BusNumber, bus.From, bus.To, bus.DepartureTime, bus.ArrivalTime,
		bus.Fare, bus.TotalSeats, bus.AvailableSeats, bus.SeatLayout, bus.Amenities, bus.Type,
		bus.Status, time.Now()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, utils.ErrDuplicateKey
		}
		return nil, err
	}
	return updated, nil
}

// DeleteBus removes a bus record.
func DeleteBus(ctx context.Context, db *pgxpool.Pool, busID uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM buses WHERE id = $1`, busID)
	if err != nil {
		return fmt.Errorf("failed to delete bus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNotFound
	}
	logger.InfoLogger.Infof("Bus %s deleted", busID)
	return nil
}

// ReserveSeats commits seats to a bus in one atomic step: a conditional
// decrement of available_seats guards capacity, and the unique constraint on
// (bus_id, seat_number) guards per-seat contention. Runs inside the caller's
// transaction.
func ReserveSeats(ctx context.Context, tx pgx.Tx, busID uuid.UUID, seatNumbers []int, userID, bookingID uuid.UUID) error {
	if len(seatNumbers) == 0 {
		return &utils.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	}

	// Report every conflicting seat up front; the unique constraint below still
	// backstops the race between this check and the inserts.
	conflicts, err := takenSeats(ctx, tx, busID, seatNumbers)
	if err != nil {
		return fmt.Errorf("failed to check seats: %w", err)
	}
	if len(conflicts) > 0 {
		return &utils.SeatConflictError{SeatNumbers: conflicts}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE buses SET available_seats = available_seats - $2, updated_at = $3
		 WHERE id = $1 AND available_seats >= $2`,
		busID, len(seatNumbers), time.Now())
	if err != nil {
		return fmt.Errorf("failed to decrement available seats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the bus is gone or capacity ran out; distinguish for the caller.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buses WHERE id = $1)`, busID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check bus existence: %w", err)
		}
		if !exists {
			return utils.ErrNotFound
		}
		return utils.ErrInsufficientCapacity
	}

	for _, n := range seatNumbers {
		_, err := tx.Exec(ctx,
			`INSERT INTO bus_seats (bus_id, seat_number, user_id, booking_id) VALUES ($1, $2, $3, $4)`,
			busID, n, userID, bookingID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return &utils.SeatConflictError{SeatNumbers: []int{n}}
			}
			return fmt.Errorf("failed to insert seat %d: %w", n, err)
		}
	}
	return nil
}

// ReleaseSeats removes a booking's committed seats and restores capacity by
// the number of rows actually deleted, which makes repeated calls a no-op.
func ReleaseSeats(ctx context.Context, tx pgx.Tx, busID, bookingID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM bus_seats WHERE bus_id = $1 AND booking_id = $2`, busID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete booked seats: %w", err)
	}
	released := tag.RowsAffected()
	if released == 0 {
		return nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE buses SET available_seats = available_seats + $2, updated_at = $3 WHERE id = $1`,
		busID, released, time.Now())
	if err != nil {
		return fmt.Errorf("failed to restore available seats: %w", err)
	}
	logger.InfoLogger.Infof("Released %d seats on bus %s for booking %s", released, busID, bookingID)
	return nil
}

// TakenSeats returns which of the requested seat numbers are already committed
// on the bus.
func TakenSeats(ctx context.Context, db *pgxpool.Pool, busID uuid.UUID, seatNumbers []int) ([]int, error) {
	rows, err := db.Query(ctx,
		`SELECT seat_number FROM bus_seats WHERE bus_id = $1 AND seat_number = ANY($2) ORDER BY seat_number`,
		busID, seatNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to check seats: %w", err)
	}
	defer rows.Close()
	return collectSeatNumbers(rows)
}

func takenSeats(ctx context.Context, tx pgx.Tx, busID uuid.UUID, seatNumbers []int) ([]int, error) {
	rows, err := tx.Query(ctx,
		`SELECT seat_number FROM bus_seats WHERE bus_id = $1 AND seat_number = ANY($2) ORDER BY seat_number`,
		busID, seatNumbers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSeatNumbers(rows)
}

func collectSeatNumbers(rows pgx.Rows) ([]int, error) {
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RouteStat is one popular-route aggregate row.
type RouteStat struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Count   int     `json:"count"`
	MinFare float64 `json:"min_fare"`
}

// GetPopularRoutes returns the five most-served active routes.
func GetPopularRoutes(ctx context.Context, db *pgxpool.Pool) ([]RouteStat, error) {
	query := `
		SELECT from_city, to_city, COUNT(*), MIN(fare)
		FROM buses
		WHERE status = $1
		GROUP BY from_city, to_city
		ORDER BY COUNT(*) DESC
		LIMIT 5`
	rows, err := db.Query(ctx, query, shared_models.BusStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch popular routes: %w", err)
	}
	defer rows.Close()

	var out []RouteStat
	for rows.Next() {
		var r RouteStat
		if err := rows.Scan(&r.From, &r.To, &r.Count, &r.MinFare); err != nil {
			return nil, fmt.Errorf("failed to scan route stat: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OccupancyStat is occupancy grouped by bus type for the admin dashboard.
type OccupancyStat struct {
	Type             string  `json:"type"`
	TotalBuses       int     `json:"total_buses"`
	AverageOccupancy float64 `json:"average_occupancy"`
}

// GetBusAnalytics returns average seats sold per bus type.
func GetBusAnalytics(ctx context.Context, db *pgxpool.Pool) ([]OccupancyStat, error) {
	query := `
		SELECT bus_type, COUNT(*), COALESCE(AVG(total_seats - available_seats), 0)
		FROM buses
		GROUP BY bus_type`
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bus analytics: %w", err)
	}
	defer rows.Close()

	var out []OccupancyStat
	for rows.Next() {
		var s OccupancyStat
		if err := rows.Scan(&s.Type, &s.TotalBuses, &s.AverageOccupancy); err != nil {
			return nil, fmt.Errorf("failed to scan occupancy stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountBuses returns the number of buses.
func CountBuses(ctx context.Context, db *pgxpool.Pool) (int, error) {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM buses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count buses: %w", err)
	}
	return n, nil
}
