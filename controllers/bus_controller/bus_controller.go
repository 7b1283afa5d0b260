package bus_controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/utils"
)

// BusController exposes route search and admin fleet management.
type BusController struct {
	DB *pgxpool.Pool
}

func NewBusController(db *pgxpool.Pool) *BusController {
	return &BusController{DB: db}
}

type SearchRequest struct {
	From       string `form:"from" binding:"required"`
	To         string `form:"to" binding:"required"`
	Date       string `form:"date" binding:"required"` // YYYY-MM-DD
	Passengers int    `form:"passengers"`
}

// SearchBuses lists active buses on a route for a calendar day with enough
// free seats for the party.
func (bc *BusController) SearchBuses(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search parameters", "details": err.Error()})
		return
	}
	if req.Passengers <= 0 {
		req.Passengers = 1
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		return
	}

	buses, err := bus_models.SearchBuses(c.Request.Context(), bc.DB, req.From, req.To, date, req.Passengers)
	if err != nil {
		logger.ErrorLogger.Errorf("Bus search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"buses": buses, "count": len(buses)})
}

// GetPopularRoutes lists the five most scheduled active routes with their
// starting fares.
func (bc *BusController) GetPopularRoutes(c *gin.Context) {
	routes, err := bus_models.GetPopularRoutes(c.Request.Context(), bc.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch popular routes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch popular routes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

// GetBus returns one bus with its committed seats, for the seat map.
func (bc *BusController) GetBus(c *gin.Context) {
	busID, err := uuid.Parse(c.Param("bus_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus id"})
		return
	}

	bus, err := bus_models.GetBusByID(c.Request.Context(), bc.DB, busID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch bus %s: %v", busID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bus"})
		return
	}

	c.JSON(http.StatusOK, bus)
}

type BusRequest struct {
	BusName       string   `json:"bus_name" binding:"required"`
	BusNumber     string   `json:"bus_number" binding:"required"`
	From          string   `json:"from" binding:"required"`
	To            string   `json:"to" binding:"required"`
	DepartureTime string   `json:"departure_time" binding:"required"` // RFC 3339
	ArrivalTime   string   `json:"arrival_time" binding:"required"`
	Fare          float64  `json:"fare" binding:"required"`
	TotalSeats    int      `json:"total_seats" binding:"required"`
	SeatLayout    string   `json:"seat_layout" binding:"omitempty,oneof=2x2 2x3"`
	Amenities     []string `json:"amenities"`
	BusType       string   `json:"bus_type"`
}

func (r *BusRequest) times() (time.Time, time.Time, error) {
	dep, err := time.Parse(time.RFC3339, r.DepartureTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	arr, err := time.Parse(time.RFC3339, r.ArrivalTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return dep, arr, nil
}

// CreateBus adds a bus to the fleet (admin).
func (bc *BusController) CreateBus(c *gin.Context) {
	var req BusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus data", "details": err.Error()})
		return
	}

	dep, arr, err := req.times()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departure or arrival time, expected RFC 3339"})
		return
	}
	if !arr.After(dep) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Arrival time must be after departure time"})
		return
	}

	bus, err := bus_models.NewBus(req.BusName, req.BusNumber, req.From, req.To, dep, arr,
		req.Fare, req.TotalSeats, req.SeatLayout, req.BusType, req.Amenities)
	if err != nil {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
			return
		}
		logger.ErrorLogger.Errorf("Failed to build bus: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bus"})
		return
	}

	created, err := bus_models.CreateBus(c.Request.Context(), bc.DB, bus)
	if err != nil {
		if errors.Is(err, utils.ErrDuplicateKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "A bus with this number already exists"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to create bus: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bus"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

type BusUpdateRequest struct {
	BusName       *string   `json:"bus_name"`
	BusNumber     *string   `json:"bus_number"`
	From          *string   `json:"from"`
	To            *string   `json:"to"`
	DepartureTime *string   `json:"departure_time"`
	ArrivalTime   *string   `json:"arrival_time"`
	Fare          *float64  `json:"fare"`
	TotalSeats    *int      `json:"total_seats"`
	SeatLayout    *string   `json:"seat_layout"`
	Amenities     *[]string `json:"amenities"`
	BusType       *string   `json:"bus_type"`
	Status        *string   `json:"status"`
}

// UpdateBus edits a bus (admin). Fields omitted from the request keep their
// current values; growing total_seats grows available_seats by the same
// amount.
func (bc *BusController) UpdateBus(c *gin.Context) {
	busID, err := uuid.Parse(c.Param("bus_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus id"})
		return
	}

	var req BusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus data", "details": err.Error()})
		return
	}

	bus, err := bus_models.GetBusByID(c.Request.Context(), bc.DB, busID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch bus %s: %v", busID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bus"})
		return
	}

	if req.BusName != nil {
		bus.BusName = *req.BusName
	}
	if req.BusNumber != nil {
		bus.BusNumber = *req.BusNumber
	}
	if req.From != nil {
		bus.From = *req.From
	}
	if req.To != nil {
		bus.To = *req.To
	}
	if req.DepartureTime != nil {
		dep, err := time.Parse(time.RFC3339, *req.DepartureTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departure time, expected RFC 3339"})
			return
		}
		bus.DepartureTime = dep
	}
	if req.ArrivalTime != nil {
		arr, err := time.Parse(time.RFC3339, *req.ArrivalTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid arrival time, expected RFC 3339"})
			return
		}
		bus.ArrivalTime = arr
	}
	if !bus.ArrivalTime.After(bus.DepartureTime) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Arrival time must be after departure time"})
		return
	}
	if req.Fare != nil {
		if *req.Fare < 0.01 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Fare must be at least 0.01"})
			return
		}
		bus.Fare = *req.Fare
	}
	if req.TotalSeats != nil {
		booked := bus.TotalSeats - bus.AvailableSeats
		if *req.TotalSeats < booked {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Total seats cannot drop below the number of booked seats"})
			return
		}
		bus.TotalSeats = *req.TotalSeats
		bus.AvailableSeats = *req.TotalSeats - booked
	}
	if req.SeatLayout != nil {
		if *req.SeatLayout != "2x2" && *req.SeatLayout != "2x3" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Seat layout must be 2x2 or 2x3"})
			return
		}
		bus.SeatLayout = *req.SeatLayout
	}
	if req.Amenities != nil {
		bus.Amenities = *req.Amenities
	}
	if req.BusType != nil {
		bus.Type = *req.BusType
	}
	if req.Status != nil {
		switch *req.Status {
		case shared_models.BusStatusActive, shared_models.BusStatusCancelled, shared_models.BusStatusCompleted:
			bus.Status = *req.Status
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be Active, Cancelled or Completed"})
			return
		}
	}

	updated, err := bus_models.UpdateBus(c.Request.Context(), bc.DB, bus)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
		case errors.Is(err, utils.ErrDuplicateKey):
			c.JSON(http.StatusConflict, gin.H{"error": "A bus with this number already exists"})
		default:
			logger.ErrorLogger.Errorf("Failed to update bus %s: %v", busID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bus"})
		}
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteBus removes a bus from the fleet (admin).
func (bc *BusController) DeleteBus(c *gin.Context) {
	busID, err := uuid.Parse(c.Param("bus_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bus id"})
		return
	}

	if err := bus_models.DeleteBus(c.Request.Context(), bc.DB, busID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bus not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to delete bus %s: %v", busID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete bus"})
		return
	}

	logger.InfoLogger.Infof("Bus %s deleted", busID)
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}
