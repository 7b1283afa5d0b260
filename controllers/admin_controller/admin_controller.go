package admin_controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/models/user_models"
	"github.com/mantay/busbooking/utils"
)

// AdminController exposes the back-office dashboard, listings and analytics.
type AdminController struct {
	DB *pgxpool.Pool
}

func NewAdminController(db *pgxpool.Pool) *AdminController {
	return &AdminController{DB: db}
}

// Model call behind the status override, substitutable in tests.
var overrideBookingStatus = booking_models.UpdateBookingStatus

// GetDashboard aggregates the headline numbers for the admin landing page.
func (ac *AdminController) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	totalBuses, err := bus_models.CountBuses(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Dashboard bus count failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	totalBookings, err := booking_models.CountBookings(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Dashboard booking count failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	totalCustomers, err := user_models.CountCustomers(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Dashboard customer count failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	revenue, err := booking_models.ConfirmedRevenue(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Dashboard revenue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}
	recent, err := booking_models.RecentBookings(ctx, ac.DB, 10)
	if err != nil {
		logger.ErrorLogger.Errorf("Dashboard recent bookings failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_buses":     totalBuses,
		"total_bookings":  totalBookings,
		"total_customers": totalCustomers,
		"total_revenue":   revenue,
		"recent_bookings": recent,
	})
}

// ListBookings is the consolidated admin booking listing: one parameterized
// query serves the status, date and sort filters.
func (ac *AdminController) ListBookings(c *gin.Context) {
	filter := booking_models.ListFilter{
		Status:      c.Query("status"),
		SortBy:      c.DefaultQuery("sort_by", "created_at"),
		SortDesc:    c.DefaultQuery("order", "desc") == "desc",
		OnlySettled: c.Query("include_pending") != "true",
	}
	if d := c.Query("date"); d != "" {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		filter.Date = &date
	}
	switch filter.Status {
	case "", "all", shared_models.BookingStatusPending, shared_models.BookingStatusConfirmed, shared_models.BookingStatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	bookings, err := booking_models.ListBookings(c.Request.Context(), ac.DB, filter)
	if err != nil {
		logger.ErrorLogger.Errorf("Admin booking listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bookings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed cancelled"`
}

// UpdateBookingStatus is an admin override on a booking's status.
func (ac *AdminController) UpdateBookingStatus(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}
	var req UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": err.Error()})
		return
	}

	booking, err := overrideBookingStatus(c.Request.Context(), ac.DB, bookingID, req.Status)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to update booking %s status: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update booking"})
		return
	}

	logger.InfoLogger.Infof("Admin set booking %s status to %s", bookingID, req.Status)
	c.JSON(http.StatusOK, booking)
}

// GetBookingStats returns the per-status booking aggregates.
func (ac *AdminController) GetBookingStats(c *gin.Context) {
	stats, err := booking_models.GetBookingStats(c.Request.Context(), ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Booking stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetBookingAnalytics returns daily booking and revenue aggregates,
// optionally bounded by start_date/end_date query params.
func (ac *AdminController) GetBookingAnalytics(c *gin.Context) {
	var start, end *time.Time
	if s := c.Query("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
			return
		}
		start = &t
	}
	if e := c.Query("end_date"); e != "" {
		t, err := time.Parse("2006-01-02", e)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date, expected YYYY-MM-DD"})
			return
		}
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		end = &endOfDay
	}
	if (start == nil) != (end == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date and end_date must be provided together"})
		return
	}

	analytics, err := booking_models.GetBookingAnalytics(c.Request.Context(), ac.DB, start, end)
	if err != nil {
		logger.ErrorLogger.Errorf("Booking analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

// GetRevenueAnalytics returns monthly confirmed revenue aggregates.
func (ac *AdminController) GetRevenueAnalytics(c *gin.Context) {
	analytics, err := booking_models.GetRevenueAnalytics(c.Request.Context(), ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Revenue analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

// GetBusAnalytics returns occupancy by bus type and the most booked routes.
func (ac *AdminController) GetBusAnalytics(c *gin.Context) {
	ctx := c.Request.Context()

	occupancy, err := bus_models.GetBusAnalytics(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Bus analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}
	routes, err := bus_models.GetPopularRoutes(ctx, ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("Popular routes failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"occupancy": occupancy, "popular_routes": routes})
}

// GetUserAnalytics returns monthly signup aggregates.
func (ac *AdminController) GetUserAnalytics(c *gin.Context) {
	analytics, err := user_models.GetUserAnalytics(c.Request.Context(), ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("User analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

// ListUsers returns all accounts.
func (ac *AdminController) ListUsers(c *gin.Context) {
	users, err := user_models.GetAllUsers(c.Request.Context(), ac.DB)
	if err != nil {
		logger.ErrorLogger.Errorf("User listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=customer admin"`
}

// UpdateUserRole promotes or demotes an account.
func (ac *AdminController) UpdateUserRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	var req UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role", "details": err.Error()})
		return
	}

	user, err := user_models.UpdateUserRole(c.Request.Context(), ac.DB, userID, req.Role)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to update role for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	logger.InfoLogger.Infof("Admin set user %s role to %s", userID, req.Role)
	c.JSON(http.StatusOK, user)
}

type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active disabled"`
}

// UpdateUserStatus enables or disables an account.
func (ac *AdminController) UpdateUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status", "details": err.Error()})
		return
	}

	user, err := user_models.UpdateUserStatus(c.Request.Context(), ac.DB, userID, req.Status)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to update status for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	logger.InfoLogger.Infof("Admin set user %s status to %s", userID, req.Status)
	c.JSON(http.StatusOK, user)
}
