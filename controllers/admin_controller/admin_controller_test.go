package admin_controller

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/shared_models"
)

func statusRouter(ac *AdminController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PUT("/admin/bookings/:booking_id/status", ac.UpdateBookingStatus)
	return router
}

func TestUpdateBookingStatusForcesCancellation(t *testing.T) {
	orig := overrideBookingStatus
	t.Cleanup(func() { overrideBookingStatus = orig })

	var gotStatus string
	overrideBookingStatus = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID, status string) (*booking_models.Booking, error) {
		gotStatus = status
		return &booking_models.Booking{ID: id, Status: status}, nil
	}

	ac := &AdminController{}
	router := statusRouter(ac)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/admin/bookings/0198a3c2-71f7-7000-8000-000000000009/status",
		bytes.NewReader([]byte(`{"status": "cancelled"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, shared_models.BookingStatusCancelled, gotStatus,
		"cancellation goes through the model so committed seats are released")
}

func TestUpdateBookingStatusRejectsUnknown(t *testing.T) {
	ac := &AdminController{}
	router := statusRouter(ac)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut,
		"/admin/bookings/0198a3c2-71f7-7000-8000-000000000009/status",
		bytes.NewReader([]byte(`{"status": "refunded"}`)))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid status")
}
