package payment_controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/clients"
	"github.com/mantay/busbooking/controllers/booking_controller"
	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/shared_models"
)

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id
}

// stubWaafiClient lets tests choose the signature verdict without a gateway.
type stubWaafiClient struct {
	verify bool
	resp   *clients.WaafiResponse
}

func (s *stubWaafiClient) Purchase(ctx context.Context, req *clients.WaafiPurchaseRequest) (*clients.WaafiResponse, error) {
	return s.resp, nil
}

func (s *stubWaafiClient) VerifyWebhookSignature(signature, rawBody string) bool {
	return s.verify
}

func webhookRouter(verify bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pc := &PaymentController{Service: &PaymentService{WaafiClient: &stubWaafiClient{verify: verify}}}
	r := gin.New()
	r.POST("/api/payments/webhook", pc.HandleWaafiWebhook)
	return r
}

func postWebhook(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/payments/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sig")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	w := postWebhook(webhookRouter(false), `{"requestId":"r1","referenceId":"b1","responseCode":"2001"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid signature")
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	w := postWebhook(webhookRouter(true), `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsMissingIdentifiers(t *testing.T) {
	w := postWebhook(webhookRouter(true), `{"responseCode":"2001"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "requestId")
}

// gatewayCalls counts which model operations a webhook delivery triggered.
type gatewayCalls struct {
	confirmed int
	removed   int
	applied   int
	failed    int
	failedMsg string
	recorded  []string
	notified  int
}

func stubModelCalls(t *testing.T, booking *booking_models.Booking, calls *gatewayCalls) {
	t.Helper()
	origFetch := fetchBooking
	origConfirm := confirmBooking
	origRemove := removeBooking
	origApply := applyPayment
	origFail := failPayment
	origRecord := recordGateway
	t.Cleanup(func() {
		fetchBooking = origFetch
		confirmBooking = origConfirm
		removeBooking = origRemove
		applyPayment = origApply
		failPayment = origFail
		recordGateway = origRecord
	})

	fetchBooking = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) (*booking_models.Booking, error) {
		return booking, nil
	}
	confirmBooking = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID, paymentID, transactionID string) (*booking_models.Booking, error) {
		calls.confirmed++
		out := *booking
		out.Status = shared_models.BookingStatusConfirmed
		out.PaymentStatus = shared_models.PaymentStatusCompleted
		number := "BK00112233aabbccdd"
		out.BookingNumber = &number
		return &out, nil
	}
	removeBooking = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID) error {
		calls.removed++
		return nil
	}
	applyPayment = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID, status, paymentID string) (*booking_models.Booking, error) {
		calls.applied++
		return booking, nil
	}
	failPayment = func(ctx context.Context, db *pgxpool.Pool, id uuid.UUID, msg string) error {
		calls.failed++
		calls.failedMsg = msg
		return nil
	}
	recordGateway = func(ctx context.Context, db *pgxpool.Pool, requestID, status string, txnID, code, msg *string) error {
		calls.recorded = append(calls.recorded, status)
		return nil
	}
}

func pendingWebhookBooking(t *testing.T) *booking_models.Booking {
	t.Helper()
	expires := time.Now().Add(10 * time.Minute)
	return &booking_models.Booking{
		ID:     mustUUID(t),
		UserID: mustUUID(t),
		BusID:  mustUUID(t),
		Seats: []booking_models.Seat{
			{SeatNumber: 4, Passenger: booking_models.Passenger{Name: "Hodan Ali", Age: 30, Gender: "female"}},
		},
		TotalAmount:   10,
		Status:        shared_models.BookingStatusPending,
		PaymentStatus: shared_models.PaymentStatusPending,
		ExpiresAt:     &expires,
	}
}

func gatewayRouter(t *testing.T, calls *gatewayCalls) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := &PaymentService{
		RedisClient: rdb,
		WaafiClient: &stubWaafiClient{verify: true},
		Bookings:    booking_controller.NewBookingService(nil, rdb),
		Notify:      func(*booking_models.Booking) { calls.notified++ },
	}
	pc := &PaymentController{Service: svc}
	r := gin.New()
	r.POST("/api/payments/webhook", pc.HandleWaafiWebhook)
	return r, mr
}

func holdKey(b *booking_models.Booking) string {
	return fmt.Sprintf("%s%s:%d", booking_controller.RedisSeatHoldPrefix, b.BusID, b.Seats[0].SeatNumber)
}

func TestWebhookSuccessConfirmsBooking(t *testing.T) {
	calls := &gatewayCalls{}
	booking := pendingWebhookBooking(t)
	stubModelCalls(t, booking, calls)
	router, mr := gatewayRouter(t, calls)
	require.NoError(t, mr.Set(holdKey(booking), booking.ID.String()))

	w := postWebhook(router, fmt.Sprintf(
		`{"requestId":"wh-ok","referenceId":"%s","transactionId":"TXN1","responseCode":"2001","responseMsg":"RCS_SUCCESS"}`,
		booking.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls.confirmed)
	assert.Equal(t, 1, calls.notified)
	assert.Equal(t, []string{"completed"}, calls.recorded)
	assert.False(t, mr.Exists(holdKey(booking)), "seat hold should be released")
}

func TestWebhookUserRejectedDeletesBooking(t *testing.T) {
	calls := &gatewayCalls{}
	booking := pendingWebhookBooking(t)
	stubModelCalls(t, booking, calls)
	router, mr := gatewayRouter(t, calls)
	require.NoError(t, mr.Set(holdKey(booking), booking.ID.String()))

	w := postWebhook(router, fmt.Sprintf(
		`{"requestId":"wh-rej","referenceId":"%s","responseCode":"5310","responseMsg":"Payment Rejected"}`,
		booking.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls.removed, "rejected booking should be deleted")
	assert.Zero(t, calls.confirmed)
	assert.Zero(t, calls.failed)
	assert.Equal(t, []string{"rejected"}, calls.recorded)
	assert.False(t, mr.Exists(holdKey(booking)), "seat hold should be released")
}

func TestWebhookOtherCodeMarksPaymentFailed(t *testing.T) {
	calls := &gatewayCalls{}
	booking := pendingWebhookBooking(t)
	stubModelCalls(t, booking, calls)
	router, _ := gatewayRouter(t, calls)

	w := postWebhook(router, fmt.Sprintf(
		`{"requestId":"wh-fail","referenceId":"%s","responseCode":"5306","responseMsg":"Insufficient balance"}`,
		booking.ID))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls.failed)
	assert.Equal(t, "Insufficient balance", calls.failedMsg)
	assert.Zero(t, calls.removed)
	assert.Zero(t, calls.confirmed)
	assert.Equal(t, []string{"failed"}, calls.recorded)
}

func TestWebhookDuplicateDeliveryIgnored(t *testing.T) {
	calls := &gatewayCalls{}
	booking := pendingWebhookBooking(t)
	stubModelCalls(t, booking, calls)
	router, _ := gatewayRouter(t, calls)

	body := fmt.Sprintf(
		`{"requestId":"wh-dup","referenceId":"%s","responseCode":"2001","responseMsg":"RCS_SUCCESS"}`,
		booking.ID)

	first := postWebhook(router, body)
	second := postWebhook(router, body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "Already processed")
	assert.Equal(t, 1, calls.confirmed, "replay must not reapply")
}

func TestProcessPaymentRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc := &PaymentController{Service: &PaymentService{WaafiClient: &stubWaafiClient{}}}
	r := gin.New()
	r.POST("/api/payments/process", pc.ProcessPayment)

	req, _ := http.NewRequest("POST", "/api/payments/process",
		bytes.NewBufferString(`{"booking_id":"x","payment_method":"evc","payer_phone":"252611111111"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProcessPaymentValidatesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pc := &PaymentController{Service: &PaymentService{WaafiClient: &stubWaafiClient{}}}
	r := gin.New()
	r.POST("/api/payments/process", func(c *gin.Context) {
		c.Set("user_id", mustUUID(t))
		pc.ProcessPayment(c)
	})

	// Unsupported wallet name fails binding before anything else runs.
	req, _ := http.NewRequest("POST", "/api/payments/process",
		bytes.NewBufferString(`{"booking_id":"b","payment_method":"mpesa","payer_phone":"252611111111"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
