package payment_controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mantay/busbooking/clients"
	"github.com/mantay/busbooking/controllers/booking_controller"
	"github.com/mantay/busbooking/controllers/user_controller"
	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/models/booking_models"
	"github.com/mantay/busbooking/models/bus_models"
	"github.com/mantay/busbooking/models/payment_transaction_models"
	"github.com/mantay/busbooking/models/shared_models"
	"github.com/mantay/busbooking/models/user_models"
	"github.com/mantay/busbooking/utils"
	"github.com/mantay/busbooking/utils/mail"
)

// Webhook idempotency keys live in Redis under this prefix.
const (
	RedisWebhookPrefix = "waafi_webhook:"
	WebhookKeyExpiry   = 24 * time.Hour
)

// PaymentService drives the WaafiPay purchase flow for bookings.
type PaymentService struct {
	DB          *pgxpool.Pool
	RedisClient *redis.Client
	WaafiClient clients.WaafiClientWrapper
	Bookings    *booking_controller.BookingService

	// Notify runs after a booking is confirmed; defaults to the email sender.
	Notify func(*booking_models.Booking)
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(db *pgxpool.Pool, rdb *redis.Client, waafi clients.WaafiClientWrapper, bookings *booking_controller.BookingService) *PaymentService {
	return &PaymentService{DB: db, RedisClient: rdb, WaafiClient: waafi, Bookings: bookings}
}

// Model calls the handlers depend on, substitutable in tests.
var (
	fetchBooking   = booking_models.GetBookingByID
	confirmBooking = booking_models.ConfirmBooking
	removeBooking  = booking_models.DeleteBooking
	applyPayment   = booking_models.UpdatePaymentStatus
	failPayment    = booking_models.MarkPaymentFailed
	recordGateway  = payment_transaction_models.RecordGatewayResponse
)

// PaymentController exposes the payment endpoints.
type PaymentController struct {
	Service *PaymentService
}

type ProcessPaymentRequest struct {
	BookingID     string `json:"booking_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=evc zaad golis"`
	PayerPhone    string `json:"payer_phone" binding:"required"`
}

// ProcessPayment charges the payer's mobile wallet for a pending booking and
// confirms it on approval.
func (pc *PaymentController) ProcessPayment(c *gin.Context) {
	userID, err := user_controller.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment data", "details": err.Error()})
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking id"})
		return
	}

	ctx := c.Request.Context()
	booking, err := fetchBooking(ctx, pc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment failed"})
		return
	}
	if booking.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}
	if !booking.IsPending() {
		c.JSON(http.StatusConflict, gin.H{"error": "This booking is not awaiting payment"})
		return
	}
	if booking.ExpiresAt != nil && booking.ExpiresAt.Before(time.Now()) {
		c.JSON(http.StatusConflict, gin.H{"error": "This booking hold has expired, please book again"})
		return
	}

	requestID, err := clients.GenerateRequestID()
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to generate request id: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment failed"})
		return
	}

	txn, err := payment_transaction_models.NewPaymentTransaction(bookingID, requestID, booking.TotalAmount, "USD", req.PaymentMethod)
	if err == nil {
		err = payment_transaction_models.CreatePaymentTransaction(ctx, pc.Service.DB, txn)
	}
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to record payment transaction: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment failed"})
		return
	}

	resp, err := pc.Service.WaafiClient.Purchase(ctx, &clients.WaafiPurchaseRequest{
		RequestID:   requestID,
		AccountNo:   req.PayerPhone,
		ReferenceID: bookingID.String(),
		InvoiceID:   fmt.Sprintf("INV-%s", bookingID),
		Amount:      booking.TotalAmount,
		Currency:    "USD",
		Description: fmt.Sprintf("Bus ticket payment for booking %s", bookingID),
	})
	if err != nil {
		logger.ErrorLogger.Errorf("Waafi purchase failed for booking %s: %v", bookingID, err)
		_ = recordGateway(ctx, pc.Service.DB, requestID, "failed", nil, nil, nil)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unreachable, please try again"})
		return
	}

	var waafiTxnID *string
	if resp.Params != nil && resp.Params.TransactionID != "" {
		waafiTxnID = &resp.Params.TransactionID
	}

	switch {
	case resp.Approved():
		if err := recordGateway(ctx, pc.Service.DB, requestID, "completed", waafiTxnID, &resp.ResponseCode, &resp.ResponseMsg); err != nil {
			logger.ErrorLogger.Errorf("Failed to record gateway response for %s: %v", requestID, err)
		}

		transactionID := ""
		if waafiTxnID != nil {
			transactionID = *waafiTxnID
		}
		confirmed, err := confirmBooking(ctx, pc.Service.DB, bookingID, requestID, transactionID)
		if err != nil {
			if sc, ok := utils.IsSeatConflict(err); ok {
				pc.Service.Bookings.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
				c.JSON(http.StatusConflict, gin.H{"error": sc.Error(), "conflicting_seats": sc.SeatNumbers})
				return
			}
			logger.ErrorLogger.Errorf("Payment approved but confirmation failed for booking %s: %v", bookingID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment received but confirmation failed, contact support"})
			return
		}
		pc.Service.Bookings.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())

		pc.notifyConfirmed(confirmed)

		result := gin.H{
			"success":    true,
			"payment_id": transactionID,
			"booking":    confirmed,
		}
		if resp.Params != nil && resp.Params.HPPURL != "" {
			result["hosted_pay_page_url"] = resp.Params.HPPURL
		}
		c.JSON(http.StatusOK, result)

	case resp.UserRejected():
		if err := recordGateway(ctx, pc.Service.DB, requestID, "rejected", waafiTxnID, &resp.ResponseCode, &resp.ResponseMsg); err != nil {
			logger.ErrorLogger.Errorf("Failed to record gateway response for %s: %v", requestID, err)
		}
		// Payer declined on their handset: discard the hold entirely.
		if err := removeBooking(ctx, pc.Service.DB, bookingID); err != nil {
			logger.ErrorLogger.Errorf("Failed to delete rejected booking %s: %v", bookingID, err)
		}
		pc.Service.Bookings.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
		c.JSON(http.StatusPaymentRequired, gin.H{"success": false, "error": "Payment was cancelled by the user"})

	default:
		if err := recordGateway(ctx, pc.Service.DB, requestID, "failed", waafiTxnID, &resp.ResponseCode, &resp.ResponseMsg); err != nil {
			logger.ErrorLogger.Errorf("Failed to record gateway response for %s: %v", requestID, err)
		}
		if err := failPayment(ctx, pc.Service.DB, bookingID, resp.ResponseMsg); err != nil {
			logger.ErrorLogger.Errorf("Failed to mark payment failed for booking %s: %v", bookingID, err)
		}
		c.JSON(http.StatusPaymentRequired, gin.H{"success": false, "error": resp.ResponseMsg})
	}
}

func (pc *PaymentController) notifyConfirmed(booking *booking_models.Booking) {
	if pc.Service.Notify != nil {
		pc.Service.Notify(booking)
		return
	}
	go pc.sendConfirmationEmail(booking)
}

func (pc *PaymentController) sendConfirmationEmail(booking *booking_models.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := user_models.GetUserByID(ctx, pc.Service.DB, booking.UserID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch user %s for confirmation email: %v", booking.UserID, err)
		return
	}
	bus, err := bus_models.GetBusByID(ctx, pc.Service.DB, booking.BusID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch bus %s for confirmation email: %v", booking.BusID, err)
		return
	}

	number := ""
	if booking.BookingNumber != nil {
		number = *booking.BookingNumber
	}
	data := mail.BookingConfirmationData{
		Name:          user.Name,
		BookingNumber: number,
		BusName:       bus.BusName,
		From:          bus.From,
		To:            bus.To,
		JourneyDate:   booking.JourneyDate.Format("2006-01-02"),
		DepartureTime: bus.DepartureTime.Format("15:04"),
		SeatNumbers:   booking.SeatNumbers(),
		TotalAmount:   fmt.Sprintf("%.2f", booking.TotalAmount),
	}
	if err := mail.SendBookingConfirmation(user.Email, data); err != nil {
		logger.ErrorLogger.Errorf("Failed to send confirmation email for booking %s: %v", booking.ID, err)
	}
}

// WaafiWebhookPayload is the asynchronous notification from the gateway.
type WaafiWebhookPayload struct {
	RequestID     string `json:"requestId"`
	ReferenceID   string `json:"referenceId"`
	TransactionID string `json:"transactionId"`
	ResponseCode  string `json:"responseCode"`
	ResponseMsg   string `json:"responseMsg"`
	State         string `json:"state"`
}

// HandleWaafiWebhook processes gateway notifications. The signature is
// verified against the raw body and each notification is applied at most
// once.
func (pc *PaymentController) HandleWaafiWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if !pc.Service.WaafiClient.VerifyWebhookSignature(signature, string(rawBody)) {
		logger.WarnLogger.Warn("Rejected webhook with bad signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var payload WaafiWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	if payload.RequestID == "" || payload.ReferenceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing requestId or referenceId"})
		return
	}

	ctx := c.Request.Context()

	// Idempotency: the first delivery wins, replays are acknowledged as-is.
	idemKey := RedisWebhookPrefix + payload.RequestID
	fresh, err := pc.Service.RedisClient.SetNX(ctx, idemKey, payload.ResponseCode, WebhookKeyExpiry).Result()
	if err != nil {
		logger.ErrorLogger.Errorf("Webhook idempotency check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Temporary failure, retry"})
		return
	}
	if !fresh {
		logger.InfoLogger.Infof("Duplicate webhook %s ignored", payload.RequestID)
		c.JSON(http.StatusOK, gin.H{"message": "Already processed"})
		return
	}

	bookingID, err := uuid.Parse(payload.ReferenceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid referenceId"})
		return
	}

	booking, err := fetchBooking(ctx, pc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			logger.WarnLogger.Warnf("Webhook %s references unknown booking %s", payload.RequestID, bookingID)
			c.JSON(http.StatusOK, gin.H{"message": "Booking not found, ignored"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s for webhook: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Temporary failure, retry"})
		return
	}

	var waafiTxnID *string
	if payload.TransactionID != "" {
		waafiTxnID = &payload.TransactionID
	}

	if payload.ResponseCode == clients.WaafiCodeSuccess {
		if err := recordGateway(ctx, pc.Service.DB, payload.RequestID, "completed", waafiTxnID, &payload.ResponseCode, &payload.ResponseMsg); err != nil && !errors.Is(err, utils.ErrNotFound) {
			logger.ErrorLogger.Errorf("Failed to record webhook response for %s: %v", payload.RequestID, err)
		}
		if booking.IsPending() {
			confirmed, err := confirmBooking(ctx, pc.Service.DB, bookingID, payload.RequestID, payload.TransactionID)
			if err != nil {
				logger.ErrorLogger.Errorf("Webhook confirmation failed for booking %s: %v", bookingID, err)
				c.JSON(http.StatusOK, gin.H{"message": "Payment recorded, confirmation failed"})
				return
			}
			pc.Service.Bookings.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
			pc.notifyConfirmed(confirmed)
		} else if booking.PaymentStatus != shared_models.PaymentStatusCompleted {
			if _, err := applyPayment(ctx, pc.Service.DB, bookingID, shared_models.PaymentStatusCompleted, payload.RequestID); err != nil {
				logger.ErrorLogger.Errorf("Webhook payment update failed for booking %s: %v", bookingID, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "Processed"})
		return
	}

	if payload.ResponseCode == clients.WaafiCodeUserRejected {
		if err := recordGateway(ctx, pc.Service.DB, payload.RequestID, "rejected", waafiTxnID, &payload.ResponseCode, &payload.ResponseMsg); err != nil && !errors.Is(err, utils.ErrNotFound) {
			logger.ErrorLogger.Errorf("Failed to record webhook response for %s: %v", payload.RequestID, err)
		}
		// Payer declined on their handset: discard the booking and free its seats.
		if err := removeBooking(ctx, pc.Service.DB, bookingID); err != nil {
			logger.ErrorLogger.Errorf("Failed to delete rejected booking %s: %v", bookingID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Temporary failure, retry"})
			return
		}
		pc.Service.Bookings.ReleaseSeatHolds(ctx, booking.BusID, booking.SeatNumbers())
		c.JSON(http.StatusOK, gin.H{"message": "Processed"})
		return
	}

	if err := recordGateway(ctx, pc.Service.DB, payload.RequestID, "failed", waafiTxnID, &payload.ResponseCode, &payload.ResponseMsg); err != nil && !errors.Is(err, utils.ErrNotFound) {
		logger.ErrorLogger.Errorf("Failed to record webhook response for %s: %v", payload.RequestID, err)
	}
	if booking.IsPending() {
		if err := failPayment(ctx, pc.Service.DB, bookingID, payload.ResponseMsg); err != nil {
			logger.ErrorLogger.Errorf("Failed to mark payment failed for booking %s: %v", bookingID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Processed"})
}

// GetBookingTransactions lists a booking's payment attempts to its owner or
// an admin.
func (pc *PaymentController) GetBookingTransactions(c *gin.Context) {
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
	booking, err := fetchBooking(ctx, pc.Service.DB, bookingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
			return
		}
		logger.ErrorLogger.Errorf("Failed to fetch booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}
	if booking.UserID != userID && !user_controller.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this booking"})
		return
	}

	txns, err := payment_transaction_models.GetTransactionsByBooking(ctx, pc.Service.DB, bookingID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to fetch transactions for booking %s: %v", bookingID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}
