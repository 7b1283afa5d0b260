package payment_transaction_models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantay/busbooking/logger"
	"github.com/mantay/busbooking/utils"
)

// PaymentTransaction is one attempt against the payment gateway, kept as an
// audit trail independent of the booking row.
type PaymentTransaction struct {
	ID                 uuid.UUID `json:"id"`
	BookingID          uuid.UUID `json:"booking_id"`
	RequestID          string    `json:"request_id"`
	WaafiTransactionID *string   `json:"waafi_transaction_id,omitempty"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	PaymentMethod      string    `json:"payment_method"`
	Status             string    `json:"status"`
	ResponseCode       *string   `json:"response_code,omitempty"`
	ResponseMsg        *string   `json:"response_msg,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewPaymentTransaction builds a pending transaction record for a purchase
// request about to be sent to the gateway.
func NewPaymentTransaction(bookingID uuid.UUID, requestID string, amount float64, currency, paymentMethod string) (*PaymentTransaction, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate UUID for payment transaction: %w", err)
	}
	now := time.Now()
	return &PaymentTransaction{
		ID:            id,
		BookingID:     bookingID,
		RequestID:     requestID,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: paymentMethod,
		Status:        "pending",
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

const txnColumns = `id, booking_id, request_id, waafi_transaction_id, amount, currency,
		payment_method, status, response_code, response_msg, created_at, updated_at`

func scanTxn(row pgx.Row) (*PaymentTransaction, error) {
	t := &PaymentTransaction{}
	err := row.Scan(&t.ID, &t.BookingID, &t.RequestID, &t.WaafiTransactionID, &t.Amount,
		&t.Currency, &t.PaymentMethod, &t.Status, &t.ResponseCode, &t.ResponseMsg,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching payment transaction: %w", err)
	}
	return t, nil
}

// CreatePaymentTransaction inserts the pending record.
func CreatePaymentTransaction(ctx context.Context, db *pgxpool.Pool, t *PaymentTransaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO payment_transactions (id, booking_id, request_id, waafi_transaction_id, amount,
			currency, payment_method, status, response_code, response_msg, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.BookingID, t.RequestID, t.WaafiTransactionID, t.Amount, t.Currency,
		t.PaymentMethod, t.Status, t.ResponseCode, t.ResponseMsg, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	logger.InfoLogger.Infof("Payment transaction %s created for booking %s", t.RequestID, t.BookingID)
	return nil
}

// RecordGatewayResponse stores the gateway's verdict on the transaction.
func RecordGatewayResponse(ctx context.Context, db *pgxpool.Pool, requestID, status string, waafiTxnID, responseCode, responseMsg *string) error {
	tag, err := db.Exec(ctx, `
		UPDATE payment_transactions
		SET status = $2, waafi_transaction_id = $3, response_code = $4, response_msg = $5, updated_at = $6
		WHERE request_id = $1`,
		requestID, status, waafiTxnID, responseCode, responseMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update payment transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// GetTransactionsByBooking lists a booking's payment attempts, newest first.
func GetTransactionsByBooking(ctx context.Context, db *pgxpool.Pool, bookingID uuid.UUID) ([]PaymentTransaction, error) {
	rows, err := db.Query(ctx,
		`SELECT `+txnColumns+` FROM payment_transactions WHERE booking_id = $1 ORDER BY created_at DESC`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment transactions: %w", err)
	}
	defer rows.Close()

	var out []PaymentTransaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTransactionByRequestID looks up a transaction by the gateway request id.
func GetTransactionByRequestID(ctx context.Context, db *pgxpool.Pool, requestID string) (*PaymentTransaction, error) {
	return scanTxn(db.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM payment_transactions WHERE request_id = $1`, requestID))
}
