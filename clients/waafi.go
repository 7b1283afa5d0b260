package clients

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mantay/busbooking/utils"
)

// WaafiClientWrapper provides an interface for WaafiPay operations.
// This interface allows for easier testing by mocking gateway interactions.
type WaafiClientWrapper interface {
	Purchase(ctx context.Context, req *WaafiPurchaseRequest) (*WaafiResponse, error)
	VerifyWebhookSignature(signature, rawBody string) bool
}

// WaafiClient implements WaafiClientWrapper against the WaafiPay HPP API.
type WaafiClient struct {
	MerchantUID   string
	APIUserID     string
	APIKey        string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
}

// WaafiPurchaseRequest carries the caller-specified parts of an API_PURCHASE
// call; the client fills in the envelope and credentials.
type WaafiPurchaseRequest struct {
	RequestID   string
	AccountNo   string // payer mobile wallet number
	ReferenceID string // booking id
	InvoiceID   string // INV-<booking id>
	Amount      float64
	Currency    string
	Description string
}

type waafiPayerInfo struct {
	AccountNo string `json:"accountNo"`
}

type waafiTransactionInfo struct {
	ReferenceID string  `json:"referenceId"`
	InvoiceID   string  `json:"invoiceId"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

type waafiServiceParams struct {
	MerchantUID     string               `json:"merchantUid"`
	APIUserID       string               `json:"apiUserId"`
	APIKey          string               `json:"apiKey"`
	PaymentMethod   string               `json:"paymentMethod"`
	PayerInfo       waafiPayerInfo       `json:"payerInfo"`
	TransactionInfo waafiTransactionInfo `json:"transactionInfo"`
}

type waafiEnvelope struct {
	SchemaVersion string             `json:"schemaVersion"`
	RequestID     string             `json:"requestId"`
	Timestamp     string             `json:"timestamp"`
	ChannelName   string             `json:"channelName"`
	ServiceName   string             `json:"serviceName"`
	ServiceParams waafiServiceParams `json:"serviceParams"`
}

// WaafiResponseParams is the params block of a gateway response.
type WaafiResponseParams struct {
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	State         string `json:"state"`
	HPPURL        string `json:"hppUrl,omitempty"`
	TxAmount      string `json:"txAmount,omitempty"`
}

// WaafiResponse is the gateway's reply to a service call.
type WaafiResponse struct {
	SchemaVersion string               `json:"schemaVersion"`
	Timestamp     string               `json:"timestamp"`
	ResponseID    string               `json:"responseId"`
	ResponseCode  string               `json:"responseCode"`
	ResponseMsg   string               `json:"responseMsg"`
	ErrorCode     string               `json:"errorCode"`
	Params        *WaafiResponseParams `json:"params,omitempty"`
}

// Gateway response codes the booking flow branches on.
const (
	WaafiCodeSuccess      = "2001"
	WaafiCodeUserRejected = "5310"
)

// Approved reports whether the gateway accepted the payment.
func (r *WaafiResponse) Approved() bool {
	return r.ResponseCode == WaafiCodeSuccess
}

// UserRejected reports whether the payer declined the charge on their handset.
func (r *WaafiResponse) UserRejected() bool {
	return r.ResponseCode == WaafiCodeUserRejected
}

// NewWaafiClient creates and returns a new instance of WaafiClient.
func NewWaafiClient(merchantUID, apiUserID, apiKey, webhookSecret, baseURL string) *WaafiClient {
	if baseURL == "" {
		baseURL = "https://api.waafipay.net/asm"
	}
	return &WaafiClient{
		MerchantUID:   merchantUID,
		APIUserID:     apiUserID,
		APIKey:        apiKey,
		WebhookSecret: webhookSecret,
		BaseURL:       baseURL,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// GenerateRequestID returns a unique id for one gateway call.
func GenerateRequestID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Purchase sends an API_PURCHASE request charging the payer's mobile wallet.
func (c *WaafiClient) Purchase(ctx context.Context, purchase *WaafiPurchaseRequest) (*WaafiResponse, error) {
	envelope := waafiEnvelope{
		SchemaVersion: "1.0",
		RequestID:     purchase.RequestID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ChannelName:   "WEB",
		ServiceName:   "API_PURCHASE",
		ServiceParams: waafiServiceParams{
			MerchantUID:   c.MerchantUID,
			APIUserID:     c.APIUserID,
			APIKey:        c.APIKey,
			PaymentMethod: "MWALLET_ACCOUNT",
			PayerInfo:     waafiPayerInfo{AccountNo: purchase.AccountNo},
			TransactionInfo: waafiTransactionInfo{
				ReferenceID: purchase.ReferenceID,
				InvoiceID:   purchase.InvoiceID,
				Amount:      purchase.Amount,
				Currency:    purchase.Currency,
				Description: purchase.Description,
			},
		},
	}

	jsonData, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal purchase request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &utils.PaymentGatewayError{Msg: "payment gateway unreachable", Err: err}
	}
	defer resp.Body.Close()

	var result WaafiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &utils.PaymentGatewayError{Msg: "invalid gateway response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &utils.PaymentGatewayError{
			Msg: fmt.Sprintf("gateway error %d: %s", resp.StatusCode, result.ResponseMsg),
		}
	}
	return &result, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature of a webhook
// payload against the shared webhook secret.
func (c *WaafiClient) VerifyWebhookSignature(signature, rawBody string) bool {
	if signature == "" || rawBody == "" || c.WebhookSecret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.WebhookSecret))
	mac.Write([]byte(rawBody))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
