package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantay/busbooking/utils"
)

func newTestClient(baseURL string) *WaafiClient {
	c := NewWaafiClient("M123", "api-user", "api-key", "hook-secret", baseURL)
	return c
}

func TestPurchaseSendsEnvelope(t *testing.T) {
	var got waafiEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(WaafiResponse{
			ResponseCode: WaafiCodeSuccess,
			ResponseMsg:  "RCS_SUCCESS",
			Params:       &WaafiResponseParams{TransactionID: "TX-1", State: "APPROVED"},
		})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Purchase(context.Background(), &WaafiPurchaseRequest{
		RequestID:   "abcd1234abcd1234",
		AccountNo:   "252612345678",
		ReferenceID: "booking-1",
		InvoiceID:   "INV-booking-1",
		Amount:      37.5,
		Currency:    "USD",
		Description: "Bus ticket payment",
	})
	require.NoError(t, err)

	assert.Equal(t, "1.0", got.SchemaVersion)
	assert.Equal(t, "WEB", got.ChannelName)
	assert.Equal(t, "API_PURCHASE", got.ServiceName)
	assert.Equal(t, "abcd1234abcd1234", got.RequestID)
	assert.NotEmpty(t, got.Timestamp)

	assert.Equal(t, "M123", got.ServiceParams.MerchantUID)
	assert.Equal(t, "api-user", got.ServiceParams.APIUserID)
	assert.Equal(t, "api-key", got.ServiceParams.APIKey)
	assert.Equal(t, "MWALLET_ACCOUNT", got.ServiceParams.PaymentMethod)
	assert.Equal(t, "252612345678", got.ServiceParams.PayerInfo.AccountNo)
	assert.Equal(t, "booking-1", got.ServiceParams.TransactionInfo.ReferenceID)
	assert.Equal(t, "INV-booking-1", got.ServiceParams.TransactionInfo.InvoiceID)
	assert.Equal(t, 37.5, got.ServiceParams.TransactionInfo.Amount)
	assert.Equal(t, "USD", got.ServiceParams.TransactionInfo.Currency)

	assert.True(t, resp.Approved())
	assert.False(t, resp.UserRejected())
	assert.Equal(t, "TX-1", resp.Params.TransactionID)
}

func TestPurchaseUserRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(WaafiResponse{
			ResponseCode: WaafiCodeUserRejected,
			ResponseMsg:  "Payment cancelled by user",
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Purchase(context.Background(), &WaafiPurchaseRequest{
		RequestID: "r1", AccountNo: "252611111111", ReferenceID: "b1", InvoiceID: "INV-b1",
		Amount: 10, Currency: "USD",
	})
	require.NoError(t, err)
	assert.False(t, resp.Approved())
	assert.True(t, resp.UserRejected())
}

func TestPurchaseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(WaafiResponse{ResponseMsg: "internal error"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Purchase(context.Background(), &WaafiPurchaseRequest{
		RequestID: "r2", AccountNo: "252611111111", ReferenceID: "b2", InvoiceID: "INV-b2",
		Amount: 10, Currency: "USD",
	})
	var gwErr *utils.PaymentGatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Error(), "500")
}

func TestPurchaseNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Purchase(context.Background(), &WaafiPurchaseRequest{
		RequestID: "r3", AccountNo: "252611111111", ReferenceID: "b3", InvoiceID: "INV-b3",
		Amount: 10, Currency: "USD",
	})
	var gwErr *utils.PaymentGatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, gwErr.Error(), "unreachable")
}

func TestGenerateRequestID(t *testing.T) {
	a, err := GenerateRequestID()
	require.NoError(t, err)
	b, err := GenerateRequestID()
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	_, err = hex.DecodeString(a)
	assert.NoError(t, err)
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := newTestClient("http://unused")
	body := `{"requestId":"r1","responseCode":"2001"}`

	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write([]byte(body))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, client.VerifyWebhookSignature(valid, body))
	assert.False(t, client.VerifyWebhookSignature(valid, body+" "), "tampered body")
	assert.False(t, client.VerifyWebhookSignature("deadbeef", body))
	assert.False(t, client.VerifyWebhookSignature("", body))

	client.WebhookSecret = ""
	assert.False(t, client.VerifyWebhookSignature(valid, body), "no secret configured")
}
