package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomartvn/gomart-backend/pkg/config"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
)

func testGatewayConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:     baseURL,
		ClientID:    "client-1",
		APIKey:      "api-key",
		ChecksumKey: "checksum-secret",
		ReturnURL:   "https://shop.example/return",
		CancelURL:   "https://shop.example/cancel",
		Timeout:     2 * time.Second,
		LinkExpiry:  15 * time.Minute,
	}
}

func TestSignSortsKeysAndIsDeterministic(t *testing.T) {
	fields := map[string]string{
		"orderCode":   "123",
		"amount":      "250000",
		"returnUrl":   "https://shop.example/return",
		"cancelUrl":   "https://shop.example/cancel",
		"description": "Order GM-1",
	}
	first := Sign("secret", fields)
	second := Sign("secret", fields)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	// any field change must change the digest
	fields["amount"] = "250001"
	assert.NotEqual(t, first, Sign("secret", fields))
}

func TestCreateLinkSendsSignedRequest(t *testing.T) {
	var captured CreateLinkRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payment-requests", r.URL.Path)
		assert.Equal(t, "client-1", r.Header.Get("x-client-id"))
		assert.Equal(t, "api-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		fmt.Fprint(w, `{"code":"00","desc":"success","data":{"paymentLinkId":"pl_1","orderCode":123,"amount":250000,"status":"PENDING","checkoutUrl":"https://pay.example/pl_1"}}`)
	}))
	defer server.Close()

	gateway, err := NewGateway(testGatewayConfig(server.URL))
	require.NoError(t, err)

	link, err := gateway.CreateLink(context.Background(), CreateLinkRequest{
		OrderCode:   123,
		Amount:      250000,
		Description: "Order GM-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pl_1", link.PaymentLinkID)
	assert.Equal(t, "https://pay.example/pl_1", link.CheckoutURL)

	expected := Sign("checksum-secret", map[string]string{
		"amount":      "250000",
		"cancelUrl":   "https://shop.example/cancel",
		"description": "Order GM-1",
		"orderCode":   "123",
		"returnUrl":   "https://shop.example/return",
	})
	assert.Equal(t, expected, captured.Signature)
}

func TestCreateLinkGatewayErrorsSurfaceAsGatewayCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"231","desc":"duplicate order code"}`)
	}))
	defer server.Close()

	gateway, err := NewGateway(testGatewayConfig(server.URL))
	require.NoError(t, err)

	_, err = gateway.CreateLink(context.Background(), CreateLinkRequest{OrderCode: 1, Amount: 100})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeGateway, appErr.Code())
}

func TestCreateLinkTimeoutIsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := testGatewayConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond
	gateway, err := NewGateway(cfg)
	require.NoError(t, err)

	_, err = gateway.CreateLink(context.Background(), CreateLinkRequest{OrderCode: 1, Amount: 100})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeGateway, appErr.Code())
}

func TestVerifyWebhook(t *testing.T) {
	gateway, err := NewGateway(testGatewayConfig("https://gateway.example"))
	require.NoError(t, err)

	data := map[string]any{
		"orderCode": 123,
		"amount":    250000,
		"reference": "FT123",
		"code":      "00",
		"desc":      "success",
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	signature := Sign("checksum-secret", map[string]string{
		"orderCode": "123",
		"amount":    "250000",
		"reference": "FT123",
		"code":      "00",
		"desc":      "success",
	})

	assert.True(t, gateway.VerifyWebhook(WebhookPayload{Data: raw, Signature: signature}))
	assert.False(t, gateway.VerifyWebhook(WebhookPayload{Data: raw, Signature: "tampered"}))
	assert.False(t, gateway.VerifyWebhook(WebhookPayload{Data: raw}))

	// tampering with the payload invalidates the original signature
	data["amount"] = 1
	tampered, err := json.Marshal(data)
	require.NoError(t, err)
	assert.False(t, gateway.VerifyWebhook(WebhookPayload{Data: tampered, Signature: signature}))
}
