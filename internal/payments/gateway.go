package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gomartvn/gomart-backend/pkg/config"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
)

// Gateway is the outbound payment-provider surface the payments service
// depends on. The HTTP client below is the production implementation; tests
// substitute fakes.
type Gateway interface {
	CreateLink(ctx context.Context, req CreateLinkRequest) (*GatewayLink, error)
	GetLink(ctx context.Context, orderCode int64) (*GatewayLink, error)
	CancelLink(ctx context.Context, orderCode int64, reason string) (*GatewayLink, error)
	VerifyWebhook(payload WebhookPayload) bool
}

// CreateLinkRequest carries the fields the gateway signs and displays on the
// hosted checkout page.
type CreateLinkRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	BuyerName   string `json:"buyerName,omitempty"`
	BuyerEmail  string `json:"buyerEmail,omitempty"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	ExpiredAt   int64  `json:"expiredAt,omitempty"`
	Signature   string `json:"signature"`
}

// GatewayLink is the provider's view of a payment intent.
type GatewayLink struct {
	PaymentLinkID string `json:"paymentLinkId"`
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
}

// WebhookPayload is the inbound confirmation envelope. Data holds the signed
// fields; Signature is the HMAC the provider computed over them.
type WebhookPayload struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WebhookData is the decoded signed portion of a webhook.
type WebhookData struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Code        string `json:"code"`
	Desc        string `json:"desc"`
	PaymentLink string `json:"paymentLinkId"`
}

const webhookSuccessCode = "00"

type gatewayEnvelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type httpGateway struct {
	cfg    config.GatewayConfig
	client *http.Client
}

// NewGateway builds the HTTP gateway client from configuration.
func NewGateway(cfg config.GatewayConfig) (Gateway, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base url required")
	}
	if cfg.ClientID == "" || cfg.APIKey == "" || cfg.ChecksumKey == "" {
		return nil, fmt.Errorf("gateway credentials required")
	}
	return &httpGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (g *httpGateway) CreateLink(ctx context.Context, req CreateLinkRequest) (*GatewayLink, error) {
	req.ReturnURL = orDefault(req.ReturnURL, g.cfg.ReturnURL)
	req.CancelURL = orDefault(req.CancelURL, g.cfg.CancelURL)
	req.Signature = Sign(g.cfg.ChecksumKey, map[string]string{
		"amount":      fmt.Sprint(req.Amount),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   fmt.Sprint(req.OrderCode),
		"returnUrl":   req.ReturnURL,
	})

	var link GatewayLink
	if err := g.do(ctx, http.MethodPost, "/v2/payment-requests", req, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (g *httpGateway) GetLink(ctx context.Context, orderCode int64) (*GatewayLink, error) {
	var link GatewayLink
	path := fmt.Sprintf("/v2/payment-requests/%d", orderCode)
	if err := g.do(ctx, http.MethodGet, path, nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (g *httpGateway) CancelLink(ctx context.Context, orderCode int64, reason string) (*GatewayLink, error) {
	var link GatewayLink
	path := fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode)
	body := map[string]string{"cancellationReason": reason}
	if err := g.do(ctx, http.MethodPost, path, body, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// VerifyWebhook recomputes the HMAC over the webhook's signed fields and
// compares it in constant time.
func (g *httpGateway) VerifyWebhook(payload WebhookPayload) bool {
	if payload.Signature == "" || len(payload.Data) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(payload.Data, &fields); err != nil {
		return false
	}
	expected := Sign(g.cfg.ChecksumKey, flattenFields(fields))
	return hmac.Equal([]byte(expected), []byte(payload.Signature))
}

func (g *httpGateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(g.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", g.cfg.ClientID)
	req.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "gateway request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}

	var envelope gatewayEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	if envelope.Code != webhookSuccessCode {
		return pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("gateway error %s: %s", envelope.Code, envelope.Desc))
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway data")
		}
	}
	return nil
}

// Sign computes the HMAC-SHA256 hex digest over the fields concatenated as
// key=value pairs joined by & in ascending key order.
func Sign(checksumKey string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+fields[key])
	}

	mac := hmac.New(sha256.New, []byte(checksumKey))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func flattenFields(fields map[string]any) map[string]string {
	flat := make(map[string]string, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
			flat[key] = ""
		case string:
			flat[key] = v
		case float64:
			flat[key] = formatNumber(v)
		case bool:
			flat[key] = fmt.Sprint(v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				flat[key] = fmt.Sprint(v)
				continue
			}
			flat[key] = string(encoded)
		}
	}
	return flat
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprint(int64(v))
	}
	return fmt.Sprint(v)
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// linkExpiryUnix computes the absolute expiry for a new payment link.
func linkExpiryUnix(now time.Time, expiry time.Duration) int64 {
	if expiry <= 0 {
		return 0
	}
	return now.Add(expiry).Unix()
}
