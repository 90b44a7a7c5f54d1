package paymentgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
)

// IntentMetadata travels with the payment intent and comes back on every
// webhook event, carrying the domain ids the reconciler needs.
type IntentMetadata struct {
	InvoiceID     string `json:"invoice_id"`
	AppointmentID string `json:"appointment_id"`
	ClientID      string `json:"client_id"`
	ProviderID    string `json:"provider_id"`
}

type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type Refund struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type Config struct {
	BaseURL        string
	APIKey         string
	WebhookSecret  string
	RequestTimeout time.Duration
}

// Client talks to the card-payment gateway's REST API. All calls are
// synchronous; callers decide what to compensate when one fails.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata IntentMetadata) (*PaymentIntent, error) {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"metadata": metadata,
	}

	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", payload, &intent); err != nil {
		return nil, err
	}

	c.logger.Info("payment intent created",
		"intent_id", intent.ID,
		"amount", amount,
		"currency", currency)

	return &intent, nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	var intent PaymentIntent
	path := "/v1/payment_intents/" + url.PathEscape(intentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, intentID string) error {
	path := "/v1/payment_intents/" + url.PathEscape(intentID) + "/cancel"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) CreateRefund(ctx context.Context, intentID string, amount int64, reason string) (*Refund, error) {
	payload := map[string]interface{}{
		"payment_intent": intentID,
		"amount":         amount,
	}
	if reason != "" {
		payload["reason"] = reason
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", payload, &refund); err != nil {
		return nil, err
	}

	c.logger.Info("refund created", "refund_id", refund.ID, "intent_id", intentID, "amount", amount)
	return &refund, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return internal.NewInternalError("marshal gateway request", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return internal.NewInternalError("build gateway request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gateway request failed", "method", method, "path", path, "error", err)
		return internal.NewExternalError("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("gateway returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody))
		return internal.NewExternalError(
			fmt.Sprintf("payment gateway returned status %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return internal.NewExternalError("decode gateway response", err)
	}
	return nil
}
