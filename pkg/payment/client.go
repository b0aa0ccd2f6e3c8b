package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the payment processor's REST API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewClient initializes a processor client. Per-call deadlines come from
// the caller's context; the http.Client timeout is only a backstop.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type CaptureRequest struct {
	AmountMinor        int64
	Currency           string
	PaymentMethodToken string
	IdempotencyKey     string
	Description        string
}

// CaptureResponse is the processor's answer. A declined capture is a
// response with Success false, not an error.
type CaptureResponse struct {
	Success     bool
	ReferenceID string
	Reason      string
}

type captureBody struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	Capture       bool   `json:"capture"`
	Description   string `json:"description,omitempty"`
}

type chargeResult struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
	ClientSecret  string `json:"client_secret"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AuthorizeAndCapture charges the payment method in one step. Errors are
// returned only for transport failures and unexpected responses.
func (c *Client) AuthorizeAndCapture(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	body := captureBody{
		Amount:        req.AmountMinor,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethodToken,
		Capture:       true,
		Description:   req.Description,
	}

	var result chargeResult
	status, err := c.post(ctx, "/v1/charges", req.IdempotencyKey, body, &result)
	if err != nil {
		return nil, err
	}

	switch {
	case status >= 200 && status < 300 && result.Status == "succeeded":
		return &CaptureResponse{Success: true, ReferenceID: result.ID}, nil
	case status >= 200 && status < 300:
		return &CaptureResponse{ReferenceID: result.ID, Reason: nonEmpty(result.FailureReason, "charge "+result.Status)}, nil
	case status == http.StatusPaymentRequired || status == http.StatusBadRequest:
		reason := result.FailureReason
		if result.Error != nil {
			reason = nonEmpty(reason, result.Error.Message)
		}
		return &CaptureResponse{ReferenceID: result.ID, Reason: nonEmpty(reason, "declined")}, nil
	default:
		return nil, fmt.Errorf("unexpected status code: %d", status)
	}
}

// CreateIntent opens a two-phase payment and returns the client secret
// the buyer's device uses to confirm it.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency string) (string, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
	}

	var result chargeResult
	status, err := c.post(ctx, "/v1/payment_intents", "", body, &result)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("unexpected status code: %d", status)
	}
	if result.ClientSecret == "" {
		return "", fmt.Errorf("missing client secret in response")
	}
	return result.ClientSecret, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out any) (int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil && resp.StatusCode < 500 {
			return 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
