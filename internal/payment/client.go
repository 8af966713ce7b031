package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Intent is the processor's view of a payment authorization.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// ErrIntentNotFound means the processor does not know the handle, e.g. after
// an environment mismatch. Callers treat it as a terminal failure.
var ErrIntentNotFound = errors.New("payment intent not found")

type ProcessorClient interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
}

// HTTPProcessorClient talks to a Stripe-shaped payment-intents API. The
// injected http.Client must carry a timeout; on timeout the call fails and no
// local state is changed by the caller.
type HTTPProcessorClient struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func (c *HTTPProcessorClient) CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)

	endpoint := fmt.Sprintf("%s/v1/payment_intents", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create intent: unexpected status %d", resp.StatusCode)
	}
	var in Intent
	if err := json.NewDecoder(resp.Body).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &in, nil
}

func (c *HTTPProcessorClient) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s", c.BaseURL, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrIntentNotFound
	default:
		return nil, fmt.Errorf("retrieve intent: unexpected status %d", resp.StatusCode)
	}

	var in Intent
	if err := json.NewDecoder(resp.Body).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &in, nil
}
