/**
 * @description
 * This package provides a client for the fiat collection provider (leg 1).
 * It encapsulates authenticated HTTP calls for quoting a collection and for
 * initiating one against a sender, and parses the provider's responses into
 * the orchestrator's domain types.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package collectionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stablepath/remit-orchestrator/internal/domain"
)

// Client is a client for the collection provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new collection provider client with a bounded timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type quoteRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Country  string  `json:"country"`
}

type quoteResponse struct {
	Data struct {
		Fee              float64 `json:"fee"`
		EstimatedSeconds int     `json:"estimated_seconds"`
	} `json:"data"`
}

type initiateRequest struct {
	TransferID  string  `json:"transfer_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	SenderName  string  `json:"sender_name"`
	DepositRef  string  `json:"deposit_reference"`
	CallbackURL string  `json:"callback_url"`
}

type initiateResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// ErrorResponse represents an error from the collection provider API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("collection api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown collection api error"
}

// Quote asks the provider to price collecting the given amount. Must not have
// side effects on the provider side.
func (c *Client) Quote(ctx context.Context, amount float64, currency, country string) (*domain.LegQuote, error) {
	var out quoteResponse
	err := c.do(ctx, "POST", "/v1/collections/quote", quoteRequest{
		Amount:   amount,
		Currency: currency,
		Country:  country,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.LegQuote{
		Provider:         "collection",
		Fee:              out.Data.Fee,
		Rate:             1.0,
		EstimatedSeconds: out.Data.EstimatedSeconds,
	}, nil
}

// Initiate starts the collection leg. The provider is required to treat the
// transfer id as an idempotency key, so retrying with the same id is safe.
func (c *Client) Initiate(ctx context.Context, p domain.CollectionInitiation) (*domain.LegHandle, error) {
	var out initiateResponse
	err := c.do(ctx, "POST", "/v1/collections", initiateRequest{
		TransferID:  p.TransferID.String(),
		Amount:      p.Amount,
		Currency:    p.Currency,
		SenderName:  p.SenderName,
		DepositRef:  p.DepositRef,
		CallbackURL: p.CallbackURL,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.LegHandle{ProviderReferenceID: out.Data.ID}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal collection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute collection request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read collection response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("collection api returned status %d", resp.StatusCode)
		}
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode collection response: %w", err)
	}
	return nil
}
