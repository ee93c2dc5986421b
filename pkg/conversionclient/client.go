/**
 * @description
 * This package provides a client for the conversion provider (leg 2), which
 * converts collected fiat to a stablecoin and routes it on-chain. Besides
 * quoting, it issues liquidation addresses: deposit targets that, once funded,
 * trigger the provider's automatic conversion and forwarding.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package conversionclient

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

// Client is a client for the conversion provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new conversion provider client with a bounded timeout.
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
	Amount       float64 `json:"amount"`
	FromCurrency string  `json:"from_currency"`
	Stablecoin   string  `json:"stablecoin"`
	Network      string  `json:"network"`
}

type quoteResponse struct {
	Data struct {
		Rate             float64 `json:"rate"`
		Fee              float64 `json:"fee"`
		EstimatedSeconds int     `json:"estimated_seconds"`
	} `json:"data"`
}

type liquidationAddressRequest struct {
	TransferID string `json:"transfer_id"`
	Network    string `json:"network"`
	Stablecoin string `json:"stablecoin"`
}

type liquidationAddressResponse struct {
	Data struct {
		ID      string `json:"id"`
		Address string `json:"address"`
		Network string `json:"network"`
	} `json:"data"`
}

// ErrorResponse represents an error from the conversion provider API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("conversion api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown conversion api error"
}

// Quote prices converting the given fiat amount into the stablecoin.
func (c *Client) Quote(ctx context.Context, amount float64, fromCurrency, stablecoin, network string) (*domain.LegQuote, error) {
	var out quoteResponse
	err := c.do(ctx, "POST", "/v1/conversions/quote", quoteRequest{
		Amount:       amount,
		FromCurrency: fromCurrency,
		Stablecoin:   stablecoin,
		Network:      network,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.LegQuote{
		Provider:         "conversion",
		Fee:              out.Data.Fee,
		Rate:             out.Data.Rate,
		EstimatedSeconds: out.Data.EstimatedSeconds,
	}, nil
}

// CreateLiquidationAddress issues a deposit target bound to one transfer.
// Idempotent with respect to the transfer id per the provider contract.
func (c *Client) CreateLiquidationAddress(ctx context.Context, p domain.LiquidationAddressRequest) (*domain.LiquidationAddress, error) {
	var out liquidationAddressResponse
	err := c.do(ctx, "POST", "/v1/liquidation-addresses", liquidationAddressRequest{
		TransferID: p.TransferID.String(),
		Network:    p.Network,
		Stablecoin: p.Stablecoin,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.LiquidationAddress{
		ID:      out.Data.ID,
		Address: out.Data.Address,
		Network: out.Data.Network,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal conversion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute conversion request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read conversion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("conversion api returned status %d", resp.StatusCode)
		}
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode conversion response: %w", err)
	}
	return nil
}
