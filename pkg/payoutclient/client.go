/**
 * @description
 * This package provides a client for the payout provider (leg 3), which
 * liquidates stablecoin into local fiat and disburses it to the recipient's
 * bank account or mobile wallet.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package payoutclient

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

// Client is a client for the payout provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payout provider client with a bounded timeout.
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
	Amount     float64 `json:"amount"`
	Stablecoin string  `json:"stablecoin"`
	ToCurrency string  `json:"to_currency"`
	Country    string  `json:"country"`
}

type quoteResponse struct {
	Data struct {
		Rate             float64 `json:"rate"`
		Fee              float64 `json:"fee"`
		EstimatedSeconds int     `json:"estimated_seconds"`
	} `json:"data"`
}

type initiateRequest struct {
	TransferID  string          `json:"transfer_id"`
	Amount      float64         `json:"amount"`
	Stablecoin  string          `json:"stablecoin"`
	Currency    string          `json:"currency"`
	Country     string          `json:"country"`
	Recipient   payoutRecipient `json:"recipient"`
	CallbackURL string          `json:"callback_url"`
}

type payoutRecipient struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	WalletPhone   string `json:"wallet_phone,omitempty"`
	WalletNetwork string `json:"wallet_network,omitempty"`
}

type initiateResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// ErrorResponse represents an error from the payout provider API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("payout api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown payout api error"
}

// Quote prices paying out the given stablecoin amount into local fiat.
func (c *Client) Quote(ctx context.Context, amount float64, stablecoin, toCurrency, country string) (*domain.LegQuote, error) {
	var out quoteResponse
	err := c.do(ctx, "POST", "/v1/payouts/quote", quoteRequest{
		Amount:     amount,
		Stablecoin: stablecoin,
		ToCurrency: toCurrency,
		Country:    country,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domain.LegQuote{
		Provider:         "payout",
		Fee:              out.Data.Fee,
		Rate:             out.Data.Rate,
		EstimatedSeconds: out.Data.EstimatedSeconds,
	}, nil
}

// Initiate starts the payout leg. Idempotent with respect to the transfer id
// per the provider contract, so a retry cannot double-pay the recipient.
func (c *Client) Initiate(ctx context.Context, p domain.PayoutInitiation) (*domain.LegHandle, error) {
	recipient := payoutRecipient{
		Name: p.Recipient.Name,
	}
	if inst := p.Recipient.Instrument; inst != nil {
		recipient.Kind = string(inst.Kind)
		switch inst.Kind {
		case domain.InstrumentBankAccount:
			recipient.AccountNumber = inst.BankAccount.AccountNumber
			recipient.BankCode = inst.BankAccount.BankCode
			recipient.BankName = inst.BankAccount.BankName
		case domain.InstrumentMobileWallet:
			recipient.WalletPhone = inst.MobileWallet.PhoneNumber
			recipient.WalletNetwork = inst.MobileWallet.Provider
		}
	}

	var out initiateResponse
	err := c.do(ctx, "POST", "/v1/payouts", initiateRequest{
		TransferID:  p.TransferID.String(),
		Amount:      p.StablecoinAmount,
		Stablecoin:  p.Stablecoin,
		Currency:    p.Currency,
		Country:     p.Country,
		Recipient:   recipient,
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
		return fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute payout request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read payout response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("payout api returned status %d", resp.StatusCode)
		}
		return &errResp
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode payout response: %w", err)
	}
	return nil
}
