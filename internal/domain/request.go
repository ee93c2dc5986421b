/**
 * @description
 * Sender- and recipient-supplied transfer instructions. The settlement instrument
 * is an explicit tagged variant: exactly one of bank account or mobile wallet is
 * populated, discriminated by InstrumentKind rather than inferred from which
 * optional fields happen to be set.
 */

package domain

import (
	"fmt"
	"strings"
)

// InstrumentKind discriminates the settlement instrument variant.
type InstrumentKind string

const (
	InstrumentBankAccount  InstrumentKind = "bank_account"
	InstrumentMobileWallet InstrumentKind = "mobile_wallet"
)

// BankAccount identifies a fiat bank settlement target.
type BankAccount struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	BankCode      string `json:"bank_code,omitempty"`
	Country       string `json:"country"`
}

// MobileWallet identifies a mobile money settlement target.
type MobileWallet struct {
	Provider    string `json:"provider"`
	PhoneNumber string `json:"phone_number"`
	Country     string `json:"country"`
}

// SettlementInstrument is a tagged variant holding exactly one instrument.
type SettlementInstrument struct {
	Kind         InstrumentKind `json:"kind"`
	BankAccount  *BankAccount   `json:"bank_account,omitempty"`
	MobileWallet *MobileWallet  `json:"mobile_wallet,omitempty"`
}

// Validate checks that the populated variant matches the declared kind.
func (si SettlementInstrument) Validate() error {
	switch si.Kind {
	case InstrumentBankAccount:
		if si.BankAccount == nil || si.MobileWallet != nil {
			return fmt.Errorf("instrument kind %q requires exactly a bank account", si.Kind)
		}
		if strings.TrimSpace(si.BankAccount.AccountNumber) == "" {
			return fmt.Errorf("bank account number is required")
		}
	case InstrumentMobileWallet:
		if si.MobileWallet == nil || si.BankAccount != nil {
			return fmt.Errorf("instrument kind %q requires exactly a mobile wallet", si.Kind)
		}
		if strings.TrimSpace(si.MobileWallet.PhoneNumber) == "" {
			return fmt.Errorf("mobile wallet phone number is required")
		}
	default:
		return fmt.Errorf("unknown instrument kind %q", si.Kind)
	}
	return nil
}

// Party is a sender or recipient of a transfer.
type Party struct {
	Name       string                `json:"name"`
	Email      string                `json:"email,omitempty"`
	Phone      string                `json:"phone,omitempty"`
	Country    string                `json:"country"`
	Instrument *SettlementInstrument `json:"instrument,omitempty"`
}

// TransferRequest carries the instructions a transfer is committed from.
// Immutable once a transfer is created.
type TransferRequest struct {
	Sender      Party  `json:"sender"`
	Recipient   Party  `json:"recipient"`
	PurposeCode string `json:"purpose_code"`
	Reference   string `json:"reference,omitempty"`
}

// Validate rejects malformed requests before any state is created. The
// recipient must carry a settlement instrument; the sender's is optional
// because collection providers may pull from a hosted checkout instead.
func (r TransferRequest) Validate() error {
	if strings.TrimSpace(r.Sender.Name) == "" {
		return fmt.Errorf("sender name is required")
	}
	if strings.TrimSpace(r.Recipient.Name) == "" {
		return fmt.Errorf("recipient name is required")
	}
	if r.Recipient.Instrument == nil {
		return fmt.Errorf("recipient settlement instrument is required")
	}
	if err := r.Recipient.Instrument.Validate(); err != nil {
		return fmt.Errorf("recipient instrument: %w", err)
	}
	if r.Sender.Instrument != nil {
		if err := r.Sender.Instrument.Validate(); err != nil {
			return fmt.Errorf("sender instrument: %w", err)
		}
	}
	if strings.TrimSpace(r.PurposeCode) == "" {
		return fmt.Errorf("purpose code is required")
	}
	return nil
}
