package domain

import (
	"strings"
	"testing"
)

func validRequest() TransferRequest {
	return TransferRequest{
		Sender: Party{Name: "Alice Sender", Country: "US"},
		Recipient: Party{
			Name:    "Bob Recipient",
			Country: "PH",
			Instrument: &SettlementInstrument{
				Kind: InstrumentBankAccount,
				BankAccount: &BankAccount{
					AccountName:   "Bob Recipient",
					AccountNumber: "00123456789",
					BankName:      "BDO",
					Country:       "PH",
				},
			},
		},
		PurposeCode: "family_support",
	}
}

func TestTransferRequestValidate_Accepts(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestTransferRequestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*TransferRequest)
		wantSub string
	}{
		{
			name:    "missing sender name",
			mutate:  func(r *TransferRequest) { r.Sender.Name = " " },
			wantSub: "sender name",
		},
		{
			name:    "missing recipient name",
			mutate:  func(r *TransferRequest) { r.Recipient.Name = "" },
			wantSub: "recipient name",
		},
		{
			name:    "missing recipient instrument",
			mutate:  func(r *TransferRequest) { r.Recipient.Instrument = nil },
			wantSub: "settlement instrument",
		},
		{
			name:    "missing purpose code",
			mutate:  func(r *TransferRequest) { r.PurposeCode = "" },
			wantSub: "purpose code",
		},
		{
			name: "bank kind without bank account",
			mutate: func(r *TransferRequest) {
				r.Recipient.Instrument.BankAccount = nil
			},
			wantSub: "bank account",
		},
		{
			name: "bank kind with both variants populated",
			mutate: func(r *TransferRequest) {
				r.Recipient.Instrument.MobileWallet = &MobileWallet{Provider: "gcash", PhoneNumber: "+639170000000", Country: "PH"}
			},
			wantSub: "exactly",
		},
		{
			name: "wallet kind without phone number",
			mutate: func(r *TransferRequest) {
				r.Recipient.Instrument = &SettlementInstrument{
					Kind:         InstrumentMobileWallet,
					MobileWallet: &MobileWallet{Provider: "gcash", Country: "PH"},
				}
			},
			wantSub: "phone number",
		},
		{
			name: "unknown instrument kind",
			mutate: func(r *TransferRequest) {
				r.Recipient.Instrument = &SettlementInstrument{Kind: "crypto_wallet"}
			},
			wantSub: "unknown instrument kind",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestSettlementInstrumentValidate_MobileWallet(t *testing.T) {
	si := SettlementInstrument{
		Kind:         InstrumentMobileWallet,
		MobileWallet: &MobileWallet{Provider: "mpesa", PhoneNumber: "+254700000000", Country: "KE"},
	}
	if err := si.Validate(); err != nil {
		t.Fatalf("expected valid wallet instrument, got %v", err)
	}
}
