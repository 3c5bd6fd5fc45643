package dto

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tradeledger/internal/domain"
)

func TestCreateEntityRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateEntityRequest{
		Kind:           "customer",
		Name:           "Bakhrom",
		Phone:          "+998901234567",
		OpeningBalance: map[string]decimal.Decimal{"USD": decimal.NewFromInt(15)},
	}

	got := req.ToUseCaseInput("op-1")

	if got.ActorID != "op-1" || got.Kind != domain.EntityKindCustomer || got.Name != "Bakhrom" {
		t.Fatalf("unexpected input %+v", got)
	}
	if !got.OpeningBalance.Get(domain.CurrencyUSD).Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected USD opening balance 15, got %s", got.OpeningBalance.Get(domain.CurrencyUSD))
	}
	if !got.OpeningBalance.Get(domain.CurrencyUZS).IsZero() {
		t.Fatalf("expected UZS opening balance to default to zero")
	}
}

func TestCreateSaleRequest_ToUseCaseInput(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	req := &CreateSaleRequest{
		CustomerID: "cust-1",
		SaleDate:   &day,
		Items: []LineItemRequest{
			{ProductID: "rice", Currency: "UZS", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
		Discount: decimal.NewFromInt(10),
	}

	got := req.ToUseCaseInput("op-1")

	if got.CustomerID != "cust-1" || got.SaleDate != &day {
		t.Fatalf("unexpected input %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Currency != domain.CurrencyUZS || got.Items[0].ProductID != "rice" {
		t.Fatalf("unexpected items %+v", got.Items)
	}
}

func TestApplyPaymentRequest_ToUseCaseInput(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		want      domain.Direction
		wantErr   bool
	}{
		{name: "payment", direction: "payment", want: domain.DirectionPayment},
		{name: "debt", direction: "DEBT", want: domain.DirectionDebt},
		{name: "unknown", direction: "gift", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ApplyPaymentRequest{Currency: "USD", Amount: decimal.NewFromInt(5), Direction: tt.direction}
			got, err := req.ToUseCaseInput("op-1", "cust-1")
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidDirection) {
					t.Fatalf("expected invalid direction, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Direction != tt.want || got.EntityID != "cust-1" || got.Currency != domain.CurrencyUSD {
				t.Fatalf("unexpected input %+v", got)
			}
		})
	}
}

func TestLegacyReversalRequest_DefaultsDirection(t *testing.T) {
	req := &LegacyReversalRequest{EntryID: "e-1"}
	got, err := req.ToUseCaseInput("op-1", "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Direction != "" || got.EntryID != "e-1" {
		t.Fatalf("unexpected input %+v", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "valid sale",
			body: `{"customer_id":"c","items":[{"product_id":"p","currency":"UZS","quantity":"1","unit_price":"10"}]}`,
		},
		{
			name:    "malformed json",
			body:    `{bad`,
			wantErr: "invalid request body",
		},
		{
			name:    "unknown field",
			body:    `{"customer_id":"c","foo":1}`,
			wantErr: "invalid request body",
		},
		{
			name:    "missing items",
			body:    `{"customer_id":"c"}`,
			wantErr: "items is required",
		},
		{
			name:    "bad item currency",
			body:    `{"customer_id":"c","items":[{"product_id":"p","currency":"EUR","quantity":"1","unit_price":"10"}]}`,
			wantErr: "items[0].currency must be one of [UZS USD]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(tt.body))
			var dest CreateSaleRequest

			err := Decode(req, &dest)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("expected validation kind, got %q", domain.KindOf(err))
			}
		})
	}
}

func TestValidate_OpeningBalanceCurrency(t *testing.T) {
	req := &CreateEntityRequest{
		Kind:           "supplier",
		Name:           "Acme",
		OpeningBalance: map[string]decimal.Decimal{"RUB": decimal.NewFromInt(1)},
	}

	if err := Validate(req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
