package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Amount:      decimal.NewFromInt(50),
		Description: "Groceries",
		Category:    "supermercato",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:        TypeExpense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestTransactionInputValidateFirstViolatedField(t *testing.T) {
	base := TransactionInput{
		Amount:      decimal.NewFromInt(50),
		Description: "Groceries",
		Category:    "supermercato",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:        TypeExpense,
	}

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
		field  string
	}{
		{"zero amount", func(in *TransactionInput) { in.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(in *TransactionInput) { in.Amount = decimal.NewFromInt(-3) }, "amount"},
		{"empty description", func(in *TransactionInput) { in.Description = "" }, "description"},
		{"blank description", func(in *TransactionInput) { in.Description = "   " }, "description"},
		{"empty category", func(in *TransactionInput) { in.Category = "" }, "category"},
		{"missing date", func(in *TransactionInput) { in.Date = time.Time{} }, "date"},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, "type"},
		// Amount precedes description in the schema, so it wins when both fail.
		{"two violations", func(in *TransactionInput) { in.Amount = decimal.Zero; in.Description = "" }, "amount"},
	}
	for _, tc := range cases {
		in := base
		tc.mutate(&in)
		err := in.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %T: %v", tc.name, err, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, verr.Field)
		}
	}
}

func TestPatchApply(t *testing.T) {
	tx := Transaction{
		ID:          "tx-1",
		OwnerID:     "owner-1",
		Type:        TypeExpense,
		Amount:      decimal.NewFromInt(10),
		Description: "Lunch",
		Category:    "ristorante",
		Date:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	amount := decimal.NewFromInt(12)
	desc := "Dinner"
	got := TransactionPatch{Amount: &amount, Description: &desc}.Apply(tx)

	if !got.Amount.Equal(amount) || got.Description != desc {
		t.Fatalf("patched fields not applied: %+v", got)
	}
	if got.ID != tx.ID || got.OwnerID != tx.OwnerID || got.Category != tx.Category {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2024, 3, 10, 18, 30, 0, 0, loc)
	got := NormalizeDate(in)
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
