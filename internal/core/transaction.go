package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

type (
	// Type discriminates the two transaction kinds.
	Type string

	// Transaction is a single tracked movement of money. OwnerID is empty for
	// demo records; IsSample marks seeded demo examples.
	Transaction struct {
		ID          string          `json:"id"`
		OwnerID     string          `json:"ownerId,omitempty"`
		Type        Type            `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Date        time.Time       `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		IsSample    bool            `json:"isSample,omitempty"`
	}

	// TransactionInput carries the user-provided fields of a new transaction.
	// Field order matters: validation reports the first violated field.
	TransactionInput struct {
		Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
		Description string          `json:"description" validate:"required"`
		Category    string          `json:"category" validate:"required"`
		Date        time.Time       `json:"date" validate:"required"`
		Type        Type            `json:"type" validate:"oneof=income expense"`
	}

	// TransactionPatch is a partial update; nil fields are left untouched.
	// ID and OwnerID are immutable and therefore absent.
	TransactionPatch struct {
		Type        *Type            `json:"type,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Description *string          `json:"description,omitempty"`
		Category    *string          `json:"category,omitempty"`
		Date        *time.Time       `json:"date,omitempty"`
	}
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrDemoLimitReached = errors.New("demo transaction limit reached")
)

// ValidationError reports the first field of an input that failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// StoreError wraps a failed remote store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsValid reports whether t is one of the two known transaction types.
func (t Type) IsValid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Apply merges the non-nil patch fields into a copy of tx.
func (p TransactionPatch) Apply(tx Transaction) Transaction {
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Description != nil {
		tx.Description = *p.Description
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
	return tx
}

// NormalizeDate collapses any source encoding of a business date to midnight
// UTC so that records from different backends compare on calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
