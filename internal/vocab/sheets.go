package vocab

import (
	"context"
	"fmt"
)

// CategoriesReader is the slice of the Sheets client this package needs.
type CategoriesReader interface {
	Categories(ctx context.Context) (income, expense []string, err error)
}

// Sheets serves the vocabulary from a spreadsheet, falling back to the
// built-in defaults when a column comes back empty.
type Sheets struct {
	reader CategoriesReader
}

func NewSheets(reader CategoriesReader) *Sheets {
	return &Sheets{reader: reader}
}

func (s *Sheets) Categories(ctx context.Context) (Vocabulary, error) {
	income, expense, err := s.reader.Categories(ctx)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(income) == 0 {
		income = defaultIncome()
	}
	if len(expense) == 0 {
		expense = defaultExpense()
	}
	return Vocabulary{Income: dedupe(income), Expense: dedupe(expense)}, nil
}
