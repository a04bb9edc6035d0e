package demo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

// sampleTransactions is the fixed example set shown on first demo
// activation. Dates are anchored to now so the examples always land in the
// current period views.
func sampleTransactions(now time.Time) []core.Transaction {
	day := func(daysAgo int) time.Time {
		return core.NormalizeDate(now.AddDate(0, 0, -daysAgo))
	}

	seeds := []struct {
		typ         core.Type
		amount      string
		description string
		category    string
		daysAgo     int
	}{
		{core.TypeIncome, "1850.00", "Stipendio di esempio", "stipendio", 6},
		{core.TypeExpense, "62.30", "Spesa settimanale", "supermercato", 4},
		{core.TypeExpense, "28.50", "Cena fuori", "ristorante", 3},
		{core.TypeExpense, "45.00", "Pieno di benzina", "trasporti", 2},
		{core.TypeExpense, "75.20", "Bolletta della luce", "bollette", 1},
	}

	out := make([]core.Transaction, 0, len(seeds))
	for i, seed := range seeds {
		amount, _ := decimal.NewFromString(seed.amount)
		out = append(out, core.Transaction{
			ID:          uuid.NewString(),
			Type:        seed.typ,
			Amount:      amount,
			Description: seed.description,
			Category:    seed.category,
			Date:        day(seed.daysAgo),
			// Stagger creation times so the default ordering is stable.
			CreatedAt: now.Add(-time.Duration(len(seeds)-i) * time.Minute),
			IsSample:  true,
		})
	}
	return out
}
