package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

func marchTx(day int, typ Type, amount int64, category string) Transaction {
	return Transaction{
		ID:       "tx",
		Type:     typ,
		Amount:   decimal.NewFromInt(amount),
		Category: category,
		Date:     time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestCalculateStatsEmpty(t *testing.T) {
	stats := CalculateStats(nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	if !stats.TotalIncome.IsZero() || !stats.TotalExpense.IsZero() || !stats.Balance.IsZero() {
		t.Fatalf("expected zero totals, got %+v", stats)
	}
	if !stats.DailyAverageExpense.IsZero() {
		t.Fatalf("expected zero daily average, got %s", stats.DailyAverageExpense)
	}
	if stats.TransactionCount != 0 {
		t.Fatalf("expected zero count, got %d", stats.TransactionCount)
	}
	if len(stats.TopCategories) != 0 {
		t.Fatalf("expected no top categories, got %v", stats.TopCategories)
	}
}

func TestCalculateStatsMarch(t *testing.T) {
	txs := []Transaction{
		marchTx(10, TypeExpense, 50, "supermercato"),
		marchTx(1, TypeIncome, 2500, "stipendio"),
	}
	stats := CalculateStats(txs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

	if !stats.TotalIncome.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("income: expected 2500, got %s", stats.TotalIncome)
	}
	if !stats.TotalExpense.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expense: expected 50, got %s", stats.TotalExpense)
	}
	if !stats.Balance.Equal(decimal.NewFromInt(2450)) {
		t.Fatalf("balance: expected 2450, got %s", stats.Balance)
	}
	if len(stats.TopCategories) != 1 {
		t.Fatalf("expected one top category, got %v", stats.TopCategories)
	}
	top := stats.TopCategories[0]
	if top.Category != "supermercato" || !top.Amount.Equal(decimal.NewFromInt(50)) || top.Percentage != 100 {
		t.Fatalf("unexpected top category %+v", top)
	}
	if len(stats.IncomeTrend) != 1 || len(stats.ExpenseTrend) != 1 {
		t.Fatalf("expected one point per trend, got %d/%d", len(stats.IncomeTrend), len(stats.ExpenseTrend))
	}
}

func TestCalculateStatsFiltersWindow(t *testing.T) {
	txs := []Transaction{
		marchTx(10, TypeExpense, 50, "supermercato"),
		{Type: TypeExpense, Amount: decimal.NewFromInt(99), Category: "altro", Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{Type: TypeIncome, Amount: decimal.NewFromInt(99), Category: "altro", Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		// Inclusive bounds: last instant of the window still counts.
		{Type: TypeExpense, Amount: decimal.NewFromInt(1), Category: "bar", Date: time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)},
	}
	stats := CalculateStats(txs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	if stats.TransactionCount != 2 {
		t.Fatalf("expected 2 transactions in window, got %d", stats.TransactionCount)
	}
	if !stats.TotalExpense.Equal(decimal.NewFromInt(51)) {
		t.Fatalf("expected expense 51, got %s", stats.TotalExpense)
	}
}

func TestCalculateStatsDailyAverage(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{marchTx(10, TypeExpense, 50, "supermercato")}

	single := CalculateStats(txs, day, day)
	if !single.DailyAverageExpense.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("single day: expected average 50, got %s", single.DailyAverageExpense)
	}

	tenDays := CalculateStats(txs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), day)
	if !tenDays.DailyAverageExpense.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("ten days: expected average 5, got %s", tenDays.DailyAverageExpense)
	}
}

func TestCalculateStatsTopCategoriesCapped(t *testing.T) {
	categories := []string{"casa", "cibo", "trasporti", "svago", "salute", "bollette", "bar"}
	var txs []Transaction
	for i, c := range categories {
		txs = append(txs, marchTx(1+i, TypeExpense, int64(10*(i+1)), c))
	}
	stats := CalculateStats(txs, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	if len(stats.TopCategories) != 5 {
		t.Fatalf("expected 5 top categories, got %d", len(stats.TopCategories))
	}
	for i := 1; i < len(stats.TopCategories); i++ {
		if stats.TopCategories[i].Amount.GreaterThan(stats.TopCategories[i-1].Amount) {
			t.Fatalf("top categories not sorted descending: %v", stats.TopCategories)
		}
	}
	// Highest spender is the last seeded category.
	if stats.TopCategories[0].Category != "bar" {
		t.Fatalf("expected bar on top, got %s", stats.TopCategories[0].Category)
	}
}

func TestCalculateStatsInvariants(t *testing.T) {
	faker := gofakeit.New(42)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	categories := []string{"supermercato", "ristorante", "trasporti", "bollette", "svago", "salute"}
	var txs []Transaction
	for i := 0; i < 200; i++ {
		typ := TypeExpense
		if faker.Bool() {
			typ = TypeIncome
		}
		txs = append(txs, Transaction{
			ID:          faker.UUID(),
			Type:        typ,
			Amount:      decimal.NewFromFloat(faker.Price(1, 500)).Round(2),
			Description: faker.Sentence(3),
			Category:    categories[faker.IntRange(0, len(categories)-1)],
			Date:        from.AddDate(0, 0, faker.IntRange(0, 30)),
		})
	}

	stats := CalculateStats(txs, from, to)
	if !stats.Balance.Equal(stats.TotalIncome.Sub(stats.TotalExpense)) {
		t.Fatalf("balance %s != income %s - expense %s", stats.Balance, stats.TotalIncome, stats.TotalExpense)
	}
	if stats.TransactionCount != len(txs) {
		t.Fatalf("expected %d transactions counted, got %d", len(txs), stats.TransactionCount)
	}

	var income, expense decimal.Decimal
	for _, tx := range txs {
		if tx.Type == TypeIncome {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	if !stats.TotalIncome.Equal(income) || !stats.TotalExpense.Equal(expense) {
		t.Fatalf("totals mismatch: got %s/%s, want %s/%s", stats.TotalIncome, stats.TotalExpense, income, expense)
	}

	var topSum decimal.Decimal
	for _, top := range stats.TopCategories {
		topSum = topSum.Add(top.Amount)
	}
	if topSum.GreaterThan(expense) {
		t.Fatalf("top categories sum %s exceeds total expense %s", topSum, expense)
	}
}

func TestCalculateStatsIdempotent(t *testing.T) {
	txs := []Transaction{
		marchTx(10, TypeExpense, 50, "supermercato"),
		marchTx(1, TypeIncome, 2500, "stipendio"),
		marchTx(12, TypeExpense, 30, "bar"),
	}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	first := CalculateStats(txs, from, to)
	second := CalculateStats(txs, from, to)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated calls differ:\n%+v\n%+v", first, second)
	}
}
