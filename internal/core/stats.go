package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const topCategoryLimit = 5

type (
	// CategoryTotal is one category's share of the total expense.
	CategoryTotal struct {
		Category   string          `json:"category"`
		Amount     decimal.Decimal `json:"amount"`
		Percentage float64         `json:"percentage"`
	}

	// TrendPoint is a (business date, amount) pair in filtered order.
	TrendPoint struct {
		Date   time.Time       `json:"date"`
		Amount decimal.Decimal `json:"amount"`
	}

	// Stats aggregates a transaction list over an inclusive date range.
	Stats struct {
		TotalIncome         decimal.Decimal            `json:"totalIncome"`
		TotalExpense        decimal.Decimal            `json:"totalExpense"`
		Balance             decimal.Decimal            `json:"balance"`
		DailyAverageExpense decimal.Decimal            `json:"dailyAverageExpense"`
		TransactionCount    int                        `json:"transactionCount"`
		CategoryBreakdown   map[string]decimal.Decimal `json:"categoryBreakdown"`
		TopCategories       []CategoryTotal            `json:"topCategories"`
		IncomeTrend         []TrendPoint               `json:"incomeTrend"`
		ExpenseTrend        []TrendPoint               `json:"expenseTrend"`
	}
)

// CalculateStats filters txs to the inclusive [startOfDay(from), endOfDay(to)]
// window and accumulates totals, the per-category expense breakdown, the top
// five expense categories with their percentage of total expense, and the two
// trend series. Pure: identical inputs yield identical output.
func CalculateStats(txs []Transaction, from, to time.Time) Stats {
	window := DateRange{From: StartOfDay(from), To: EndOfDay(to)}

	stats := Stats{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		Balance:           decimal.Zero,
		CategoryBreakdown: make(map[string]decimal.Decimal),
		TopCategories:     []CategoryTotal{},
		IncomeTrend:       []TrendPoint{},
		ExpenseTrend:      []TrendPoint{},
	}

	for _, tx := range txs {
		if !window.Contains(tx.Date) {
			continue
		}
		stats.TransactionCount++
		point := TrendPoint{Date: tx.Date, Amount: tx.Amount}
		switch tx.Type {
		case TypeIncome:
			stats.TotalIncome = stats.TotalIncome.Add(tx.Amount)
			stats.IncomeTrend = append(stats.IncomeTrend, point)
		case TypeExpense:
			stats.TotalExpense = stats.TotalExpense.Add(tx.Amount)
			stats.ExpenseTrend = append(stats.ExpenseTrend, point)
			stats.CategoryBreakdown[tx.Category] = stats.CategoryBreakdown[tx.Category].Add(tx.Amount)
		}
	}

	stats.Balance = stats.TotalIncome.Sub(stats.TotalExpense)
	stats.DailyAverageExpense = decimal.Zero
	if stats.TotalExpense.IsPositive() {
		stats.DailyAverageExpense = stats.TotalExpense.DivRound(decimal.NewFromInt(int64(window.Days())), 2)
	}
	stats.TopCategories = topCategories(stats.CategoryBreakdown, stats.TotalExpense)

	return stats
}

func topCategories(breakdown map[string]decimal.Decimal, totalExpense decimal.Decimal) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(breakdown))
	for category, amount := range breakdown {
		pct := 0.0
		if totalExpense.IsPositive() {
			pct, _ = amount.Div(totalExpense).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		}
		out = append(out, CategoryTotal{Category: category, Amount: amount, Percentage: pct})
	}
	// Deterministic order: amount descending, category name as tie-breaker.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > topCategoryLimit {
		out = out[:topCategoryLimit]
	}
	return out
}
