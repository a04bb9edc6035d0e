// Package vocab provides the category vocabulary offered when entering a
// transaction. The vocabulary is advisory; stores accept any non-empty
// category string.
package vocab

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Vocabulary struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}

// Provider serves the category vocabulary.
type Provider interface {
	Categories(ctx context.Context) (Vocabulary, error)
}

// Static serves a fixed vocabulary.
type Static struct {
	mu    sync.Mutex
	vocab Vocabulary
}

func New(income, expense []string) *Static {
	return &Static{vocab: Vocabulary{
		Income:  dedupe(income),
		Expense: dedupe(expense),
	}}
}

// NewFromFiles reads seed vocabularies from base, falling back to the
// built-in defaults when the files are missing or empty.
func NewFromFiles(base string) *Static {
	income := readLines(filepath.Join(base, "seed_income_categories.txt"))
	expense := readLines(filepath.Join(base, "seed_expense_categories.txt"))
	if len(income) == 0 {
		income = defaultIncome()
	}
	if len(expense) == 0 {
		expense = defaultExpense()
	}
	return New(income, expense)
}

// NewDefault returns the built-in vocabulary.
func NewDefault() *Static {
	return New(defaultIncome(), defaultExpense())
}

func (s *Static) Categories(_ context.Context) (Vocabulary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Vocabulary{
		Income:  append([]string(nil), s.vocab.Income...),
		Expense: append([]string(nil), s.vocab.Expense...),
	}, nil
}

func defaultIncome() []string {
	return []string{"stipendio", "bonus", "investimenti", "regalo", "altro"}
}

func defaultExpense() []string {
	return []string{
		"supermercato", "ristorante", "trasporti", "bollette",
		"affitto", "salute", "svago", "abbigliamento", "altro",
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// Preserve input order.
	return out
}
