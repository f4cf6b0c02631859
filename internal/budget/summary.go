package budget

import (
	"context"
	"fmt"
	"math"
	"sort"

	"lucid/internal/core"
)

// CategorySummary is one actual-vs-budget line of the rollup.
type CategorySummary struct {
	Type            core.TransactionType `json:"type"`
	Category        string               `json:"category"`
	Budget          core.Money           `json:"budget"`
	Actual          core.Money           `json:"actual"`
	Remaining       core.Money           `json:"remaining"`
	PercentComplete float64              `json:"percent_complete"`
}

// TotalLine pairs actual and budgeted totals for one transaction type.
type TotalLine struct {
	Actual core.Money `json:"actual"`
	Budget core.Money `json:"budget"`
}

// Summary is the full rollup for a year or a single month.
type Summary struct {
	Year           int                  `json:"year"`
	Month          *int                 `json:"month,omitempty"`
	Income         []CategorySummary    `json:"income"`
	Expenses       []CategorySummary    `json:"expenses"`
	Savings        []CategorySummary    `json:"savings"`
	Totals         map[string]TotalLine `json:"totals"` // keyed income/expenses/savings/net
	FixedCostRatio float64              `json:"fixed_cost_ratio"`
}

// fixedCostCategories feed the fixed-cost ratio: unavoidable recurring
// spend relative to income.
var fixedCostCategories = map[string]bool{
	"Housing":          true,
	"Health Insurance": true,
	"Health Other":     true,
	"Tax":              true,
}

type catKey struct {
	typ      core.TransactionType
	category string
}

// Summarize computes the actual-vs-budget rollup. For the yearly view the
// budget per category prefers the yearly entry and falls back to the sum
// of monthly entries; for a monthly view it prefers that month's entry and
// falls back to yearly/12. The two representations are never combined.
func (r *Reconciler) Summarize(ctx context.Context, ownerID int64, year int, month *int) (Summary, error) {
	actualRows, err := r.store.ActualsByCategory(ctx, ownerID, year, month)
	if err != nil {
		return Summary{}, fmt.Errorf("reading actuals: %w", err)
	}
	entries, err := r.store.BudgetEntriesForYear(ctx, ownerID, year)
	if err != nil {
		return Summary{}, fmt.Errorf("reading budget entries: %w", err)
	}

	actuals := make(map[catKey]core.Money, len(actualRows))
	for _, a := range actualRows {
		actuals[catKey{a.Type, a.Category}] = a.Total
	}
	budgets := budgetPerCategory(entries, month)

	sum := Summary{
		Year:   year,
		Month:  month,
		Totals: make(map[string]TotalLine, 4),
	}
	sum.Income = buildSection(core.Income, actuals, budgets)
	sum.Expenses = buildSection(core.Expenses, actuals, budgets)
	sum.Savings = buildSection(core.Savings, actuals, budgets)

	income := sectionTotal(sum.Income)
	expenses := sectionTotal(sum.Expenses)
	savings := sectionTotal(sum.Savings)
	sum.Totals["income"] = income
	sum.Totals["expenses"] = expenses
	sum.Totals["savings"] = savings
	sum.Totals["net"] = TotalLine{
		Actual: income.Actual.Sub(expenses.Actual).Sub(savings.Actual),
		Budget: income.Budget.Sub(expenses.Budget).Sub(savings.Budget),
	}

	var fixed core.Money
	for _, item := range sum.Expenses {
		if fixedCostCategories[item.Category] {
			fixed = fixed.Add(item.Actual)
		}
	}
	if income.Actual.Cents > 0 {
		sum.FixedCostRatio = round1(float64(fixed.Cents) / float64(income.Actual.Cents) * 100)
	}

	return sum, nil
}

// budgetPerCategory resolves the dual representation into one budget
// figure per category for the requested view.
func budgetPerCategory(entries []core.BudgetEntry, month *int) map[catKey]core.Money {
	yearly := make(map[catKey]core.Money)
	monthlySum := make(map[catKey]core.Money)
	monthExact := make(map[catKey]core.Money)

	for _, e := range entries {
		k := catKey{e.Type, e.Category}
		if e.Month == nil {
			yearly[k] = e.Amount
			continue
		}
		monthlySum[k] = monthlySum[k].Add(e.Amount)
		if month != nil && *e.Month == *month {
			monthExact[k] = e.Amount
		}
	}

	budgets := make(map[catKey]core.Money)
	if month != nil {
		for k, v := range yearly {
			budgets[k] = core.Money{Cents: v.Cents / monthsPerYear}
		}
		for k, v := range monthExact {
			budgets[k] = v // the month's own entry takes precedence
		}
		return budgets
	}

	for k, v := range monthlySum {
		budgets[k] = v
	}
	for k, v := range yearly {
		budgets[k] = v // prefer yearly, never double-count
	}
	return budgets
}

// PercentComplete computes actual/budget as a percentage with the fixed
// boundary rule: a positive actual against a zero budget reads as exactly
// 100, fully used with no allocation.
func PercentComplete(actual, budget core.Money) float64 {
	switch {
	case budget.Cents > 0:
		return round1(float64(actual.Cents) / float64(budget.Cents) * 100)
	case actual.Cents > 0:
		return 100
	default:
		return 0
	}
}

func buildSection(typ core.TransactionType, actuals, budgets map[catKey]core.Money) []CategorySummary {
	cats := make(map[string]bool)
	for k := range actuals {
		if k.typ == typ {
			cats[k.category] = true
		}
	}
	for k := range budgets {
		if k.typ == typ {
			cats[k.category] = true
		}
	}

	items := make([]CategorySummary, 0, len(cats))
	for cat := range cats {
		actual := actuals[catKey{typ, cat}]
		budget := budgets[catKey{typ, cat}]
		if actual.IsZero() && budget.IsZero() {
			continue
		}
		remaining := budget.Sub(actual)
		if remaining.IsNegative() {
			remaining = core.Money{}
		}
		items = append(items, CategorySummary{
			Type:            typ,
			Category:        cat,
			Budget:          budget,
			Actual:          actual,
			Remaining:       remaining,
			PercentComplete: PercentComplete(actual, budget),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Actual.Cents != items[j].Actual.Cents {
			return items[i].Actual.Cents > items[j].Actual.Cents
		}
		return items[i].Category < items[j].Category
	})
	return items
}

func sectionTotal(items []CategorySummary) TotalLine {
	var t TotalLine
	for _, i := range items {
		t.Actual = t.Actual.Add(i.Actual)
		t.Budget = t.Budget.Add(i.Budget)
	}
	return t
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
