package classify

import (
	"strings"

	"lucid/internal/core"
)

// Built-in merchant-pattern tables per source format, used when no user
// rule matches. Extractors lowercase description fields, so all patterns
// here are lowercase.

// cardSectorCategories maps credit-card sector descriptions to expense
// categories.
var cardSectorCategories = []struct {
	pattern  string
	category string
}{
	{"grocery stores", "Groceries"},
	{"restaurants", "Restaurants"},
	{"bakeries", "Restaurants"},
	{"fast-food restaurants", "Restaurants"},
	{"fast food restaurant", "Restaurants"},
	{"gasoline service stations", "Car"},
	{"pharmacies", "Health Other"},
	{"digital goods", "Digital Goods"},
	{"computer software stores", "Digital Goods"},
	{"electronics stores", "Digital Goods"},
	{"department stores", "Extras"},
	{"book stores", "Extras"},
	{"package stores", "Extras"},
	{"retail business", "Extras"},
	{"barber or beauty shops", "Wellbeing"},
	{"recreation services", "Sport"},
	{"taxicabs", "Restaurants"}, // food delivery platforms book under taxicabs
}

func heuristicAssign(line core.NormalizedLine) Assignment {
	switch line.Source {
	case core.SourceCreditCard:
		return cardHeuristic(line)
	default:
		return bankHeuristic(line)
	}
}

func bankHeuristic(line core.NormalizedLine) Assignment {
	if line.IsCredit {
		return Assignment{Type: core.Income, Category: bankIncomeCategory(line)}
	}
	t, c := bankExpenseCategory(line)
	return Assignment{Type: t, Category: c}
}

func bankIncomeCategory(line core.NormalizedLine) string {
	// Exports place the salary marker in different description columns
	// depending on the counterparty, so match the joined description the
	// same way user rules do.
	desc := line.Description()
	switch {
	case strings.Contains(desc, "salaire"):
		return "Employment"
	case strings.Contains(desc, "credit ubs twint"):
		return "Extras / Twint Chargeback"
	case strings.Contains(desc, "etat de vaud"),
		strings.Contains(desc, "civil et mil"),
		strings.Contains(desc, "loyer"):
		return "Side Hustle"
	default:
		// Unrecognized credits default to Side Hustle rather than No-Label:
		// income sources are few and reviewed anyway.
		return "Side Hustle"
	}
}

func bankExpenseCategory(line core.NormalizedLine) (core.TransactionType, string) {
	p, s := line.Primary, line.Secondary
	switch {
	case strings.Contains(p, "card center"):
		return core.CCRefund, core.CategoryCardRefund
	case strings.Contains(p, "sbb"):
		return core.Expenses, "Train"
	case strings.Contains(p, "pilet + renaud"):
		return core.Expenses, "Housing"
	case strings.Contains(p, "assura"):
		return core.Expenses, "Health Insurance"
	case strings.Contains(p, "swisscom"):
		return core.Expenses, "Internet + Mobile"
	case strings.Contains(p, "coop"), strings.Contains(p, "migros"):
		// Convenience-store brands at gas stations are fuel, not food.
		if strings.Contains(p, "pronto") && (strings.Contains(p, "tankstelle") || strings.Contains(p, "gasoline")) {
			return core.Expenses, "Car"
		}
		return core.Expenses, "Groceries"
	case strings.Contains(p, "services industriels"):
		return core.Expenses, "Home Utils"
	case strings.Contains(s, "bancomat"), strings.Contains(s, "withdrawal"):
		return core.Expenses, "Withdraw"
	case strings.Contains(p, "balance closing"), strings.Contains(p, "service prices"):
		return core.Expenses, "CC fees"
	case strings.Contains(s, "debit ubs twint"):
		return core.Expenses, "Extras"
	default:
		return core.NoLabel, core.CategoryUncategorized
	}
}

func cardHeuristic(line core.NormalizedLine) Assignment {
	if line.IsCredit {
		return Assignment{Type: core.CCRefund, Category: core.CategoryCardRefund}
	}

	for _, m := range cardSectorCategories {
		if strings.Contains(line.Primary, m.pattern) {
			return Assignment{Type: core.Expenses, Category: m.category}
		}
	}

	// Interest charges come without a sector.
	if line.Primary == "" && (strings.Contains(line.Secondary, "interets") || strings.Contains(line.Secondary, "interest")) {
		return Assignment{Type: core.Expenses, Category: "CC fees"}
	}

	return Assignment{Type: core.NoLabel, Category: core.CategoryUncategorized}
}
