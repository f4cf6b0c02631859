package core

// CategoriesByType is the closed mapping of transaction types to their
// allowed categories. Rules and budgets are validated against it at the
// boundary where they are authored; the pipeline itself trusts it.
var CategoriesByType = map[TransactionType][]string{
	Expenses: {
		"Housing",
		"Home Utils",
		"Home Furnitures",
		"Groceries",
		"Restaurants",
		"Train",
		"Internet + Mobile",
		"Car",
		"Health Insurance",
		"Health Other",
		"Clothing",
		"Media",
		"Extras",
		"Digital Goods",
		"Wellbeing",
		"Sport",
		"Travel",
		"Withdraw",
		"CC fees",
		"Tax",
		"Debt",
	},
	Income: {
		"Employment",
		"Side Hustle",
		"Grant Payment",
		"Extras / Twint Chargeback",
	},
	Savings: {
		"Rent Guarantee",
		"Emergency Fund",
		"Retirement Account",
		"Stock Portfolio",
		"Sinking Fund Down Payment",
		"Sinking Fund Rest",
	},
	CCRefund: {"Card Refund"},
	NoLabel:  {"Uncategorized"},
}

// CategoryUncategorized is the fallback assigned when no rule and no
// heuristic matches a line.
const CategoryUncategorized = "Uncategorized"

// CategoryCardRefund is the category for credit-card payments and refunds.
const CategoryCardRefund = "Card Refund"

func ValidType(t TransactionType) bool {
	_, ok := CategoriesByType[t]
	return ok
}

func ValidCategory(t TransactionType, category string) bool {
	for _, c := range CategoriesByType[t] {
		if c == category {
			return true
		}
	}
	return false
}

func ValidSubType(s SubType) bool {
	switch s {
	case Essentials, Needs, Wants:
		return true
	}
	return false
}

// AutoSubType returns the sub-type to store for a category. Housing and
// Health Insurance are always Essentials regardless of the requested value.
func AutoSubType(category string, requested SubType) SubType {
	if category == "Housing" || category == "Health Insurance" {
		return Essentials
	}
	return requested
}
