package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucid/internal/core"
)

func bankLine(primary, secondary string, cents int64, isCredit bool) core.NormalizedLine {
	return core.NormalizedLine{
		Date:      time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Primary:   primary,
		Secondary: secondary,
		Amount:    core.Money{Cents: cents},
		IsCredit:  isCredit,
		Source:    core.SourceBank,
	}
}

func mustRuleSet(t *testing.T, rules []core.Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules)
	require.NoError(t, err)
	return rs
}

func TestClassify_FirstMatchingRuleWins(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		// Created later, but lower priority value: must win.
		{ID: 9, Pattern: "migros", Type: core.Expenses, Category: "Groceries", Priority: 0, Active: true},
		{ID: 2, Pattern: "migros", Type: core.Expenses, Category: "Extras", Priority: 5, Active: true},
	})

	a := Classify(bankLine("migros lausanne", "", 4250, false), rs)
	assert.Equal(t, core.Expenses, a.Type)
	assert.Equal(t, "Groceries", a.Category)
}

func TestClassify_PriorityTiesBreakByID(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 7, Pattern: "netflix", Type: core.Expenses, Category: "Extras", Priority: 1, Active: true},
		{ID: 3, Pattern: "netflix", Type: core.Expenses, Category: "Media", Priority: 1, Active: true},
	})

	a := Classify(bankLine("netflix.com", "", 1790, false), rs)
	assert.Equal(t, "Media", a.Category, "lower rule ID wins on equal priority")
}

func TestClassify_InactiveRulesIgnored(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "migros", Type: core.Expenses, Category: "Extras", Priority: 0, Active: false},
	})
	assert.Equal(t, 0, rs.Len())

	a := Classify(bankLine("migros lausanne", "", 4250, false), rs)
	assert.Equal(t, "Groceries", a.Category, "falls through to heuristics")
}

func TestRuleSet_AmountPredicateBoundary(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "transfer", AmountOp: core.OpGte, AmountCents: 100000,
			Type: core.Savings, Category: "Emergency Fund", Priority: 0, Active: true},
	})

	_, ok := rs.Match("monthly transfer", core.Money{Cents: 100000})
	assert.True(t, ok, ">= 1000.00 must match exactly 1000.00")

	_, ok = rs.Match("monthly transfer", core.Money{Cents: 99999})
	assert.False(t, ok, ">= 1000.00 must not match 999.99")
}

func TestRuleSet_AmountPredicateUsesUnsignedAmount(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "rent", AmountOp: core.OpGt, AmountCents: 50000,
			Type: core.Expenses, Category: "Housing", Priority: 0, Active: true},
	})
	_, ok := rs.Match("rent payment", core.Money{Cents: -180000})
	assert.True(t, ok)
}

func TestRuleSet_CaseSensitivity(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "Migros", CaseSensitive: true, Type: core.Expenses, Category: "Groceries", Priority: 0, Active: true},
		{ID: 2, Pattern: "Migros", Type: core.Expenses, Category: "Extras", Priority: 5, Active: true},
	})

	r, ok := rs.Match("migros lausanne", core.Money{Cents: 100})
	require.True(t, ok)
	assert.Equal(t, "Extras", r.Category, "case-sensitive rule must not match lowercase text")

	r, ok = rs.Match("Migros Lausanne", core.Money{Cents: 100})
	require.True(t, ok)
	assert.Equal(t, "Groceries", r.Category)
}

func TestRuleSet_Regex(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: `^twint .*(pizza|kebab)`, IsRegex: true,
			Type: core.Expenses, Category: "Restaurants", Priority: 0, Active: true},
	})

	_, ok := rs.Match("twint payment pizza milano", core.Money{Cents: 2500})
	assert.True(t, ok)
	_, ok = rs.Match("pizza milano twint", core.Money{Cents: 2500})
	assert.False(t, ok)
}

func TestNewRuleSet_InvalidRegex(t *testing.T) {
	_, err := NewRuleSet([]core.Rule{
		{ID: 1, Pattern: "([", IsRegex: true, Type: core.Expenses, Category: "Extras", Active: true},
	})
	assert.Error(t, err)
}

func TestClassify_Deterministic(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "migros", Type: core.Expenses, Category: "Groceries", Priority: 0, Active: true},
		{ID: 2, Pattern: "coop", Type: core.Expenses, Category: "Groceries", Priority: 1, Active: true},
	})
	line := bankLine("migros lausanne", "card payment", 4250, false)

	first := Classify(line, rs)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(line, rs))
	}
}

func TestClassify_NoMatchFallsBackToNoLabel(t *testing.T) {
	rs := mustRuleSet(t, nil)
	a := Classify(bankLine("mysterious merchant", "", 999, false), rs)
	assert.Equal(t, core.NoLabel, a.Type)
	assert.Equal(t, core.CategoryUncategorized, a.Category)
}

func TestClassify_RuleAssignsAutoSubType(t *testing.T) {
	rs := mustRuleSet(t, []core.Rule{
		{ID: 1, Pattern: "regie", Type: core.Expenses, Category: "Housing", Priority: 0, Active: true},
	})
	a := Classify(bankLine("regie du lac", "", 180000, false), rs)
	assert.Equal(t, core.Essentials, a.SubType)
}
