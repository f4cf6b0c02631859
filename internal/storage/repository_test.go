package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucid/internal/budget"
	"lucid/internal/core"
	"lucid/internal/ingest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "lucid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTransaction(hash string) core.Transaction {
	return core.Transaction{
		OwnerID:     1,
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Year:        2025,
		Month:       3,
		Description: "migros geneve",
		Type:        core.Expenses,
		Category:    "Groceries",
		SubType:     core.Needs,
		Amount:      core.Money{Cents: 4550},
		Source:      core.SourceBank,
		SourceFile:  "march.csv",
		Hash:        hash,
	}
}

func TestSaveBatch_CommitsFingerprintAndRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	result, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "abc", Filename: "march.csv", Source: core.SourceBank,
		Transactions: []core.Transaction{sampleTransaction("h1"), sampleTransaction("h2")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Duplicates)

	seen, err := repo.HasFingerprint(ctx, 1, "abc")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = repo.HasFingerprint(ctx, 2, "abc")
	require.NoError(t, err)
	assert.False(t, seen, "fingerprints are per owner")
}

func TestSaveBatch_DuplicateDigestRejectsWholeBatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "abc",
		Transactions: []core.Transaction{sampleTransaction("h1")},
	})
	require.NoError(t, err)

	_, err = repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "abc",
		Transactions: []core.Transaction{sampleTransaction("h3")},
	})
	assert.ErrorIs(t, err, ingest.ErrAlreadyProcessed)

	txns, err := repo.ListTransactions(ctx, 1, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 1, "rejected batch must not leave rows behind")
}

func TestSaveBatch_RowHashDedupAcrossFiles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "file1",
		Transactions: []core.Transaction{sampleTransaction("h1")},
	})
	require.NoError(t, err)

	// Overlapping export period: same booking appears in a second file.
	result, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "file2",
		Transactions: []core.Transaction{sampleTransaction("h1"), sampleTransaction("h4")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)
}

func TestRecategorize(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "f",
		Transactions: []core.Transaction{sampleTransaction("h1")},
	})
	require.NoError(t, err)
	txns, err := repo.ListTransactions(ctx, 1, TransactionFilter{})
	require.NoError(t, err)

	err = repo.Recategorize(ctx, 1, txns[0].ID, core.Expenses, "Restaurants", core.Wants)
	require.NoError(t, err)

	got, err := repo.GetTransaction(ctx, 1, txns[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Restaurants", got.Category)
	assert.Equal(t, core.Wants, got.SubType)

	err = repo.Recategorize(ctx, 2, txns[0].ID, core.Expenses, "Restaurants", core.Wants)
	assert.ErrorIs(t, err, ErrNotFound, "other owners cannot touch the row")
}

func TestListTransactions_Filters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groceries := sampleTransaction("h1")
	salary := sampleTransaction("h2")
	salary.Description = "salaire mars"
	salary.Type = core.Income
	salary.Category = "Employment"
	salary.Month = 3
	other := sampleTransaction("h3")
	other.Year = 2024
	other.Date = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "f",
		Transactions: []core.Transaction{groceries, salary, other},
	})
	require.NoError(t, err)

	txns, err := repo.ListTransactions(ctx, 1, TransactionFilter{Year: 2025})
	require.NoError(t, err)
	assert.Len(t, txns, 2)

	txns, err = repo.ListTransactions(ctx, 1, TransactionFilter{Type: core.Income})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Employment", txns[0].Category)

	txns, err = repo.ListTransactions(ctx, 1, TransactionFilter{Search: "salaire"})
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	txns, err = repo.ListTransactions(ctx, 2, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRules_CRUDAndOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := int64(1)

	late, err := repo.CreateRule(ctx, core.Rule{
		OwnerID: &owner, Pattern: "coop", Type: core.Expenses, Category: "Groceries",
		Priority: 20, Active: true,
	})
	require.NoError(t, err)
	early, err := repo.CreateRule(ctx, core.Rule{
		OwnerID: &owner, Pattern: "migros", Type: core.Expenses, Category: "Restaurants",
		Priority: 10, Active: true,
	})
	require.NoError(t, err)
	_, err = repo.CreateRule(ctx, core.Rule{
		OwnerID: &owner, Pattern: "off", Type: core.Expenses, Category: "Extras",
		Priority: 5, Active: false,
	})
	require.NoError(t, err)

	rules, err := repo.ActiveRules(ctx, owner)
	require.NoError(t, err)
	require.Len(t, rules, 2, "inactive rules are excluded")
	assert.Equal(t, early.ID, rules[0].ID, "lowest priority first")
	assert.Equal(t, late.ID, rules[1].ID)

	early.Category = "Groceries"
	require.NoError(t, repo.UpdateRule(ctx, owner, early))
	got, err := repo.GetRule(ctx, owner, early.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Category)

	require.NoError(t, repo.DeleteRule(ctx, owner, early.ID))
	_, err = repo.GetRule(ctx, owner, early.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveRules_IncludesGlobalRules(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateRule(ctx, core.Rule{
		Pattern: "sbb", Type: core.Expenses, Category: "Train", Priority: 1, Active: true,
	})
	require.NoError(t, err)

	rules, err := repo.ActiveRules(ctx, 42)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Nil(t, rules[0].OwnerID)
}

func TestApplyBudgetChange_UpsertAndDeleteAll(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	june := 6

	change := budget.Change{
		Key: budget.Key{OwnerID: 1, Type: core.Expenses, Category: "Travel", Year: 2025},
		Upserts: []core.BudgetEntry{
			{OwnerID: 1, Type: core.Expenses, Category: "Travel", Year: 2025, Amount: core.Money{Cents: 120000}},
			{OwnerID: 1, Type: core.Expenses, Category: "Travel", Year: 2025, Month: &june, Amount: core.Money{Cents: 10000}},
		},
	}
	require.NoError(t, repo.ApplyBudgetChange(ctx, change))

	// Upserting the same keys again overwrites instead of duplicating.
	change.Upserts[1].Amount = core.Money{Cents: 20000}
	require.NoError(t, repo.ApplyBudgetChange(ctx, change))

	entries, err := repo.BudgetEntriesForKey(ctx, change.Key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].Month, "yearly row sorts first as month 0")
	assert.Equal(t, int64(120000), entries[0].Amount.Cents)
	require.NotNil(t, entries[1].Month)
	assert.Equal(t, 6, *entries[1].Month)
	assert.Equal(t, int64(20000), entries[1].Amount.Cents)

	require.NoError(t, repo.ApplyBudgetChange(ctx, budget.Change{Key: change.Key, DeleteAll: true}))
	entries, err = repo.BudgetEntriesForKey(ctx, change.Key)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestActualsByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groceriesMarch := sampleTransaction("h1")
	groceriesApril := sampleTransaction("h2")
	groceriesApril.Month = 4
	groceriesApril.Date = time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	salary := sampleTransaction("h3")
	salary.Type = core.Income
	salary.Category = "Employment"
	salary.Amount = core.Money{Cents: 650000}

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "f",
		Transactions: []core.Transaction{groceriesMarch, groceriesApril, salary},
	})
	require.NoError(t, err)

	actuals, err := repo.ActualsByCategory(ctx, 1, 2025, nil)
	require.NoError(t, err)
	require.Len(t, actuals, 2)

	byCat := make(map[string]int64)
	for _, a := range actuals {
		byCat[a.Category] = a.Total.Cents
	}
	assert.Equal(t, int64(9100), byCat["Groceries"], "both months summed in the yearly view")
	assert.Equal(t, int64(650000), byCat["Employment"])

	march := 3
	actuals, err = repo.ActualsByCategory(ctx, 1, 2025, &march)
	require.NoError(t, err)
	byCat = make(map[string]int64)
	for _, a := range actuals {
		byCat[a.Category] = a.Total.Cents
	}
	assert.Equal(t, int64(4550), byCat["Groceries"])
}

func TestMonthlyTrendAndYears(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groceries := sampleTransaction("h1")
	salary := sampleTransaction("h2")
	salary.Type = core.Income
	salary.Category = "Employment"
	salary.Amount = core.Money{Cents: 650000}
	old := sampleTransaction("h3")
	old.Year = 2024

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "f",
		Transactions: []core.Transaction{groceries, salary, old},
	})
	require.NoError(t, err)

	trend, err := repo.MonthlyTrend(ctx, 1, 2025)
	require.NoError(t, err)
	require.Len(t, trend, 12, "every month is present even when empty")
	assert.Equal(t, int64(650000), trend[2].Income.Cents)
	assert.Equal(t, int64(4550), trend[2].Expenses.Cents)
	assert.Equal(t, int64(0), trend[0].Income.Cents)

	years, err := repo.Years(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2024}, years)
}

func TestDeleteTransaction(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.SaveBatch(ctx, ingest.Batch{
		OwnerID: 1, Digest: "f",
		Transactions: []core.Transaction{sampleTransaction("h1")},
	})
	require.NoError(t, err)
	txns, err := repo.ListTransactions(ctx, 1, TransactionFilter{})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteTransaction(ctx, 2, txns[0].ID), ErrNotFound)
	require.NoError(t, repo.DeleteTransaction(ctx, 1, txns[0].ID))

	txns, err = repo.ListTransactions(ctx, 1, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}
