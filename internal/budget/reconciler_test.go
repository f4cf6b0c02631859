package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucid/internal/core"
)

// fakeStore applies changes atomically in memory, mirroring the record
// store contract.
type fakeStore struct {
	nextID  int64
	entries []core.BudgetEntry
	actuals []Actual
}

func (f *fakeStore) BudgetEntriesForKey(_ context.Context, key Key) ([]core.BudgetEntry, error) {
	var out []core.BudgetEntry
	for _, e := range f.entries {
		if e.OwnerID == key.OwnerID && e.Type == key.Type && e.Category == key.Category && e.Year == key.Year {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) BudgetEntriesForYear(_ context.Context, ownerID int64, year int) ([]core.BudgetEntry, error) {
	var out []core.BudgetEntry
	for _, e := range f.entries {
		if e.OwnerID == ownerID && e.Year == year {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyBudgetChange(_ context.Context, change Change) error {
	if change.DeleteAll {
		kept := f.entries[:0]
		for _, e := range f.entries {
			if !(e.OwnerID == change.OwnerID && e.Type == change.Type && e.Category == change.Category && e.Year == change.Year) {
				kept = append(kept, e)
			}
		}
		f.entries = kept
	}
	for _, up := range change.Upserts {
		f.upsert(up)
	}
	return nil
}

func (f *fakeStore) upsert(entry core.BudgetEntry) {
	for i, e := range f.entries {
		if e.OwnerID == entry.OwnerID && e.Type == entry.Type && e.Category == entry.Category &&
			e.Year == entry.Year && monthEq(e.Month, entry.Month) {
			entry.ID = e.ID
			f.entries[i] = entry
			return
		}
	}
	f.nextID++
	entry.ID = f.nextID
	f.entries = append(f.entries, entry)
}

func (f *fakeStore) DeleteBudgetEntry(_ context.Context, ownerID, entryID int64) error {
	for i, e := range f.entries {
		if e.ID == entryID && e.OwnerID == ownerID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ActualsByCategory(_ context.Context, _ int64, _ int, _ *int) ([]Actual, error) {
	return f.actuals, nil
}

func monthEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func travelKey() Key {
	return Key{OwnerID: 1, Type: core.Expenses, Category: "Travel", Year: 2025}
}

func monthlyAmounts(t *testing.T, store *fakeStore, key Key) map[int]int64 {
	t.Helper()
	entries, err := store.BudgetEntriesForKey(context.Background(), key)
	require.NoError(t, err)
	out := make(map[int]int64)
	for _, e := range entries {
		if e.Month != nil {
			out[*e.Month] = e.Amount.Cents
		}
	}
	return out
}

func yearlyAmount(t *testing.T, store *fakeStore, key Key) (int64, bool) {
	t.Helper()
	entries, err := store.BudgetEntriesForKey(context.Background(), key)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Month == nil {
			return e.Amount.Cents, true
		}
	}
	return 0, false
}

func TestSplitYear_EvenAmount(t *testing.T) {
	months := SplitYear(core.Money{Cents: 240000}) // 2400.00
	var sum int64
	for _, m := range months {
		assert.Equal(t, int64(20000), m.Cents)
		sum += m.Cents
	}
	assert.Equal(t, int64(240000), sum)
}

func TestSplitYear_ResidueInLastMonth(t *testing.T) {
	months := SplitYear(core.Money{Cents: 100000}) // 1000.00
	var sum int64
	for i := 0; i < 11; i++ {
		assert.Equal(t, int64(8333), months[i].Cents, "month %d", i+1)
		sum += months[i].Cents
	}
	assert.Equal(t, int64(8337), months[11].Cents, "last month absorbs the residue")
	assert.Equal(t, int64(100000), sum+months[11].Cents)
}

func TestSetYearly_CreatesTwelveMonths(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)

	err := r.SetYearly(context.Background(), travelKey(), "", core.Money{Cents: 240000})
	require.NoError(t, err)

	months := monthlyAmounts(t, store, travelKey())
	require.Len(t, months, 12)
	for m := 1; m <= 12; m++ {
		assert.Equal(t, int64(20000), months[m], "month %d", m)
	}
	yearly, ok := yearlyAmount(t, store, travelKey())
	require.True(t, ok)
	assert.Equal(t, int64(240000), yearly)
}

func TestSetYearly_ReEditLeavesMonthsUntouched(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)
	ctx := context.Background()

	require.NoError(t, r.SetYearly(ctx, travelKey(), "", core.Money{Cents: 240000}))
	require.NoError(t, r.SetMonthly(ctx, travelKey(), 6, "", core.Money{Cents: 50000}))
	require.NoError(t, r.SetYearly(ctx, travelKey(), "", core.Money{Cents: 600000}))

	months := monthlyAmounts(t, store, travelKey())
	assert.Equal(t, int64(50000), months[6], "explicit monthly edit survives a yearly re-edit")
	assert.Equal(t, int64(20000), months[1], "untouched months keep their old split")

	yearly, ok := yearlyAmount(t, store, travelKey())
	require.True(t, ok)
	assert.Equal(t, int64(600000), yearly)
}

func TestSetMonthly_PartialMonthsLeaveYearlyUntouched(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)
	ctx := context.Background()

	require.NoError(t, r.SetMonthly(ctx, travelKey(), 3, "", core.Money{Cents: 10000}))

	_, ok := yearlyAmount(t, store, travelKey())
	assert.False(t, ok, "no yearly entry must be created from a partial month set")

	months := monthlyAmounts(t, store, travelKey())
	assert.Len(t, months, 1)
}

func TestSetMonthly_TwelfthMonthRecomputesYearly(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)
	ctx := context.Background()

	for m := 1; m <= 12; m++ {
		require.NoError(t, r.SetMonthly(ctx, travelKey(), m, "", core.Money{Cents: 10000}))
	}

	yearly, ok := yearlyAmount(t, store, travelKey())
	require.True(t, ok)
	assert.Equal(t, int64(120000), yearly, "yearly becomes the sum of the twelve months")

	// An edit to one month keeps the yearly in sync.
	require.NoError(t, r.SetMonthly(ctx, travelKey(), 12, "", core.Money{Cents: 20000}))
	yearly, _ = yearlyAmount(t, store, travelKey())
	assert.Equal(t, int64(130000), yearly)
}

func TestSetYearly_RejectsNegative(t *testing.T) {
	r := NewReconciler(&fakeStore{})
	err := r.SetYearly(context.Background(), travelKey(), "", core.Money{Cents: -1})
	assert.ErrorIs(t, err, core.ErrNegativeAmount)
}

func TestSetMonthly_RejectsInvalidCategory(t *testing.T) {
	r := NewReconciler(&fakeStore{})
	key := travelKey()
	key.Category = "Employment" // income category on an Expenses key
	err := r.SetMonthly(context.Background(), key, 1, "", core.Money{Cents: 100})
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}

func TestDeleteCategory_RemovesDualRepresentation(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)
	ctx := context.Background()

	require.NoError(t, r.SetYearly(ctx, travelKey(), "", core.Money{Cents: 240000}))
	require.NoError(t, r.DeleteCategory(ctx, travelKey()))

	entries, err := store.BudgetEntriesForKey(ctx, travelKey())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetYearly_HousingForcesEssentials(t *testing.T) {
	store := &fakeStore{}
	r := NewReconciler(store)
	key := Key{OwnerID: 1, Type: core.Expenses, Category: "Housing", Year: 2025}

	require.NoError(t, r.SetYearly(context.Background(), key, core.Wants, core.Money{Cents: 120000}))

	entries, err := store.BudgetEntriesForKey(context.Background(), key)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, core.Essentials, e.SubType)
	}
}
