// Package budget maintains the yearly/monthly dual representation of
// budget entries and computes actual-vs-budget rollups. All yearly↔monthly
// synchronization happens here; no other code path writes budget rows.
package budget

import (
	"context"
	"fmt"
	"log/slog"

	"lucid/internal/core"
	applog "lucid/internal/log"
)

const monthsPerYear = 12

// Key identifies one budget category for one owner and year.
type Key struct {
	OwnerID  int64
	Type     core.TransactionType
	Category string
	Year     int
}

// Change is an atomic mutation of a category's dual representation. The
// store applies DeleteAll and all Upserts in a single transaction so a
// concurrent reader never observes a half-done transition.
type Change struct {
	Key
	SubType   core.SubType
	DeleteAll bool
	Upserts   []core.BudgetEntry
}

// Actual is the summed transaction amount for one type+category.
type Actual struct {
	Type     core.TransactionType
	Category string
	Total    core.Money
}

// Store is the record-store boundary the reconciler needs.
type Store interface {
	BudgetEntriesForKey(ctx context.Context, key Key) ([]core.BudgetEntry, error)
	BudgetEntriesForYear(ctx context.Context, ownerID int64, year int) ([]core.BudgetEntry, error)
	ApplyBudgetChange(ctx context.Context, change Change) error
	DeleteBudgetEntry(ctx context.Context, ownerID, entryID int64) error
	ActualsByCategory(ctx context.Context, ownerID int64, year int, month *int) ([]Actual, error)
}

type Reconciler struct {
	store Store
}

func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// SplitYear divides a yearly amount into 12 monthly amounts. The split is
// even, with the last month absorbing the rounding residue so the twelve
// entries always sum exactly to the yearly amount (1000.00 becomes eleven
// months of 83.33 and a final 83.37).
func SplitYear(amount core.Money) [monthsPerYear]core.Money {
	var months [monthsPerYear]core.Money
	per := amount.Cents / monthsPerYear
	for i := range months {
		months[i] = core.Money{Cents: per}
	}
	months[monthsPerYear-1] = core.Money{Cents: amount.Cents - per*(monthsPerYear-1)}
	return months
}

// SetYearly upserts the yearly aggregate entry. When no monthly entries
// exist yet for the key, twelve monthly children are created from the even
// split in the same atomic change. Existing monthly entries are left
// untouched on re-edit: explicit monthly figures take precedence over a
// later yearly adjustment.
func (r *Reconciler) SetYearly(ctx context.Context, key Key, subType core.SubType, amount core.Money) error {
	entry := core.BudgetEntry{
		OwnerID:  key.OwnerID,
		Type:     key.Type,
		Category: key.Category,
		SubType:  core.AutoSubType(key.Category, subType),
		Year:     key.Year,
		Amount:   amount,
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("yearly budget for %s/%s: %w", key.Type, key.Category, err)
	}

	existing, err := r.store.BudgetEntriesForKey(ctx, key)
	if err != nil {
		return fmt.Errorf("reading budget entries: %w", err)
	}

	change := Change{Key: key, SubType: entry.SubType, Upserts: []core.BudgetEntry{entry}}
	if !hasMonthly(existing) {
		split := SplitYear(amount)
		for i, m := range split {
			month := i + 1
			monthly := entry
			monthly.Month = &month
			monthly.Amount = m
			change.Upserts = append(change.Upserts, monthly)
		}
	}

	if err := r.store.ApplyBudgetChange(ctx, change); err != nil {
		return fmt.Errorf("applying yearly budget: %w", err)
	}

	slog.InfoContext(ctx, "Yearly budget set",
		applog.FieldOwnerID, key.OwnerID,
		"type", key.Type,
		applog.FieldCategory, key.Category,
		applog.FieldYear, key.Year,
		"amount", amount.String(),
		"months_created", len(change.Upserts)-1)
	return nil
}

// SetMonthly upserts a single monthly entry. Once all twelve months are
// present the yearly aggregate is recomputed as their sum in the same
// atomic change; with fewer than twelve months the yearly entry, if any,
// is left untouched.
func (r *Reconciler) SetMonthly(ctx context.Context, key Key, month int, subType core.SubType, amount core.Money) error {
	entry := core.BudgetEntry{
		OwnerID:  key.OwnerID,
		Type:     key.Type,
		Category: key.Category,
		SubType:  core.AutoSubType(key.Category, subType),
		Year:     key.Year,
		Month:    &month,
		Amount:   amount,
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("monthly budget for %s/%s: %w", key.Type, key.Category, err)
	}

	existing, err := r.store.BudgetEntriesForKey(ctx, key)
	if err != nil {
		return fmt.Errorf("reading budget entries: %w", err)
	}

	change := Change{Key: key, SubType: entry.SubType, Upserts: []core.BudgetEntry{entry}}

	// Months present after this write.
	present := map[int]core.Money{month: amount}
	for _, e := range existing {
		if e.Month != nil && *e.Month != month {
			present[*e.Month] = e.Amount
		}
	}
	if len(present) == monthsPerYear {
		var sum core.Money
		for _, m := range present {
			sum = sum.Add(m)
		}
		yearly := entry
		yearly.Month = nil
		yearly.Amount = sum
		change.Upserts = append(change.Upserts, yearly)
	}

	if err := r.store.ApplyBudgetChange(ctx, change); err != nil {
		return fmt.Errorf("applying monthly budget: %w", err)
	}

	slog.InfoContext(ctx, "Monthly budget set",
		applog.FieldOwnerID, key.OwnerID,
		"type", key.Type,
		applog.FieldCategory, key.Category,
		applog.FieldYear, key.Year,
		applog.FieldMonth, month,
		"amount", amount.String())
	return nil
}

// EntriesForYear lists every budget entry of one owner's year, both the
// yearly aggregates and the monthly rows.
func (r *Reconciler) EntriesForYear(ctx context.Context, ownerID int64, year int) ([]core.BudgetEntry, error) {
	entries, err := r.store.BudgetEntriesForYear(ctx, ownerID, year)
	if err != nil {
		return nil, fmt.Errorf("reading budget entries: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes a single (year, month) entry by ID.
func (r *Reconciler) DeleteEntry(ctx context.Context, ownerID, entryID int64) error {
	if err := r.store.DeleteBudgetEntry(ctx, ownerID, entryID); err != nil {
		return fmt.Errorf("deleting budget entry %d: %w", entryID, err)
	}
	return nil
}

// DeleteCategory removes a category's entire dual representation (yearly
// plus all months) as one atomic operation.
func (r *Reconciler) DeleteCategory(ctx context.Context, key Key) error {
	if err := r.store.ApplyBudgetChange(ctx, Change{Key: key, DeleteAll: true}); err != nil {
		return fmt.Errorf("deleting budget category %s/%s: %w", key.Type, key.Category, err)
	}
	slog.InfoContext(ctx, "Budget category deleted",
		applog.FieldOwnerID, key.OwnerID,
		"type", key.Type,
		applog.FieldCategory, key.Category,
		applog.FieldYear, key.Year)
	return nil
}

func hasMonthly(entries []core.BudgetEntry) bool {
	for _, e := range entries {
		if e.Month != nil {
			return true
		}
	}
	return false
}
