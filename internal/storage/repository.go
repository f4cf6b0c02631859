// Package storage is the SQLite record store behind the ingestion,
// categorization and budgeting services.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lucid/internal/budget"
	"lucid/internal/core"
	"lucid/internal/ingest"
	applog "lucid/internal/log"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when a row does not exist or belongs to a
// different owner.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Single writer; SQLite serializes writes anyway and this avoids
	// SQLITE_BUSY under concurrent uploads.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- ingestion ---

func (r *SQLiteRepository) HasFingerprint(ctx context.Context, ownerID int64, digest string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_files WHERE owner_id = ? AND digest = ?`,
		ownerID, digest).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return true, nil
}

// SaveBatch commits the file fingerprint and its transactions in one SQL
// transaction. If the fingerprint already exists the whole batch is
// rejected with ingest.ErrAlreadyProcessed and nothing is written.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, batch ingest.Batch) (ingest.BatchResult, error) {
	var result ingest.BatchResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin batch tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_files (owner_id, digest, filename, source)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, digest) DO NOTHING`,
		batch.OwnerID, batch.Digest, batch.Filename, string(batch.Source))
	if err != nil {
		return result, fmt.Errorf("insert fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("fingerprint rows affected: %w", err)
	}
	if affected == 0 {
		return result, ingest.ErrAlreadyProcessed
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions
		 (owner_id, date, year, month, description, type, category, sub_type,
		  amount_cents, source, source_file, tx_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, tx_hash) DO NOTHING`)
	if err != nil {
		return result, fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range batch.Transactions {
		res, err := stmt.ExecContext(ctx,
			t.OwnerID, t.Date.Format(dateLayout), t.Year, t.Month, t.Description,
			string(t.Type), t.Category, string(t.SubType),
			t.Amount.Cents, string(t.Source), t.SourceFile, t.Hash)
		if err != nil {
			return result, fmt.Errorf("insert transaction: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("transaction rows affected: %w", err)
		}
		if affected == 0 {
			result.Duplicates++
		} else {
			result.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return ingest.BatchResult{}, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Batch committed",
		applog.FieldOwnerID, batch.OwnerID,
		applog.FieldDigest, batch.Digest,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates)
	return result, nil
}

func (r *SQLiteRepository) TransactionsAfter(ctx context.Context, ownerID, afterID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		txSelect+` WHERE owner_id = ? AND id > ? ORDER BY id ASC LIMIT ?`,
		ownerID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions after: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *SQLiteRepository) Recategorize(ctx context.Context, ownerID, txID int64, typ core.TransactionType, category string, subType core.SubType) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET type = ?, category = ?, sub_type = ?
		 WHERE id = ? AND owner_id = ?`,
		string(typ), category, string(subType), txID, ownerID)
	if err != nil {
		return fmt.Errorf("recategorize transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recategorize rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- transactions read/write ---

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	Year     int
	Month    int
	Type     core.TransactionType
	Category string
	Source   core.Source
	Search   string
	Limit    int
	Offset   int
}

const txSelect = `SELECT id, owner_id, date, year, month, description, type,
	category, sub_type, amount_cents, source, source_file, tx_hash
	FROM transactions`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64, f TransactionFilter) ([]core.Transaction, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}

	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, f.Month)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Search != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit, f.Offset)

	query := txSelect + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY date DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, txID int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, txSelect+` WHERE id = ? AND owner_id = ?`, txID, ownerID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, txID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, txID, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		date    string
		typ     string
		subType string
		source  string
		cents   int64
	)
	err := row.Scan(&t.ID, &t.OwnerID, &date, &t.Year, &t.Month, &t.Description,
		&typ, &t.Category, &subType, &cents, &source, &t.SourceFile, &t.Hash)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Type = core.TransactionType(typ)
	t.SubType = core.SubType(subType)
	t.Source = core.Source(source)
	t.Amount = core.Money{Cents: cents}
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// --- rules ---

const ruleSelect = `SELECT id, owner_id, pattern, is_regex, case_sensitive,
	amount_op, amount_cents, type, category, priority, active
	FROM categorization_rules`

// ActiveRules returns the owner's active rules plus global ones, already
// ordered the way the categorization engine evaluates them.
func (r *SQLiteRepository) ActiveRules(ctx context.Context, ownerID int64) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		ruleSelect+` WHERE active = 1 AND (owner_id IS NULL OR owner_id = ?)
		 ORDER BY priority ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *SQLiteRepository) ListRules(ctx context.Context, ownerID int64) ([]core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		ruleSelect+` WHERE owner_id IS NULL OR owner_id = ?
		 ORDER BY priority ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *SQLiteRepository) GetRule(ctx context.Context, ownerID, ruleID int64) (core.Rule, error) {
	rows, err := r.db.QueryContext(ctx,
		ruleSelect+` WHERE id = ? AND (owner_id IS NULL OR owner_id = ?)`, ruleID, ownerID)
	if err != nil {
		return core.Rule{}, fmt.Errorf("query rule: %w", err)
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return core.Rule{}, err
	}
	if len(rules) == 0 {
		return core.Rule{}, ErrNotFound
	}
	return rules[0], nil
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.Rule) (core.Rule, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categorization_rules
		 (owner_id, pattern, is_regex, case_sensitive, amount_op, amount_cents,
		  type, category, priority, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableInt64(rule.OwnerID), rule.Pattern, rule.IsRegex, rule.CaseSensitive,
		string(rule.AmountOp), rule.AmountCents, string(rule.Type), rule.Category,
		rule.Priority, rule.Active)
	if err != nil {
		return core.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	rule.ID, err = res.LastInsertId()
	if err != nil {
		return core.Rule{}, fmt.Errorf("rule last insert id: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, ownerID int64, rule core.Rule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categorization_rules
		 SET pattern = ?, is_regex = ?, case_sensitive = ?, amount_op = ?,
		     amount_cents = ?, type = ?, category = ?, priority = ?, active = ?
		 WHERE id = ? AND owner_id = ?`,
		rule.Pattern, rule.IsRegex, rule.CaseSensitive, string(rule.AmountOp),
		rule.AmountCents, string(rule.Type), rule.Category, rule.Priority, rule.Active,
		rule.ID, ownerID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, ownerID, ruleID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categorization_rules WHERE id = ? AND owner_id = ?`, ruleID, ownerID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]core.Rule, error) {
	var out []core.Rule
	for rows.Next() {
		var (
			rule    core.Rule
			ownerID sql.NullInt64
			op      string
			typ     string
		)
		err := rows.Scan(&rule.ID, &ownerID, &rule.Pattern, &rule.IsRegex,
			&rule.CaseSensitive, &op, &rule.AmountCents, &typ, &rule.Category,
			&rule.Priority, &rule.Active)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if ownerID.Valid {
			v := ownerID.Int64
			rule.OwnerID = &v
		}
		rule.AmountOp = core.AmountOp(op)
		rule.Type = core.TransactionType(typ)
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// --- budget plans ---

// Month 0 in storage is the yearly aggregate; the domain uses a nil month
// pointer for it.

func (r *SQLiteRepository) BudgetEntriesForKey(ctx context.Context, key budget.Key) ([]core.BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		budgetSelect+` WHERE owner_id = ? AND type = ? AND category = ? AND year = ?
		 ORDER BY month ASC`,
		key.OwnerID, string(key.Type), key.Category, key.Year)
	if err != nil {
		return nil, fmt.Errorf("query budget entries: %w", err)
	}
	defer rows.Close()
	return scanBudgetEntries(rows)
}

func (r *SQLiteRepository) BudgetEntriesForYear(ctx context.Context, ownerID int64, year int) ([]core.BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		budgetSelect+` WHERE owner_id = ? AND year = ? ORDER BY type, category, month ASC`,
		ownerID, year)
	if err != nil {
		return nil, fmt.Errorf("query budget year: %w", err)
	}
	defer rows.Close()
	return scanBudgetEntries(rows)
}

// ApplyBudgetChange applies a reconciler change atomically: the optional
// category-wide delete and every upsert land in one SQL transaction.
func (r *SQLiteRepository) ApplyBudgetChange(ctx context.Context, change budget.Change) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin budget tx: %w", err)
	}
	defer tx.Rollback()

	if change.DeleteAll {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM budget_plans WHERE owner_id = ? AND type = ? AND category = ? AND year = ?`,
			change.OwnerID, string(change.Type), change.Category, change.Year)
		if err != nil {
			return fmt.Errorf("delete budget category: %w", err)
		}
	}

	for _, e := range change.Upserts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budget_plans (owner_id, type, category, sub_type, year, month, amount_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(owner_id, type, category, year, month)
			 DO UPDATE SET amount_cents = excluded.amount_cents, sub_type = excluded.sub_type`,
			e.OwnerID, string(e.Type), e.Category, string(e.SubType), e.Year,
			monthToStorage(e.Month), e.Amount.Cents)
		if err != nil {
			return fmt.Errorf("upsert budget entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit budget change: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudgetEntry(ctx context.Context, ownerID, entryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM budget_plans WHERE id = ? AND owner_id = ?`, entryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete budget entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ActualsByCategory(ctx context.Context, ownerID int64, year int, month *int) ([]budget.Actual, error) {
	query := `SELECT type, category, SUM(amount_cents) FROM transactions
	 WHERE owner_id = ? AND year = ?`
	args := []any{ownerID, year}
	if month != nil {
		query += ` AND month = ?`
		args = append(args, *month)
	}
	query += ` GROUP BY type, category`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actuals: %w", err)
	}
	defer rows.Close()

	var out []budget.Actual
	for rows.Next() {
		var (
			typ   string
			a     budget.Actual
			cents int64
		)
		if err := rows.Scan(&typ, &a.Category, &cents); err != nil {
			return nil, fmt.Errorf("scan actual: %w", err)
		}
		a.Type = core.TransactionType(typ)
		a.Total = core.Money{Cents: cents}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actuals: %w", err)
	}
	return out, nil
}

const budgetSelect = `SELECT id, owner_id, type, category, sub_type, year, month, amount_cents
	FROM budget_plans`

func scanBudgetEntries(rows *sql.Rows) ([]core.BudgetEntry, error) {
	var out []core.BudgetEntry
	for rows.Next() {
		var (
			e       core.BudgetEntry
			typ     string
			subType string
			month   int
			cents   int64
		)
		err := rows.Scan(&e.ID, &e.OwnerID, &typ, &e.Category, &subType, &e.Year, &month, &cents)
		if err != nil {
			return nil, fmt.Errorf("scan budget entry: %w", err)
		}
		e.Type = core.TransactionType(typ)
		e.SubType = core.SubType(subType)
		e.Month = monthFromStorage(month)
		e.Amount = core.Money{Cents: cents}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget entries: %w", err)
	}
	return out, nil
}

func monthToStorage(m *int) int {
	if m == nil {
		return 0
	}
	return *m
}

func monthFromStorage(m int) *int {
	if m == 0 {
		return nil
	}
	v := m
	return &v
}

// --- dashboard ---

// TrendPoint is one month of the income/expense/savings trend.
type TrendPoint struct {
	Month    int        `json:"month"`
	Income   core.Money `json:"income"`
	Expenses core.Money `json:"expenses"`
	Savings  core.Money `json:"savings"`
}

func (r *SQLiteRepository) MonthlyTrend(ctx context.Context, ownerID int64, year int) ([]TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, type, SUM(amount_cents) FROM transactions
		 WHERE owner_id = ? AND year = ?
		 GROUP BY month, type ORDER BY month ASC`, ownerID, year)
	if err != nil {
		return nil, fmt.Errorf("query monthly trend: %w", err)
	}
	defer rows.Close()

	points := make([]TrendPoint, 12)
	for i := range points {
		points[i].Month = i + 1
	}
	for rows.Next() {
		var (
			month int
			typ   string
			cents int64
		)
		if err := rows.Scan(&month, &typ, &cents); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		if month < 1 || month > 12 {
			continue
		}
		p := &points[month-1]
		switch core.TransactionType(typ) {
		case core.Income:
			p.Income = p.Income.Add(core.Money{Cents: cents})
		case core.Expenses:
			p.Expenses = p.Expenses.Add(core.Money{Cents: cents})
		case core.Savings:
			p.Savings = p.Savings.Add(core.Money{Cents: cents})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend rows: %w", err)
	}
	return points, nil
}

// Years lists the distinct years the owner has transactions in, newest
// first.
func (r *SQLiteRepository) Years(ctx context.Context, ownerID int64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT year FROM transactions WHERE owner_id = ? ORDER BY year DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("query years: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate years: %w", err)
	}
	return out, nil
}
