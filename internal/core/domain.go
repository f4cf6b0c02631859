package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income   TransactionType = "Income"
	Expenses TransactionType = "Expenses"
	Savings  TransactionType = "Savings"
	CCRefund TransactionType = "CC_Refund"
	NoLabel  TransactionType = "No-Label"
)

const (
	Essentials SubType = "Essentials"
	Needs      SubType = "Needs"
	Wants      SubType = "Wants"
)

const (
	SourceBank       Source = "bank-statement"
	SourceCreditCard Source = "credit-card"
)

// Amount predicate operators for categorization rules. Predicates are
// evaluated against the unsigned transaction amount.
const (
	OpEq  AmountOp = "eq"
	OpLt  AmountOp = "lt"
	OpGt  AmountOp = "gt"
	OpLte AmountOp = "lte"
	OpGte AmountOp = "gte"
)

type (
	TransactionType string
	SubType         string
	Source          string
	AmountOp        string

	// NormalizedLine is a single parsed line item from a bank or card export,
	// before categorization. Amount is the unsigned magnitude; IsCredit carries
	// the sign convention of the source format.
	NormalizedLine struct {
		Date      time.Time
		Primary   string // bank: description1, card: sector
		Secondary string // remaining description text
		Amount    Money
		IsCredit  bool
		Source    Source
	}

	// Transaction is a categorized line item as stored. Amount is always the
	// unsigned magnitude; Type carries the direction.
	Transaction struct {
		ID          int64           `json:"id"`
		OwnerID     int64           `json:"owner_id"`
		Date        time.Time       `json:"date"`
		Year        int             `json:"year"`
		Month       int             `json:"month"`
		Description string          `json:"description"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		SubType     SubType         `json:"sub_type,omitempty"` // empty = unset
		Amount      Money           `json:"amount"`
		Source      Source          `json:"source"`
		SourceFile  string          `json:"source_file,omitempty"`
		Hash        string          `json:"-"`
	}

	// Rule matches transaction descriptions and optionally amounts, and
	// assigns a type and category. A nil OwnerID means the rule is global.
	Rule struct {
		ID            int64           `json:"id"`
		OwnerID       *int64          `json:"owner_id,omitempty"`
		Pattern       string          `json:"pattern"`
		IsRegex       bool            `json:"is_regex"`
		CaseSensitive bool            `json:"case_sensitive"`
		AmountOp      AmountOp        `json:"amount_op,omitempty"` // empty = no amount predicate
		AmountCents   int64           `json:"amount_cents,omitempty"`
		Type          TransactionType `json:"type"`
		Category      string          `json:"category"`
		Priority      int             `json:"priority"` // lower value = evaluated first
		Active        bool            `json:"active"`
	}

	// BudgetEntry is one row of the yearly/monthly dual representation.
	// A nil Month means the yearly aggregate entry.
	BudgetEntry struct {
		ID       int64           `json:"id"`
		OwnerID  int64           `json:"owner_id"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		SubType  SubType         `json:"sub_type,omitempty"`
		Year     int             `json:"year"`
		Month    *int            `json:"month,omitempty"`
		Amount   Money           `json:"amount"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrEmptyPattern    = errors.New("rule pattern cannot be empty")
	ErrInvalidOperator = errors.New("invalid amount operator")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidCategory = errors.New("category not valid for type")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
	ErrInvalidYear     = errors.New("invalid year")
)

// Description joins the primary and secondary description parts the way
// they are stored and matched against rules.
func (l NormalizedLine) Description() string {
	s := l.Primary + " | " + l.Secondary
	return strings.Trim(strings.TrimSpace(s), "| ")
}

func (op AmountOp) Valid() bool {
	switch op {
	case OpEq, OpLt, OpGt, OpLte, OpGte:
		return true
	}
	return false
}

// Eval applies the operator with the convention "amount <op> threshold".
func (op AmountOp) Eval(amount, threshold Money) bool {
	switch op {
	case OpEq:
		return amount.Cents == threshold.Cents
	case OpLt:
		return amount.Cents < threshold.Cents
	case OpGt:
		return amount.Cents > threshold.Cents
	case OpLte:
		return amount.Cents <= threshold.Cents
	case OpGte:
		return amount.Cents >= threshold.Cents
	}
	return false
}

// Validate checks the invariants required of an authored rule. Pattern
// compilation for regex rules happens when the snapshot is built.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return ErrEmptyPattern
	}
	if r.AmountOp != "" && !r.AmountOp.Valid() {
		return ErrInvalidOperator
	}
	if r.AmountOp != "" && r.AmountCents < 0 {
		return ErrNegativeAmount
	}
	if !ValidType(r.Type) {
		return ErrInvalidType
	}
	if !ValidCategory(r.Type, r.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// Validate checks an authored budget entry. Amounts are non-negative;
// a budget of zero is allowed and means "explicitly no allocation".
func (b BudgetEntry) Validate() error {
	if b.Amount.Cents < 0 {
		return ErrNegativeAmount
	}
	if b.Year < 1970 || b.Year > 9999 {
		return ErrInvalidYear
	}
	if b.Month != nil && (*b.Month < 1 || *b.Month > 12) {
		return ErrInvalidMonth
	}
	if !ValidType(b.Type) {
		return ErrInvalidType
	}
	if !ValidCategory(b.Type, b.Category) {
		return ErrInvalidCategory
	}
	return nil
}
