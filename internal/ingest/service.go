// Package ingest orchestrates the upload pipeline: dedup gate, extractor,
// categorization engine, record store. Each invocation is request-scoped
// and stateless; everything it needs is re-read from the store.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lucid/internal/classify"
	"lucid/internal/core"
	"lucid/internal/dedup"
	"lucid/internal/extract"
	applog "lucid/internal/log"
)

// ErrAlreadyProcessed is returned by the store when a batch commit loses
// the atomic fingerprint insert to a concurrent identical upload.
var ErrAlreadyProcessed = errors.New("file already processed")

// Batch is an atomic unit of work for the store: the file fingerprint and
// its categorized transactions are committed together, so a failed
// ingestion leaves no fingerprint behind and a duplicate upload cannot
// insert rows.
type Batch struct {
	OwnerID      int64
	Digest       string
	Filename     string
	Source       core.Source
	Transactions []core.Transaction
}

// BatchResult reports what the store actually inserted.
type BatchResult struct {
	Inserted   int
	Duplicates int // rows whose transaction hash already existed
}

// Store is the record-store boundary of the pipeline.
type Store interface {
	dedup.Store
	ActiveRules(ctx context.Context, ownerID int64) ([]core.Rule, error)
	SaveBatch(ctx context.Context, batch Batch) (BatchResult, error)
	TransactionsAfter(ctx context.Context, ownerID, afterID int64, limit int) ([]core.Transaction, error)
	Recategorize(ctx context.Context, ownerID, txID int64, typ core.TransactionType, category string, subType core.SubType) error
}

// Summary is the structured outcome of one file ingestion. Partial success
// is the normal case: malformed rows are skipped, duplicate rows are
// counted, and a re-uploaded file is a successful no-op.
type Summary struct {
	Source           core.Source `json:"source"`
	Filename         string      `json:"filename"`
	AlreadyProcessed bool        `json:"already_processed"`
	RowsProcessed    int         `json:"rows_processed"`
	RowsSkipped      int         `json:"rows_skipped"`
	RowsDuplicate    int         `json:"rows_duplicate"`
	RowsInserted     int         `json:"rows_inserted"`
}

// ApplyResult reports a rule re-application pass.
type ApplyResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
}

type Service struct {
	store     Store
	gate      *dedup.Gate
	registry  *extract.Registry
	chunkSize int
}

func NewService(store Store, registry *extract.Registry, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &Service{
		store:     store,
		gate:      dedup.NewGate(store),
		registry:  registry,
		chunkSize: chunkSize,
	}
}

// IngestFile runs the full pipeline for one uploaded file.
func (s *Service) IngestFile(ctx context.Context, ownerID int64, filename string, data []byte, source core.Source) (Summary, error) {
	summary := Summary{Source: source, Filename: filename}

	extractor, err := s.registry.Get(source)
	if err != nil {
		return summary, err
	}
	batch, err := extractor.Extract(data)
	if err != nil {
		return summary, fmt.Errorf("extracting %s: %w", filename, err)
	}
	summary.RowsProcessed = len(batch.Lines) + batch.Skipped
	summary.RowsSkipped = batch.Skipped

	gate, err := s.gate.ShouldProcess(ctx, ownerID, data)
	if err != nil {
		return summary, err
	}
	if !gate.Proceed {
		// Report the rows the file carries even though none are written.
		summary.AlreadyProcessed = true
		summary.RowsDuplicate = len(batch.Lines)
		slog.InfoContext(ctx, "File already processed, skipping",
			applog.FieldOwnerID, ownerID,
			applog.FieldFilename, filename,
			applog.FieldDigest, gate.Digest)
		return summary, nil
	}

	rules, err := s.store.ActiveRules(ctx, ownerID)
	if err != nil {
		return summary, fmt.Errorf("loading rules: %w", err)
	}
	ruleSet, err := classify.NewRuleSet(rules)
	if err != nil {
		return summary, fmt.Errorf("building rule snapshot: %w", err)
	}

	txns := make([]core.Transaction, 0, len(batch.Lines))
	for _, line := range batch.Lines {
		txns = append(txns, buildTransaction(ownerID, filename, line, classify.Classify(line, ruleSet)))
	}

	result, err := s.store.SaveBatch(ctx, Batch{
		OwnerID:      ownerID,
		Digest:       gate.Digest,
		Filename:     filename,
		Source:       source,
		Transactions: txns,
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		// Lost the atomic insert to a concurrent upload of the same bytes.
		summary.AlreadyProcessed = true
		summary.RowsDuplicate = len(batch.Lines)
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("saving batch: %w", err)
	}

	summary.RowsInserted = result.Inserted
	summary.RowsDuplicate = result.Duplicates

	slog.InfoContext(ctx, "File ingested",
		applog.FieldOwnerID, ownerID,
		applog.FieldFilename, filename,
		applog.FieldSource, source,
		"rows_processed", summary.RowsProcessed,
		"rows_skipped", summary.RowsSkipped,
		"rows_duplicate", summary.RowsDuplicate,
		"rows_inserted", summary.RowsInserted)
	return summary, nil
}

// ApplyRules re-categorizes the owner's existing transactions against the
// current active rule set. Transactions are processed in ID-ordered chunks
// to bound memory; only user rules are consulted, never the per-source
// heuristics, so a transaction that no rule matches keeps its current
// labels. Running it twice without rule changes is a no-op.
func (s *Service) ApplyRules(ctx context.Context, ownerID int64) (ApplyResult, error) {
	var result ApplyResult

	rules, err := s.store.ActiveRules(ctx, ownerID)
	if err != nil {
		return result, fmt.Errorf("loading rules: %w", err)
	}
	ruleSet, err := classify.NewRuleSet(rules)
	if err != nil {
		return result, fmt.Errorf("building rule snapshot: %w", err)
	}
	if ruleSet.Len() == 0 {
		return result, nil
	}

	afterID := int64(0)
	for {
		txns, err := s.store.TransactionsAfter(ctx, ownerID, afterID, s.chunkSize)
		if err != nil {
			return result, fmt.Errorf("reading transactions after id %d: %w", afterID, err)
		}
		if len(txns) == 0 {
			break
		}

		for _, txn := range txns {
			afterID = txn.ID
			result.Scanned++

			rule, ok := ruleSet.Match(txn.Description, txn.Amount)
			if !ok {
				continue
			}
			if rule.Type == txn.Type && rule.Category == txn.Category {
				continue
			}
			subType := core.AutoSubType(rule.Category, txn.SubType)
			if err := s.store.Recategorize(ctx, ownerID, txn.ID, rule.Type, rule.Category, subType); err != nil {
				return result, fmt.Errorf("recategorizing transaction %d: %w", txn.ID, err)
			}
			result.Updated++
		}
	}

	slog.InfoContext(ctx, "Rules applied to existing transactions",
		applog.FieldOwnerID, ownerID, "scanned", result.Scanned, "updated", result.Updated)
	return result, nil
}

func buildTransaction(ownerID int64, filename string, line core.NormalizedLine, a classify.Assignment) core.Transaction {
	return core.Transaction{
		OwnerID:     ownerID,
		Date:        line.Date,
		Year:        line.Date.Year(),
		Month:       int(line.Date.Month()),
		Description: line.Description(),
		Type:        a.Type,
		Category:    a.Category,
		SubType:     a.SubType,
		Amount:      line.Amount.Abs(),
		Source:      line.Source,
		SourceFile:  filename,
		Hash:        lineHash(line),
	}
}

// lineHash fingerprints a single line for row-level dedup across
// overlapping export periods: same date, magnitude, direction, source and
// description prefix means the same underlying booking.
func lineHash(line core.NormalizedLine) string {
	direction := "debit"
	if line.IsCredit {
		direction = "credit"
	}
	parts := []string{
		line.Date.Format("2006-01-02"),
		line.Amount.Abs().String(),
		string(line.Source),
		direction,
		clip(line.Primary, 50),
		clip(line.Secondary, 50),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
