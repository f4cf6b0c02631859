package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"lucid/internal/core"
)

// BankExtractor parses UBS-style bank account CSV exports: semicolon
// separated, UTF-8 with BOM, a metadata preamble before the header row,
// separate signed debit and credit columns, and up to three description
// columns.
type BankExtractor struct{}

const bankHeaderCell = "trade date"

var bankDateFormats = []string{"2006-01-02", "02.01.2006"}

func (e *BankExtractor) Source() core.Source { return core.SourceBank }

func (e *BankExtractor) Extract(data []byte) (Batch, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Batch{}, fmt.Errorf("reading bank CSV: %w", err)
	}

	// The export carries account metadata rows before the real header.
	start := -1
	for i, rec := range records {
		if len(rec) > 0 && strings.ToLower(strings.TrimSpace(rec[0])) == bankHeaderCell {
			start = i
			break
		}
	}
	if start < 0 {
		return Batch{}, fmt.Errorf("bank CSV: header row with %q not found", bankHeaderCell)
	}

	idx := headerIndex(records[start])
	var batch Batch
	for _, rec := range records[start+1:] {
		line, ok := e.parseRow(rec, idx)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Lines = append(batch.Lines, line)
	}
	return batch, nil
}

func (e *BankExtractor) parseRow(rec []string, idx map[string]int) (core.NormalizedLine, bool) {
	dateStr := field(rec, idx, "trade date")
	if dateStr == "" {
		return core.NormalizedLine{}, false
	}
	date, ok := parseBankDate(dateStr)
	if !ok {
		return core.NormalizedLine{}, false
	}

	// Credits are positive in the credit column, debits negative in the
	// debit column. Anything else is not a bookable row.
	var amount core.Money
	var isCredit bool
	if credit, err := core.ParseMoney(field(rec, idx, "credit")); err == nil && credit.Cents > 0 {
		amount = credit
		isCredit = true
	} else if debit, err := core.ParseMoney(field(rec, idx, "debit")); err == nil && debit.Cents < 0 {
		amount = debit.Abs()
	} else {
		return core.NormalizedLine{}, false
	}

	var secondary []string
	for _, col := range []string{"description2", "description3"} {
		if v := field(rec, idx, col); v != "" {
			secondary = append(secondary, v)
		}
	}

	return core.NormalizedLine{
		Date:      date,
		Primary:   field(rec, idx, "description1"),
		Secondary: strings.Join(secondary, " | "),
		Amount:    amount,
		IsCredit:  isCredit,
		Source:    core.SourceBank,
	}, true
}

func parseBankDate(s string) (time.Time, bool) {
	for _, layout := range bankDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
