package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"lucid/internal/core"
)

// CardExtractor parses credit-card invoice CSV exports: semicolon
// separated, latin1 encoded, a "sep=;" preamble line, DD.MM.YYYY purchase
// dates, and expenses as positive amounts with refunds in a credit column.
type CardExtractor struct{}

const cardDateFormat = "02.01.2006"

func (e *CardExtractor) Source() core.Source { return core.SourceCreditCard }

func (e *CardExtractor) Extract(data []byte) (Batch, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return Batch{}, fmt.Errorf("decoding card CSV: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(decoded))
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Batch{}, fmt.Errorf("reading card CSV: %w", err)
	}

	// Skip the "sep=;" hint line when present.
	if len(records) > 0 && len(records[0]) > 0 && strings.HasPrefix(strings.ToLower(records[0][0]), "sep=") {
		records = records[1:]
	}
	if len(records) == 0 {
		return Batch{}, nil
	}

	idx := headerIndex(records[0])
	var batch Batch
	for _, rec := range records[1:] {
		line, ok := e.parseRow(rec, idx)
		if !ok {
			batch.Skipped++
			continue
		}
		batch.Lines = append(batch.Lines, line)
	}
	return batch, nil
}

func (e *CardExtractor) parseRow(rec []string, idx map[string]int) (core.NormalizedLine, bool) {
	dateStr := field(rec, idx, "purchase date")
	if dateStr == "" {
		return core.NormalizedLine{}, false
	}
	date, err := time.Parse(cardDateFormat, dateStr)
	if err != nil {
		return core.NormalizedLine{}, false
	}

	// A positive credit column means a payment or refund to the card;
	// otherwise the amount column holds the expense.
	var amount core.Money
	var isCredit bool
	if credit, err := core.ParseMoney(field(rec, idx, "credit")); err == nil && credit.Cents > 0 {
		amount = credit
		isCredit = true
	} else if a, err := core.ParseMoney(field(rec, idx, "amount")); err == nil && a.Cents != 0 {
		amount = a.Abs()
	} else {
		return core.NormalizedLine{}, false
	}

	return core.NormalizedLine{
		Date:      date,
		Primary:   field(rec, idx, "sector"),
		Secondary: field(rec, idx, "booking text"),
		Amount:    amount,
		IsCredit:  isCredit,
		Source:    core.SourceCreditCard,
	}, true
}
