/*
Package importer loads historical syndicate data from CSV exports.

FORMATS:
  Transactions (with header):
    Date,Player,Amount,Transaction
    11/08/2025,Alice,5.00,paid in
  Dates are DD/MM/YYYY. Transaction is one of "paid in", "placed", "won",
  "paid out". Amounts are positive; the transaction decides direction.

  Calendar (no header):
    11/08/2025,Alice,Bob
  Row n is week n, running start..start+6.

Parsing happens here; booking is done by syndicate.Service so every append
goes through the same code path as interactive actions.
*/
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
	"github.com/warp/syndicate/syndicate"
)

const csvDateLayout = "02/01/2006"

var transactionTypes = map[string]ledger.EntryType{
	"paid in":  ledger.EntryContribution,
	"placed":   ledger.EntryBetPlaced,
	"won":      ledger.EntryWinnings,
	"paid out": ledger.EntryPayout,
}

// Importer books parsed CSV files through the service.
type Importer struct {
	svc *syndicate.Service
	log log.FieldLogger
}

func New(svc *syndicate.Service, logger log.FieldLogger) *Importer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Importer{svc: svc, log: logger}
}

type TransactionOptions struct {
	SeasonName string
	StartDate  time.Time
	EndDate    *time.Time
	Activate   bool
}

// ImportTransactions parses r and imports every row in one transaction.
func (im *Importer) ImportTransactions(ctx context.Context, r io.Reader, opts TransactionOptions) (syndicate.HistoryResult, error) {
	rows, err := ParseTransactions(r)
	if err != nil {
		return syndicate.HistoryResult{}, err
	}
	im.log.WithFields(log.Fields{"season": opts.SeasonName, "rows": len(rows)}).Info("importing transactions")

	return im.svc.ImportHistory(ctx, syndicate.HistoryImport{
		SeasonName: opts.SeasonName,
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
		Activate:   opts.Activate,
		Rows:       rows,
		CreatedBy:  "import",
	})
}

// ImportCalendar parses r and imports the week rota into the season.
func (im *Importer) ImportCalendar(ctx context.Context, r io.Reader, seasonID ledger.SeasonID) (syndicate.RotaResult, error) {
	rows, err := ParseCalendar(r)
	if err != nil {
		return syndicate.RotaResult{}, err
	}
	im.log.WithFields(log.Fields{"season_id": seasonID, "weeks": len(rows)}).Info("importing calendar")

	return im.svc.ImportRota(ctx, seasonID, rows)
}

// =============================================================================
// PARSING
// =============================================================================

// ParseTransactions reads a transactions export. Rows without a date or
// player are skipped.
func ParseTransactions(r io.Reader) ([]syndicate.HistoryRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ledger.ValidationError{Field: "csv", Message: "empty file"}
	}
	if err != nil {
		return nil, &ledger.ValidationError{Field: "csv", Message: err.Error()}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"date", "player", "amount", "transaction"} {
		if _, ok := cols[required]; !ok {
			return nil, &ledger.ValidationError{Field: "csv", Message: "missing column " + required}
		}
	}

	var rows []syndicate.HistoryRow
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, lineError(line, err.Error())
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if field("date") == "" || field("player") == "" {
			continue
		}

		date, err := time.Parse(csvDateLayout, field("date"))
		if err != nil {
			return nil, lineError(line, fmt.Sprintf("invalid date %q", field("date")))
		}
		amount, err := parseAmount(field("amount"))
		if err != nil {
			return nil, lineError(line, fmt.Sprintf("invalid amount %q", field("amount")))
		}
		typ, ok := transactionTypes[strings.ToLower(field("transaction"))]
		if !ok {
			return nil, lineError(line, fmt.Sprintf("unknown transaction type %q", field("transaction")))
		}

		rows = append(rows, syndicate.HistoryRow{
			Line:   line,
			Date:   ledger.DateOf(date),
			Player: field("player"),
			Amount: amount,
			Type:   typ,
		})
	}
	return rows, nil
}

// ParseCalendar reads a rota calendar. Rows with fewer than three fields are
// skipped but still consume a week number.
func ParseCalendar(r io.Reader) ([]syndicate.RotaRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []syndicate.RotaRow
	number := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		number++
		if err != nil {
			return nil, lineError(number, err.Error())
		}
		if len(record) < 3 {
			continue
		}

		start, err := time.Parse(csvDateLayout, strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")))
		if err != nil {
			return nil, lineError(number, fmt.Sprintf("invalid date %q", record[0]))
		}
		rows = append(rows, syndicate.RotaRow{
			Number:    number,
			StartDate: ledger.DateOf(start),
			Players:   [2]string{strings.TrimSpace(record[1]), strings.TrimSpace(record[2])},
		})
	}
	return rows, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(s, "£")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(strings.TrimSpace(s))
}

func lineError(line int, msg string) error {
	return &ledger.ValidationError{Field: fmt.Sprintf("line %d", line), Message: msg}
}
