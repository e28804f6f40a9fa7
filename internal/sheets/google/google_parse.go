package google

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"txagg/internal/core"
)

// Column layout of the transactions range.
const (
	colDate = iota
	colCustomerID
	colCustomerName
	colDescription
	colAmount
	colCurrency
	colCategory
	colID
	minColumns = colAmount + 1
)

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "02/01/2006"}

// rowError reports one skipped row; Row is 1-based within the range.
type rowError struct {
	Row int
	Err error
}

// parseTransactions converts a values matrix (as returned by Sheets API)
// into transactions. A first row whose date cell does not parse is treated
// as a header. Blank rows are ignored silently.
func parseTransactions(values [][]interface{}, source string) ([]core.Transaction, []rowError) {
	var (
		txs  []core.Transaction
		errs []rowError
	)
	for i, raw := range values {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		t, err := parseRow(row, source)
		if err != nil {
			if i == 0 && errors.Is(err, errBadDate) {
				continue
			}
			errs = append(errs, rowError{Row: i + 1, Err: err})
			continue
		}
		txs = append(txs, t)
	}
	return txs, errs
}

var errBadDate = errors.New("invalid date")

func parseRow(row []string, source string) (core.Transaction, error) {
	if len(row) < minColumns {
		return core.Transaction{}, fmt.Errorf("expected at least %d columns, got %d", minColumns, len(row))
	}

	date, err := parseDate(row[colDate])
	if err != nil {
		return core.Transaction{}, err
	}

	amount, err := core.ParseAmount(cleanAmount(row[colAmount]))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", row[colAmount], err)
	}

	return core.Transaction{
		ID:           safeGet(row, colID),
		CustomerID:   row[colCustomerID],
		CustomerName: row[colCustomerName],
		Description:  row[colDescription],
		Amount:       amount,
		Date:         date,
		Currency:     safeGet(row, colCurrency),
		Category:     safeGet(row, colCategory),
		Source:       source,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadDate, s)
}

// cleanAmount drops thousands separators and a leading currency symbol.
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "R")
	if strings.Count(s, ",") > 0 && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
