// Package sheets defines the spreadsheet import port.
package sheets

import (
	"context"

	"txagg/internal/core"
)

// TransactionSource lists upstream transaction rows for a one-shot import.
type TransactionSource interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}
