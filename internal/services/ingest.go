// Package services holds the write-side use cases: ingesting upstream
// transactions and seeding the built-in catalog.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"txagg/internal/categorize"
	"txagg/internal/core"
	"txagg/internal/log"
	"txagg/internal/storage"
)

// IngestResult reports one ingestion batch.
type IngestResult struct {
	Stored      int      `json:"stored"`
	Skipped     int      `json:"skipped"`
	Categorized int      `json:"categorized"`
	IDs         []string `json:"ids"`
}

// Ingestor normalizes, validates and stores transactions from upstream sources.
type Ingestor struct {
	store  storage.TransactionStore
	engine categorize.Categorizer
	logger *log.Logger
	now    func() time.Time
}

// NewIngestor creates an ingestor. engine may be nil, in which case
// uncategorized records are left for the reconciler.
func NewIngestor(store storage.TransactionStore, engine categorize.Categorizer, logger *log.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		engine: engine,
		logger: logger.WithComponent(log.ComponentIngest),
		now:    time.Now,
	}
}

// Ingest stores a batch. Invalid records are skipped and counted; only a
// store failure fails the call, and then nothing from the batch is stored.
func (i *Ingestor) Ingest(ctx context.Context, txs []core.Transaction) (IngestResult, error) {
	var (
		res   IngestResult
		valid = make([]core.Transaction, 0, len(txs))
		now   = i.now()
	)

	for _, t := range txs {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		t.Normalize(now)
		if err := t.Validate(); err != nil {
			res.Skipped++
			i.logger.WarnContext(ctx, "Skipping invalid transaction",
				log.FieldTransactionID, t.ID,
				log.FieldCustomerID, t.CustomerID,
				log.FieldError, err)
			continue
		}

		if t.Category == "" && i.engine != nil {
			t.Category = i.engine.Categorize(ctx, t)
			res.Categorized++
		}
		valid = append(valid, t)
	}

	if len(valid) == 0 {
		return res, nil
	}

	if err := i.store.UpsertTransactions(ctx, valid); err != nil {
		return IngestResult{Skipped: res.Skipped}, fmt.Errorf("store %d transactions: %w", len(valid), err)
	}

	res.Stored = len(valid)
	res.IDs = make([]string, 0, len(valid))
	for _, t := range valid {
		res.IDs = append(res.IDs, t.ID)
	}

	i.logger.InfoContext(ctx, "Transactions ingested",
		log.FieldOperation, log.OpIngest,
		"stored", res.Stored,
		"skipped", res.Skipped,
		"categorized", res.Categorized)
	return res, nil
}
