package cli

import (
	"context"

	"txagg/internal/amqp"
	"txagg/internal/config"
	"txagg/internal/log"
	"txagg/internal/services"
)

// AMQPConfig maps the broker settings onto the client configuration.
func AMQPConfig(cfg *config.Config) amqp.Config {
	return amqp.Config{
		URL:          cfg.AMQPURL,
		ExchangeName: cfg.AMQPExchange,
		IngestQueue:  cfg.AMQPIngestQueue,
		EventsQueue:  cfg.AMQPEventsQueue,
	}
}

// IngestHandler stores every consumed batch through ingestor. A store
// failure is returned so the delivery is requeued.
func IngestHandler(ingestor *services.Ingestor, logger *log.Logger) amqp.IngestHandler {
	return func(ctx context.Context, msg *amqp.TransactionIngestedMessage) error {
		res, err := ingestor.Ingest(ctx, msg.ToTransactions())
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Ingest batch stored",
			log.FieldSource, msg.Source,
			"stored", res.Stored,
			"skipped", res.Skipped,
			"categorized", res.Categorized)
		return nil
	}
}
