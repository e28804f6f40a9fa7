package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath  string
	MongoURI      string
	MongoDatabase string

	// AMQP (optional)
	AMQPURL         string
	AMQPExchange    string
	AMQPIngestQueue string
	AMQPEventsQueue string
	// IngestInProcess makes txagg itself consume the ingest queue, sharing
	// its store with the reconciler and the read API.
	IngestInProcess bool

	// Seeding
	AutoSeed bool

	// Reconciliation worker
	ReconcileInterval     time.Duration
	ReconcileBackoff      time.Duration
	ReconcileInitialDelay time.Duration
	ReconcileBatchSize    int
	RuleRefreshInterval   time.Duration

	// Google Sheets import (optional)
	GoogleSpreadsheetID string
	GoogleSheetRange    string
	GoogleSheetSource   string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/txagg.db"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "txagg"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "txagg"),
		AMQPIngestQueue: getEnv("AMQP_INGEST_QUEUE", "transactions.ingest"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "transactions.categorized"),
		IngestInProcess: getEnvBool("INGEST_IN_PROCESS", true),

		AutoSeed: getEnvBool("AUTO_SEED", true),

		ReconcileInterval:     getEnvDuration("RECONCILE_INTERVAL", 15*time.Minute),
		ReconcileBackoff:      getEnvDuration("RECONCILE_BACKOFF", time.Minute),
		ReconcileInitialDelay: getEnvDuration("RECONCILE_INITIAL_DELAY", time.Minute),
		ReconcileBatchSize:    getEnvInt("RECONCILE_BATCH_SIZE", 100),
		RuleRefreshInterval:   getEnvDuration("RULE_REFRESH_INTERVAL", time.Minute),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:    getEnv("GOOGLE_SHEET_RANGE", "Transactions!A2:H"),
		GoogleSheetSource:   getEnv("GOOGLE_SHEET_SOURCE", "Spreadsheet"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ConsumeInProcess reports whether txagg runs the ingest consumer itself.
func (c *Config) ConsumeInProcess() bool {
	return c.AMQPEnabled() && c.IngestInProcess
}

// ValidateStandaloneIngest checks the settings a separate txagg-ingest
// process needs. Its writes must reach a store the API process also reads,
// so the in-process memory backend is rejected.
func (c *Config) ValidateStandaloneIngest() error {
	if c.DataBackend == "memory" {
		return fmt.Errorf("txagg-ingest needs a shared data backend (sqlite or mongo), got '%s'; "+
			"with the memory backend let txagg consume the ingest queue (INGEST_IN_PROCESS=true)", c.DataBackend)
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "mongo"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "mongo":
		if parsedURL, err := url.Parse(c.MongoURI); err != nil || c.MongoURI == "" {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URI '%s'", c.MongoURI))
		} else if parsedURL.Scheme != "mongodb" && parsedURL.Scheme != "mongodb+srv" {
			errors = append(errors, fmt.Sprintf("invalid MongoDB URI scheme '%s': must be 'mongodb' or 'mongodb+srv'", parsedURL.Scheme))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MongoDB database name cannot be empty when using mongo backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPIngestQueue == "" || c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	// Validate worker configuration
	if c.ReconcileBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid reconcile batch size %d: must be at least 1", c.ReconcileBatchSize))
	} else if c.ReconcileBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid reconcile batch size %d: must be at most 1000", c.ReconcileBatchSize))
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if c.ReconcileBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("invalid reconcile backoff %v: must be positive", c.ReconcileBackoff))
	}
	if c.ReconcileInitialDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid reconcile initial delay %v: must not be negative", c.ReconcileInitialDelay))
	}
	if c.RuleRefreshInterval <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rule refresh interval %v: must be positive", c.RuleRefreshInterval))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
