package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"txagg/internal/core"
	"txagg/internal/log"
	ports "txagg/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config locates the transactions range.
type Config struct {
	SpreadsheetID string
	// Range in A1 notation, e.g. "Transactions!A2:H"
	Range string
	// Source is stamped on every imported row
	Source string
}

// valuesGetter reads a range of cell values.
type valuesGetter func(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)

type Client struct {
	get    valuesGetter
	config Config
	logger *log.Logger
}

// Ensure interface conformance
var _ ports.TransactionSource = (*Client)(nil)

// New creates a Sheets client authenticated with service account
// credentials from the environment.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(cfg.Range) == "" {
		return nil, errors.New("missing sheet range")
	}

	svc, err := newSheetsService(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceGetter(svc), cfg, logger), nil
}

func newClient(get valuesGetter, cfg Config, logger *log.Logger) *Client {
	return &Client{
		get:    get,
		config: cfg,
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

func serviceGetter(svc *gsheet.Service) valuesGetter {
	return func(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
		resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
}

// newSheetsService initializes a read-only Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		var err error
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.DebugContext(ctx, "Google Sheets service created",
		"credentials_size", len(credentialsJSON))
	return service, nil
}

// ListTransactions reads the configured range. Rows that cannot be parsed
// are logged and skipped.
func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if c.get == nil {
		return nil, errors.New("sheets service not initialized")
	}

	values, err := c.get(ctx, c.config.SpreadsheetID, c.config.Range)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.config.Range, err)
	}

	txs, rowErrs := parseTransactions(values, c.config.Source)
	for _, re := range rowErrs {
		c.logger.WarnContext(ctx, "Skipping unparseable sheet row",
			"row", re.Row,
			log.FieldError, re.Err)
	}

	c.logger.InfoContext(ctx, "Read transactions from sheet",
		"range", c.config.Range,
		log.FieldCount, len(txs),
		"skipped", len(rowErrs))
	return txs, nil
}
