// Package storage defines the persistence ports and the SQLite backend.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"txagg/internal/core"
	"txagg/internal/log"

	_ "modernc.org/sqlite"
)

const transactionColumns = `id, customer_id, customer_name, amount_cents, transaction_date,
	description, category, source, currency, type, created_at, updated_at, is_deleted`

// SQLiteRepository is the SQLite implementation of Store.
type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// SQLite allows a single writer; serialize on one connection
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return Fail("ping", err)
	}
	return nil
}

func (r *SQLiteRepository) QueryTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter, p core.PageRequest) (core.Page[core.Transaction], error) {
	p = p.Normalize()

	total, err := r.CountTransactions(ctx, vis, f)
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}

	where, args := whereClause(vis, f)
	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY transaction_date DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, p.PageSize, p.Offset())

	txs, err := r.selectTransactions(ctx, query, args...)
	if err != nil {
		return core.Page[core.Transaction]{}, Fail("query transactions", err)
	}
	return core.NewPage(txs, p, total), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := whereClause(vis, f)
	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY transaction_date DESC, id ASC"

	txs, err := r.selectTransactions(ctx, query, args...)
	if err != nil {
		return nil, Fail("list transactions", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, vis core.Visibility, f core.TransactionFilter) (int, error) {
	where, args := whereClause(vis, f)

	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&n); err != nil {
		return 0, Fail("count transactions", err)
	}
	return n, nil
}

func (r *SQLiteRepository) UpsertTransactions(ctx context.Context, txs []core.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				customer_id = excluded.customer_id,
				customer_name = excluded.customer_name,
				amount_cents = excluded.amount_cents,
				transaction_date = excluded.transaction_date,
				description = excluded.description,
				category = excluded.category,
				source = excluded.source,
				currency = excluded.currency,
				type = excluded.type,
				updated_at = excluded.updated_at,
				is_deleted = excluded.is_deleted`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range txs {
			var updated sql.NullInt64
			if t.UpdatedAt != nil {
				updated = sql.NullInt64{Int64: t.UpdatedAt.UTC().UnixNano(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				t.ID, t.CustomerID, t.CustomerName, t.Amount.Cents, t.Date.UTC().UnixNano(),
				t.Description, t.Category, t.Source, t.Currency, string(t.Type),
				t.CreatedAt.UTC().UnixNano(), updated, t.IsDeleted,
			); err != nil {
				return fmt.Errorf("transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Fail("upsert transactions", err)
	}

	r.logger.DebugContext(ctx, "Transactions upserted", log.FieldCount, len(txs))
	return nil
}

func (r *SQLiteRepository) UpdateCategories(ctx context.Context, changes []core.CategoryChange, at time.Time) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	updated := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE transactions SET category = ?, updated_at = ?
			WHERE id = ? AND category = ? AND is_deleted = 0`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		stamp := at.UTC().UnixNano()
		for _, c := range changes {
			res, err := stmt.ExecContext(ctx, c.Category, stamp, c.TransactionID, c.Previous)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", c.TransactionID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, Fail("update categories", err)
	}

	r.logger.DebugContext(ctx, "Transaction categories updated",
		log.FieldCount, updated,
		"requested", len(changes))
	return updated, nil
}

func (r *SQLiteRepository) selectTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		var (
			t             core.Transaction
			date, created int64
			updated       sql.NullInt64
			txType        string
		)
		if err := rows.Scan(
			&t.ID, &t.CustomerID, &t.CustomerName, &t.Amount.Cents, &date,
			&t.Description, &t.Category, &t.Source, &t.Currency, &txType,
			&created, &updated, &t.IsDeleted,
		); err != nil {
			return nil, err
		}
		t.Date = fromNanos(date)
		t.CreatedAt = fromNanos(created)
		t.Type = core.TransactionType(txType)
		if updated.Valid {
			u := fromNanos(updated.Int64)
			t.UpdatedAt = &u
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) ListRules(ctx context.Context, vis core.Visibility) ([]core.CategoryRule, error) {
	query := `SELECT id, category_id, category_name, keyword, priority, created_at, is_deleted
		FROM category_rules`
	if vis == core.ExcludeDeleted {
		query += " WHERE is_deleted = 0"
	}
	query += " ORDER BY priority DESC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, Fail("list rules", err)
	}
	defer rows.Close()

	rules := []core.CategoryRule{}
	for rows.Next() {
		var (
			rule    core.CategoryRule
			created int64
		)
		if err := rows.Scan(&rule.ID, &rule.CategoryID, &rule.CategoryName, &rule.Keyword,
			&rule.Priority, &created, &rule.IsDeleted); err != nil {
			return nil, Fail("list rules", err)
		}
		rule.CreatedAt = fromNanos(created)
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, Fail("list rules", err)
	}
	return rules, nil
}

func (r *SQLiteRepository) UpsertRules(ctx context.Context, rules []core.CategoryRule) error {
	if len(rules) == 0 {
		return nil
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO category_rules
			(id, category_id, category_name, keyword, priority, created_at, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category_id = excluded.category_id,
				category_name = excluded.category_name,
				keyword = excluded.keyword,
				priority = excluded.priority,
				is_deleted = excluded.is_deleted`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rule := range rules {
			if _, err := stmt.ExecContext(ctx, rule.ID, rule.CategoryID, rule.CategoryName,
				rule.Keyword, rule.Priority, rule.CreatedAt.UTC().UnixNano(), rule.IsDeleted); err != nil {
				return fmt.Errorf("rule %s: %w", rule.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Fail("upsert rules", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, vis core.Visibility) ([]core.Category, error) {
	query := "SELECT id, name, description, keywords, is_deleted FROM categories"
	if vis == core.ExcludeDeleted {
		query += " WHERE is_deleted = 0"
	}
	query += " ORDER BY name ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, Fail("list categories", err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		var (
			c        core.Category
			keywords string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &keywords, &c.IsDeleted); err != nil {
			return nil, Fail("list categories", err)
		}
		if err := json.Unmarshal([]byte(keywords), &c.Keywords); err != nil {
			return nil, Fail("list categories", fmt.Errorf("category %s keywords: %w", c.ID, err))
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Fail("list categories", err)
	}
	return cats, nil
}

func (r *SQLiteRepository) UpsertCategories(ctx context.Context, cats []core.Category) error {
	if len(cats) == 0 {
		return nil
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO categories (id, name, description, keywords, is_deleted)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				keywords = excluded.keywords,
				is_deleted = excluded.is_deleted`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range cats {
			keywords := c.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			encoded, err := json.Marshal(keywords)
			if err != nil {
				return fmt.Errorf("category %s keywords: %w", c.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Description, string(encoded), c.IsDeleted); err != nil {
				return fmt.Errorf("category %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Fail("upsert categories", err)
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
