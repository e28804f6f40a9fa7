package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"txagg/internal/core"
)

type transactionDoc struct {
	ID           string     `bson:"_id"`
	CustomerID   string     `bson:"customer_id"`
	CustomerName string     `bson:"customer_name"`
	AmountCents  int64      `bson:"amount_cents"`
	Date         time.Time  `bson:"transaction_date"`
	Description  string     `bson:"description"`
	Category     string     `bson:"category"`
	Source       string     `bson:"source"`
	Currency     string     `bson:"currency"`
	Type         string     `bson:"type"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    *time.Time `bson:"updated_at,omitempty"`
	IsDeleted    bool       `bson:"is_deleted"`
}

func fromTransaction(t core.Transaction) transactionDoc {
	return transactionDoc{
		ID:           t.ID,
		CustomerID:   t.CustomerID,
		CustomerName: t.CustomerName,
		AmountCents:  t.Amount.Cents,
		Date:         t.Date.UTC(),
		Description:  t.Description,
		Category:     t.Category,
		Source:       t.Source,
		Currency:     t.Currency,
		Type:         string(t.Type),
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt,
		IsDeleted:    t.IsDeleted,
	}
}

// mutableFields lists every field an upsert may overwrite.
func (d transactionDoc) mutableFields() bson.D {
	return bson.D{
		{Key: "customer_id", Value: d.CustomerID},
		{Key: "customer_name", Value: d.CustomerName},
		{Key: "amount_cents", Value: d.AmountCents},
		{Key: "transaction_date", Value: d.Date},
		{Key: "description", Value: d.Description},
		{Key: "category", Value: d.Category},
		{Key: "source", Value: d.Source},
		{Key: "currency", Value: d.Currency},
		{Key: "type", Value: d.Type},
		{Key: "updated_at", Value: d.UpdatedAt},
		{Key: "is_deleted", Value: d.IsDeleted},
	}
}

func (d transactionDoc) toTransaction() core.Transaction {
	t := core.Transaction{
		ID:           d.ID,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		Amount:       core.Money{Cents: d.AmountCents},
		Date:         d.Date.UTC(),
		Description:  d.Description,
		Category:     d.Category,
		Source:       d.Source,
		Currency:     d.Currency,
		Type:         core.TransactionType(d.Type),
		CreatedAt:    d.CreatedAt.UTC(),
		IsDeleted:    d.IsDeleted,
	}
	if d.UpdatedAt != nil {
		u := d.UpdatedAt.UTC()
		t.UpdatedAt = &u
	}
	return t
}

type ruleDoc struct {
	ID           string    `bson:"_id"`
	CategoryID   string    `bson:"category_id"`
	CategoryName string    `bson:"category_name"`
	Keyword      string    `bson:"keyword"`
	Priority     int       `bson:"priority"`
	CreatedAt    time.Time `bson:"created_at"`
	IsDeleted    bool      `bson:"is_deleted"`
}

type categoryDoc struct {
	ID          string   `bson:"_id"`
	Name        string   `bson:"name"`
	Description string   `bson:"description"`
	Keywords    []string `bson:"keywords"`
	IsDeleted   bool     `bson:"is_deleted"`
}
