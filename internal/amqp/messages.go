package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"txagg/internal/core"
)

// IngestedTransaction is one upstream record inside an ingest batch.
type IngestedTransaction struct {
	ID           string     `json:"id,omitempty"`
	CustomerID   string     `json:"customerId"`
	CustomerName string     `json:"customerName"`
	Amount       core.Money `json:"amount"`
	Date         time.Time  `json:"transactionDate"`
	Description  string     `json:"description"`
	Category     string     `json:"category,omitempty"`
	Source       string     `json:"source,omitempty"`
	Currency     string     `json:"currency,omitempty"`
}

// TransactionIngestedMessage carries a batch of transactions from one source.
// Records without their own source inherit Source.
type TransactionIngestedMessage struct {
	Source       string                `json:"source"`
	Transactions []IngestedTransaction `json:"transactions"`
	Timestamp    time.Time             `json:"timestamp"`
}

func NewTransactionIngestedMessage(source string, txs []IngestedTransaction) *TransactionIngestedMessage {
	return &TransactionIngestedMessage{
		Source:       source,
		Transactions: txs,
		Timestamp:    time.Now(),
	}
}

// ToTransactions converts the batch to domain transactions.
func (m *TransactionIngestedMessage) ToTransactions() []core.Transaction {
	txs := make([]core.Transaction, 0, len(m.Transactions))
	for _, in := range m.Transactions {
		source := in.Source
		if source == "" {
			source = m.Source
		}
		txs = append(txs, core.Transaction{
			ID:           in.ID,
			CustomerID:   in.CustomerID,
			CustomerName: in.CustomerName,
			Amount:       in.Amount,
			Date:         in.Date,
			Description:  in.Description,
			Category:     in.Category,
			Source:       source,
			Currency:     in.Currency,
		})
	}
	return txs
}

// ToJSON converts the message to JSON bytes
func (m *TransactionIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionIngestedMessageFromJSON decodes an ingest batch. A batch
// without transactions is rejected.
func TransactionIngestedMessageFromJSON(data []byte) (*TransactionIngestedMessage, error) {
	var msg TransactionIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Transactions) == 0 {
		return nil, fmt.Errorf("ingest message has no transactions")
	}
	return &msg, nil
}

// TransactionsCategorizedMessage announces one persisted reconciliation batch.
type TransactionsCategorizedMessage struct {
	Changes   []core.CategoryChange `json:"changes"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewTransactionsCategorizedMessage(changes []core.CategoryChange) *TransactionsCategorizedMessage {
	return &TransactionsCategorizedMessage{
		Changes:   changes,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsCategorizedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionsCategorizedMessageFromJSON(data []byte) (*TransactionsCategorizedMessage, error) {
	var msg TransactionsCategorizedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
