package core

import "time"

// CategoryBreakdown aggregates the transactions sharing one category value.
type CategoryBreakdown struct {
	Name          string `json:"categoryName"`
	TotalAmount   Money  `json:"totalAmount"`
	Count         int    `json:"transactionCount"`
	AverageAmount Money  `json:"averageAmount"`
}

type CategorySummary struct {
	Breakdowns        []CategoryBreakdown `json:"categoryBreakdowns"`
	TotalAmount       Money               `json:"totalAmount"`
	TotalTransactions int                 `json:"totalTransactions"`
}

// SourceBreakdown aggregates the transactions of one upstream source.
// Percentage is the share of the transaction count, in 0..100.
type SourceBreakdown struct {
	Name        string  `json:"sourceName"`
	Count       int     `json:"transactionCount"`
	TotalAmount Money   `json:"totalAmount"`
	Percentage  float64 `json:"percentage"`
}

type SourceSummary struct {
	Breakdowns        []SourceBreakdown `json:"sourceBreakdowns"`
	TotalTransactions int               `json:"totalTransactions"`
}

type CategoryTotal struct {
	Name  string `json:"categoryName"`
	Total Money  `json:"total"`
	Count int    `json:"count"`
}

type CustomerSummary struct {
	CustomerID       string          `json:"customerId"`
	CustomerName     string          `json:"customerName"`
	TotalAmount      Money           `json:"totalAmount"`
	TransactionCount int             `json:"transactionCount"`
	AverageAmount    Money           `json:"averageTransactionAmount"`
	FirstDate        time.Time       `json:"firstTransactionDate"`
	LastDate         time.Time       `json:"lastTransactionDate"`
	Sources          []string        `json:"sources"`
	Categories       []CategoryTotal `json:"categories"`
}

// CategoryChange records one reconciliation update.
type CategoryChange struct {
	TransactionID string `json:"transactionId"`
	Previous      string `json:"previous"`
	Category      string `json:"category"`
}
