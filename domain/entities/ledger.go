package entities

import "github.com/shopspring/decimal"

// LedgerLeg is one side (credit or debit) of a balance adjustment.
// It is produced per call and never retained.
type LedgerLeg struct {
	Amount  decimal.Decimal
	Account string `validate:"required,account"`
}

// QueryResult is the parsed form of a balance lookup result blob.
// Only the first row is consulted.
type QueryResult struct {
	Results []BalanceRow `json:"results"`
}

// BalanceRow is a single row of a balance lookup. The balance is carried as
// a decimal string so that no precision is lost in transit.
type BalanceRow struct {
	Balance string `json:"balance"`
}
