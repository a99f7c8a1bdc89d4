package domain

import "time"

// TransactionType classifies a completed cycle's receipt.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionSale     TransactionType = "sale"
	TransactionRental   TransactionType = "rental"
)

// Transaction is an immutable receipt of a completed cycle. It is created once
// when the cycle closes and is read-only thereafter.
type Transaction struct {
	ID              string
	PropertyID      string
	CycleID         string
	CycleType       CycleType
	Type            TransactionType
	CounterpartID   string
	CounterpartName string
	Amount          float64
	Commission      float64
	Date            time.Time
	Status          string
	CreatedAt       time.Time
}

// TransactionStatusCompleted is the only status a receipt is written with;
// receipts are never amended.
const TransactionStatusCompleted = "completed"
