package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the wire and in snapshot files.
const DateLayout = "2006-01-02"

// Transaction is the canonical, normalized transaction record.
// Category is never empty after normalization.
type Transaction struct {
	ID           string          `json:"transaction_id"`
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category"`
	MerchantName string          `json:"merchant_name"`
	Pending      bool            `json:"pending"`
}

// CategoryTotal is one row of the spending summary.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// DailyTotal is the outflow total for a single calendar day.
type DailyTotal struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}
