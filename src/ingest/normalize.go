package ingest

import (
	"strings"

	"spendlens/src/aggregator"
	"spendlens/src/models"
)

const (
	DefaultCategory = "Other"
	DefaultMerchant = "N/A"
)

// Normalize maps a raw aggregator record onto the canonical schema.
// raw must carry an id, date and amount.
func Normalize(raw aggregator.RawTransaction) models.Transaction {
	category := strings.Join(raw.Category, ", ")
	if category == "" {
		category = DefaultCategory
	}

	merchant := raw.MerchantName
	if merchant == "" {
		merchant = DefaultMerchant
	}

	return models.Transaction{
		ID:           raw.ID,
		Date:         raw.Date,
		Amount:       raw.Amount,
		Category:     category,
		MerchantName: merchant,
		Pending:      raw.Pending,
	}
}

func NormalizeAll(raw []aggregator.RawTransaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(raw))
	for _, r := range raw {
		out = append(out, Normalize(r))
	}
	return out
}
