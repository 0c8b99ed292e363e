// Package process filters a transaction snapshot down to outflows and
// summarizes spending by category.
package process

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/src/models"
)

// SignConvention says which sign an aggregator uses for money leaving the account.
type SignConvention string

const (
	// OutflowPositive is the Plaid convention: purchases are positive, credits negative.
	OutflowPositive SignConvention = "outflow_positive"
	OutflowNegative SignConvention = "outflow_negative"
)

func ParseSignConvention(s string) (SignConvention, error) {
	switch c := SignConvention(s); c {
	case OutflowPositive, OutflowNegative:
		return c, nil
	default:
		return "", fmt.Errorf("unknown sign convention %q", s)
	}
}

// IsOutflow reports whether amount is money leaving the account. Zero is never an outflow.
func (c SignConvention) IsOutflow(amount decimal.Decimal) bool {
	if c == OutflowNegative {
		return amount.IsNegative()
	}
	return amount.IsPositive()
}

// Clean keeps the outflow transactions and sums them per category, largest
// first. Categories with equal totals keep the order in which they first
// appear in txns. When nothing is an outflow, expenses is empty and summary is nil.
func Clean(txns []models.Transaction, convention SignConvention) ([]models.Transaction, []models.CategoryTotal) {
	expenses := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		if convention.IsOutflow(t.Amount) {
			expenses = append(expenses, t)
		}
	}

	if len(expenses) == 0 {
		return expenses, nil
	}

	return expenses, Summarize(expenses)
}

// Summarize groups txns by category and sorts the totals by magnitude,
// largest first, so either sign convention ranks the biggest spending on top.
func Summarize(txns []models.Transaction) []models.CategoryTotal {
	index := make(map[string]int)
	var summary []models.CategoryTotal

	for _, t := range txns {
		i, ok := index[t.Category]
		if !ok {
			i = len(summary)
			index[t.Category] = i
			summary = append(summary, models.CategoryTotal{Category: t.Category, Amount: decimal.Zero})
		}
		summary[i].Amount = summary[i].Amount.Add(t.Amount)
	}

	sort.SliceStable(summary, func(i, j int) bool {
		return summary[i].Amount.Abs().GreaterThan(summary[j].Amount.Abs())
	})
	return summary
}

// DailyTotals sums txns per calendar day, oldest first.
func DailyTotals(txns []models.Transaction) []models.DailyTotal {
	byDay := make(map[time.Time]decimal.Decimal)
	for _, t := range txns {
		y, m, d := t.Date.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		byDay[day] = byDay[day].Add(t.Amount)
	}

	out := make([]models.DailyTotal, 0, len(byDay))
	for day, amount := range byDay {
		out = append(out, models.DailyTotal{Date: day, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
