// Package aggregator wraps the account-aggregation API calls the pipeline needs:
// sandbox institution linking, token exchange and paged transaction reads.
// It holds no state between calls and never retries.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProductNotReady is the error code returned while the aggregator is still
// preparing transaction data for a freshly linked item.
const ProductNotReady = "PRODUCT_NOT_READY"

// DefaultPageSize is the largest page the transactions endpoint will return.
const DefaultPageSize = 500

// RawTransaction is a transaction as the aggregator reports it. Positive
// amounts are outflows.
type RawTransaction struct {
	ID           string
	Date         time.Time
	Amount       decimal.Decimal
	Category     []string
	MerchantName string
	Pending      bool
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the range covering the n days before end, inclusive of end.
func LastDays(end time.Time, n int) DateRange {
	end = truncateDay(end)
	return DateRange{Start: end.AddDate(0, 0, -n), End: end}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PageOptions selects one page of a transactions query.
type PageOptions struct {
	Count  int
	Offset int
}

// Client is the set of aggregator calls used by a pipeline run.
type Client interface {
	LinkSandboxInstitution(ctx context.Context, institutionID string, products []string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken string, itemID string, err error)
	GetTransactions(ctx context.Context, accessToken string, dates DateRange, page PageOptions) ([]RawTransaction, int, error)
}

// AggregatorError is a non-2xx response decoded from the aggregator's error body.
type AggregatorError struct {
	Status    int
	Type      string
	Code      string
	Message   string
	RequestID string
}

func (e *AggregatorError) Error() string {
	return fmt.Sprintf("aggregator error %s (%s): %s", e.Code, e.Type, e.Message)
}

// IsCode reports whether err is an *AggregatorError carrying code.
func IsCode(err error, code string) bool {
	var aggErr *AggregatorError
	return errors.As(err, &aggErr) && aggErr.Code == code
}
