package ingest

import (
	"context"
	"time"

	"spendlens/src/aggregator"
	"spendlens/src/logger"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy governs retries of the first transactions call.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       Sleeper
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Delay:       10 * time.Second,
		Sleep:       SleepContext,
	}
}

// Page is one transactions response.
type Page struct {
	Records []aggregator.RawTransaction
	Total   int
}

// FetchFirstPage calls fetch until it succeeds, retrying only while the
// aggregator reports PRODUCT_NOT_READY and attempts remain. Any other error,
// or the last PRODUCT_NOT_READY once the budget is spent, is returned unchanged.
func FetchFirstPage(ctx context.Context, policy RetryPolicy, fetch func(ctx context.Context) (Page, error)) (Page, error) {
	log := logger.FromContext(ctx)

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		page, err := fetch(ctx)
		if err == nil {
			log.Info().Int("attempt", attempt).Int("records", len(page.Records)).Int("total", page.Total).
				Msg("Fetched initial batch of transactions")
			return page, nil
		}

		if !aggregator.IsCode(err, aggregator.ProductNotReady) || attempt >= attempts {
			return Page{}, err
		}

		log.Warn().Int("attempt", attempt).Int("max_attempts", attempts).Dur("delay", policy.Delay).
			Msg("Transactions not ready yet, retrying")
		if err := sleep(ctx, policy.Delay); err != nil {
			return Page{}, err
		}
	}
}
