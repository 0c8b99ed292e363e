package ingest

import (
	"context"
	"fmt"

	"spendlens/src/aggregator"
	"spendlens/src/logger"
)

// PageFetcher requests the page starting at offset.
type PageFetcher func(ctx context.Context, offset int) (Page, error)

// Assemble extends first into a complete snapshot. It requests the next page at
// offset len(accumulated) until the declared total is reached or the source
// returns an empty page. Later pages are not retried; any error aborts.
func Assemble(ctx context.Context, first Page, next PageFetcher) ([]aggregator.RawTransaction, error) {
	log := logger.FromContext(ctx)

	// Sized from what was received; the declared total is not trusted for allocation.
	accumulated := make([]aggregator.RawTransaction, 0, len(first.Records))
	seen := make(map[string]struct{}, len(first.Records))
	total := first.Total

	add := func(records []aggregator.RawTransaction) error {
		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup {
				return fmt.Errorf("duplicate transaction id %q at offset %d", rec.ID, len(accumulated))
			}
			seen[rec.ID] = struct{}{}
			accumulated = append(accumulated, rec)
		}
		return nil
	}

	if err := add(first.Records); err != nil {
		return nil, err
	}

	for len(accumulated) < total {
		offset := len(accumulated)
		log.Info().Int("offset", offset).Msg("Fetching next page of transactions")

		page, err := next(ctx, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if len(page.Records) == 0 {
			log.Warn().Int("accumulated", len(accumulated)).Int("total", total).
				Msg("No more transactions returned in pagination")
			break
		}
		if err := add(page.Records); err != nil {
			return nil, err
		}
		total = page.Total

		log.Info().Int("fetched", len(page.Records)).Int("accumulated", len(accumulated)).Msg("Fetched page")
	}

	return accumulated, nil
}
