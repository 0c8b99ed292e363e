// Package ingest turns the aggregator's paged transaction feed into one
// complete, normalized snapshot.
package ingest

import (
	"context"
	"fmt"

	"spendlens/src/aggregator"
	"spendlens/src/logger"
	"spendlens/src/models"
)

// ProductTransactions is the aggregator product the pipeline links for.
const ProductTransactions = "transactions"

type Options struct {
	InstitutionID string
	Dates         aggregator.DateRange
	PageSize      int
	Retry         RetryPolicy
}

type Fetcher struct {
	client aggregator.Client
	opts   Options
}

func NewFetcher(client aggregator.Client, opts Options) *Fetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = aggregator.DefaultPageSize
	}
	return &Fetcher{client: client, opts: opts}
}

// FetchSnapshot links the sandbox institution, exchanges the resulting public
// token and reads every transaction in the configured date range. The access
// token lives only for the duration of this call.
func (f *Fetcher) FetchSnapshot(ctx context.Context) ([]models.Transaction, error) {
	log := logger.FromContext(ctx)

	log.Info().Str("institution_id", f.opts.InstitutionID).Msg("Creating sandbox public token")
	publicToken, err := f.client.LinkSandboxInstitution(ctx, f.opts.InstitutionID, []string{ProductTransactions})
	if err != nil {
		return nil, err
	}
	log.Info().Str("public_token", logger.Token(publicToken)).Msg("Created sandbox public token")

	accessToken, itemID, err := f.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, err
	}
	log.Info().Str("access_token", logger.Token(accessToken)).Str("item_id", itemID).
		Msg("Exchanged public token for access token")

	raw, err := f.fetchAll(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(raw)).Msg("Fetched all transactions")
	return NormalizeAll(raw), nil
}

func (f *Fetcher) fetchAll(ctx context.Context, accessToken string) ([]aggregator.RawTransaction, error) {
	log := logger.FromContext(ctx)

	getPage := func(ctx context.Context, offset int) (Page, error) {
		records, total, err := f.client.GetTransactions(ctx, accessToken, f.opts.Dates, aggregator.PageOptions{
			Count:  f.opts.PageSize,
			Offset: offset,
		})
		if err != nil {
			return Page{}, err
		}
		return Page{Records: records, Total: total}, nil
	}

	log.Info().
		Str("start_date", f.opts.Dates.Start.Format(models.DateLayout)).
		Str("end_date", f.opts.Dates.End.Format(models.DateLayout)).
		Msg("Fetching transactions")

	first, err := FetchFirstPage(ctx, f.opts.Retry, func(ctx context.Context) (Page, error) {
		return getPage(ctx, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	return Assemble(ctx, first, getPage)
}
