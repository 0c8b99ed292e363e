// Package pipeline runs the fetch, process, load and chart stages over a data
// directory. Each stage reads the previous stage's files, so any stage can be
// rerun on its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"spendlens/src/chart"
	"spendlens/src/db"
	"spendlens/src/ingest"
	"spendlens/src/logger"
	"spendlens/src/notify"
	"spendlens/src/process"
	"spendlens/src/storage"
)

const (
	StageFetch   = "fetch"
	StageProcess = "process"
	StageLoad    = "load"
	StageChart   = "chart"
)

// ErrNoFetcher is returned by Fetch when the runner has no aggregator client.
var ErrNoFetcher = errors.New("fetch stage requires aggregator credentials")

type Runner struct {
	RunID      string
	Dir        storage.Dir
	Convention process.SignConvention

	// Fetcher is nil for runs that never talk to the aggregator.
	Fetcher *ingest.Fetcher

	// OpenStore is called by the load stage only when there is data to load.
	OpenStore func(ctx context.Context) (db.TransactionStore, error)

	Notifier notify.Notifier
}

func NewRunner(dir storage.Dir, convention process.SignConvention) *Runner {
	return &Runner{
		RunID:      uuid.NewString(),
		Dir:        dir,
		Convention: convention,
		Notifier:   notify.Nop{},
	}
}

// Fetch pulls a full snapshot from the aggregator and writes it as the raw file.
func (r *Runner) Fetch(ctx context.Context) error {
	if r.Fetcher == nil {
		return ErrNoFetcher
	}
	log := logger.FromContext(ctx)

	txns, err := r.Fetcher.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}
	if err := r.Dir.WriteRawTransactions(txns); err != nil {
		return err
	}

	path := r.Dir.File(storage.RawTransactionsFile)
	log.Info().Int("count", len(txns)).Str("path", path).Msg("Saved raw transactions")
	notify.Announce(ctx, r.Notifier, notify.NewStageCompleted(r.RunID, StageFetch, len(txns), path))
	return nil
}

// Process keeps the outflows of the raw snapshot and writes them with a
// per-category summary. Without outflows both files hold only a header.
func (r *Runner) Process(ctx context.Context) error {
	log := logger.FromContext(ctx)

	raw, err := r.Dir.ReadRawTransactions()
	if err != nil {
		return err
	}

	expenses, summary := process.Clean(raw, r.Convention)
	if err := r.Dir.WriteProcessed(expenses, summary); err != nil {
		return err
	}

	if len(summary) == 0 {
		log.Info().Int("raw_count", len(raw)).Msg("No outflows found, nothing to report")
	} else {
		log.Info().
			Int("raw_count", len(raw)).
			Int("expense_count", len(expenses)).
			Int("category_count", len(summary)).
			Msg("Processed transactions")
	}

	notify.Announce(ctx, r.Notifier, notify.NewStageCompleted(r.RunID, StageProcess, len(expenses),
		r.Dir.File(storage.ExpensesFile), r.Dir.File(storage.SummaryFile)))
	return nil
}

// Load replaces the durable store's table with the cleaned expenses. An empty
// expense file leaves the store untouched.
func (r *Runner) Load(ctx context.Context) error {
	log := logger.FromContext(ctx)

	expenses, err := r.Dir.ReadExpenses()
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		log.Info().Msg("No data to load")
		return nil
	}
	if r.OpenStore == nil {
		return errors.New("load stage has no store configured")
	}

	store, err := r.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := store.ReplaceTransactions(ctx, expenses); err != nil {
		return fmt.Errorf("replace transactions: %w", err)
	}

	log.Info().Int("count", len(expenses)).Msg("Loaded transactions into store")
	notify.Announce(ctx, r.Notifier, notify.NewStageCompleted(r.RunID, StageLoad, len(expenses)))
	return nil
}

// Chart renders the category and daily charts from the processed files.
func (r *Runner) Chart(ctx context.Context) error {
	log := logger.FromContext(ctx)

	summary, err := r.Dir.ReadSummary()
	if err != nil {
		return err
	}
	expenses, err := r.Dir.ReadExpenses()
	if err != nil {
		return err
	}

	written, err := chart.RenderFiles(r.Dir, summary, process.DailyTotals(expenses))
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	if len(written) == 0 {
		log.Info().Msg("No expenses to chart, skipping")
		return nil
	}

	log.Info().Strs("files", written).Msg("Rendered charts")
	notify.Announce(ctx, r.Notifier, notify.NewStageCompleted(r.RunID, StageChart, len(summary), written...))
	return nil
}

// Run executes every stage in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageFetch, r.Fetch},
		{StageProcess, r.Process},
		{StageLoad, r.Load},
		{StageChart, r.Chart},
	}

	log := logger.FromContext(ctx)
	for _, stage := range stages {
		log.Info().Str("stage", stage.name).Msg("Starting stage")
		if err := stage.fn(ctx); err != nil {
			return fmt.Errorf("%s stage: %w", stage.name, err)
		}
	}
	return nil
}
