package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spendlens/src/aggregator"
	"spendlens/src/api"
	"spendlens/src/config"
	"spendlens/src/db"
	"spendlens/src/ingest"
	"spendlens/src/logger"
	"spendlens/src/notify"
	"spendlens/src/pipeline"
	plaidclient "spendlens/src/plaid"
	"spendlens/src/process"
	"spendlens/src/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dataDir := fs.String("data-dir", cfg.DataDir, "directory holding the snapshot files")

	var err error
	switch cmd {
	case pipeline.StageFetch, pipeline.StageProcess, pipeline.StageLoad, pipeline.StageChart, "run":
		fs.Parse(os.Args[2:])
		cfg.SetDataDir(*dataDir)
		err = runStage(cmd, cfg, log)
	case "serve":
		fs.StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
		fs.Parse(os.Args[2:])
		cfg.SetDataDir(*dataDir)
		err = serve(cfg, log)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("spendlens: transaction snapshot pipeline")
	fmt.Println("\nUsage:")
	fmt.Println("  spendlens <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  fetch     Pull transactions from the aggregator into raw_transactions.csv")
	fmt.Println("  process   Keep outflows and write transactions.csv and spending_summary.csv")
	fmt.Println("  load      Replace the stored transactions table with transactions.csv")
	fmt.Println("  chart     Render the category and daily spending charts")
	fmt.Println("  run       Run fetch, process, load and chart in order")
	fmt.Println("  serve     Serve the latest reports over HTTP")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'spendlens <command> -h' for more information on a command.")
}

func runStage(stage string, cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	convention, err := process.ParseSignConvention(cfg.AmountSignConvention)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(storage.NewDir(cfg.DataDir), convention)
	log = log.With().Str("run_id", runner.RunID).Logger()
	ctx = logger.WithContext(ctx, log)

	if stage == pipeline.StageFetch || stage == "run" {
		// Credentials are checked before any aggregator call is made.
		if err := cfg.ValidatePlaid(); err != nil {
			return err
		}
		fetcher, err := newFetcher(cfg)
		if err != nil {
			return err
		}
		runner.Fetcher = fetcher
	}

	runner.OpenStore = func(ctx context.Context) (db.TransactionStore, error) {
		return db.Open(ctx, cfg.StoreBackend, cfg.SQLiteDBPath, cfg.DatabaseURL)
	}

	notifier, err := notify.New(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		// The stage result does not depend on the broker.
		log.Warn().Err(err).Msg("AMQP unavailable, stage notifications disabled")
		notifier = notify.Nop{}
	}
	defer notifier.Close()
	runner.Notifier = notifier

	log.Info().Str("stage", stage).Str("data_dir", cfg.DataDir).Msg("Starting")

	switch stage {
	case pipeline.StageFetch:
		err = runner.Fetch(ctx)
	case pipeline.StageProcess:
		err = runner.Process(ctx)
	case pipeline.StageLoad:
		err = runner.Load(ctx)
	case pipeline.StageChart:
		err = runner.Chart(ctx)
	default:
		err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}

	log.Info().Str("stage", stage).Msg("Completed")
	return nil
}

func newFetcher(cfg *config.Config) (*ingest.Fetcher, error) {
	plaidAPI, err := plaidclient.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv, cfg.PlaidRequestTimeout)
	if err != nil {
		return nil, err
	}

	policy := ingest.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.Delay = cfg.RetryDelay

	return ingest.NewFetcher(aggregator.NewPlaidClient(plaidAPI), ingest.Options{
		InstitutionID: cfg.PlaidInstitutionID,
		Dates:         aggregator.LastDays(time.Now(), cfg.LookbackDays),
		PageSize:      cfg.PageSize,
		Retry:         policy,
	}), nil
}

func serve(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	cache, err := db.NewReportCache()
	if err != nil {
		return err
	}
	defer cache.Close()

	router := api.NewRouter(api.Options{
		Dir:            storage.NewDir(cfg.DataDir),
		Cache:          cache,
		PasswordHash:   []byte(cfg.ReportPasswordHash),
		JWTSecret:      []byte(cfg.JWTSecret),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("Report server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down report server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
