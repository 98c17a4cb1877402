package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"slangdict/api/internal/config"
	"slangdict/api/internal/ingest"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/store"
)

func main() {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:           "seed",
		Short:         "Replace the archive dictionary with terms read from JSON records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("database-url", "", "relational store connection string (env DATABASE_URL)")
	rootCmd.PersistentFlags().Int("batch-size", ingest.DefaultBatchSize, "terms per insert batch (env SEED_BATCH_SIZE)")
	_ = v.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	rootCmd.PersistentFlags().Bool("skip-self-references", false, "do not link a definition to its own term")
	_ = v.BindPFlag("seed_batch_size", rootCmd.PersistentFlags().Lookup("batch-size"))
	_ = v.BindPFlag("seed_skip_self_references", rootCmd.PersistentFlags().Lookup("skip-self-references"))

	rootCmd.AddCommand(dirCmd(v))
	rootCmd.AddCommand(s3Cmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func dirCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "dir <path>",
		Short: "Seed from a directory holding one JSON file per term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, func(config.Config) (ingest.Source, error) {
				return ingest.DirSource{Dir: args[0]}, nil
			})
		},
	}
}

func s3Cmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "s3 <bucket> [prefix]",
		Short: "Seed from the JSON objects under a bucket prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 2 {
				prefix = args[1]
			}
			return run(cmd.Context(), v, func(cfg config.Config) (ingest.Source, error) {
				return ingest.NewS3Source(ingest.S3Config{
					Endpoint:  cfg.S3Endpoint,
					AccessKey: cfg.S3AccessKey,
					SecretKey: cfg.S3SecretKey,
					UseSSL:    cfg.S3UseSSL,
				}, args[0], prefix)
			})
		},
	}
}

func run(ctx context.Context, v *viper.Viper, source func(config.Config) (ingest.Source, error)) error {
	cfg, err := config.FromViper(v)
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	src, err := source(cfg)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	opts := []ingest.Option{
		ingest.WithBatchSize(cfg.SeedBatchSize),
		ingest.WithLogger(logger),
	}
	if v.GetBool("seed_skip_self_references") {
		opts = append(opts, ingest.WithoutSelfReferences())
	}
	pipeline := ingest.New(store.NewSQLStore(db), opts...)
	report, err := pipeline.Run(ctx, src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("seed interrupted", slog.Any("report", report))
		}
		return err
	}
	return nil
}
