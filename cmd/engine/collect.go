package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/config"
	"jobcollect-engine/internal/scheduler"
	"jobcollect-engine/internal/store"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	collectMax        int
	collectEvery      time.Duration
	collectStrategies []string
)

var collectCmd = &cobra.Command{
	Use:   "collect [--max N] [--every 1h] [--strategy api,sitemap,walk]",
	Short: "Runs the collection strategies until the result quota is met.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		if collectMax > 0 {
			cfg.Collect.MaxResults = collectMax
		}
		if len(collectStrategies) > 0 {
			cfg.Collect.Strategies = collectStrategies
			if err := config.Validate(cfg); err != nil {
				return err
			}
		}
		log := newLogger(cfg)

		lock := flock.New(filepath.Join(cfg.App.DataDir, "engine.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("lock data dir: %w", err)
		}
		if !locked {
			return errors.New("another collect run holds the data dir lock")
		}
		defer func() { _ = lock.Unlock() }()

		db, err := store.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		client, err := newClient(cfg, log)
		if err != nil {
			return err
		}
		strategies, err := buildStrategies(cfg, client, log)
		if err != nil {
			return err
		}
		orch := collect.NewOrchestrator(log, strategies...)

		run := func(ctx context.Context) error {
			runID := uuid.NewString()
			st := collect.NewState(runID, cfg.Collect.MaxResults, store.NewSink(db.Pool, runID))
			rep := orch.Run(ctx, st)
			rep.Render(cmd.OutOrStdout())

			if cfg.Output.RetentionDays > 0 {
				n, err := store.CleanupOldJobs(ctx, db.Pool, cfg.Retention())
				if err != nil {
					return err
				}
				if n > 0 {
					log.WithFields(logrus.Fields{"deleted": n, "retention_days": cfg.Output.RetentionDays}).Info("old jobs removed")
				}
			}
			return ctx.Err()
		}

		if collectEvery <= 0 {
			return run(cmd.Context())
		}
		log.WithField("every", collectEvery).Info("repeating collection")
		scheduler.Every(cmd.Context(), collectEvery, log, run)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVar(&collectMax, "max", 0, "Result quota for the run (overrides collect.max_results).")
	collectCmd.Flags().DurationVar(&collectEvery, "every", 0, "Repeat the run on this interval until interrupted.")
	collectCmd.Flags().StringSliceVar(&collectStrategies, "strategy", nil, "Strategies to run, in order (overrides collect.strategies).")
	rootCmd.AddCommand(collectCmd)
}
