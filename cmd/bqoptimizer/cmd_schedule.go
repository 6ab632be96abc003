// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/config"
	"github.com/cloudact/bqoptimizer/internal/log"
	"github.com/cloudact/bqoptimizer/pkg/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the optimizer periodically on a cron schedule",
	Long: `Run "run" or "suggest" on the cron expression in schedule.cron until
interrupted. A run still going when the next one is due is skipped. Run
history is kept in a SQLite database under the data directory.`,
	RunE: runSchedule,
}

var scheduleHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scheduled runs",
	RunE:  runScheduleHistory,
}

func init() {
	f := scheduleCmd.PersistentFlags()
	f.String("cron", "0 6 * * *", "Cron expression (five fields or a descriptor such as @daily)")
	f.String("command", "run", "Command to schedule (run, suggest)")
	f.String("history-db", filepath.Join(config.DataDir(), "schedule.db"), "Run history database")
	scheduleCmd.Flags().Bool("run-now", false, "Run once immediately before waiting for the schedule")
	scheduleHistoryCmd.Flags().Int("limit", 20, "Runs to show")

	_ = viper.BindPFlag("schedule.cron", f.Lookup("cron"))
	_ = viper.BindPFlag("schedule.command", f.Lookup("command"))

	scheduleCmd.AddCommand(scheduleHistoryCmd)
}

func openHistory(cmd *cobra.Command) (*scheduler.Store, error) {
	path, _ := cmd.Flags().GetString("history-db")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	return scheduler.NewStore(cmd.Context(), path, logger)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := scheduledJob(cfg)
	if err != nil {
		return err
	}

	s := scheduler.New(scheduler.Config{Store: store, Logger: logger})
	name := cfg.Schedule.Command
	if err := s.Add(name, cfg.Schedule.Cron, job); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
		if _, err := s.RunNow(ctx, name); err != nil {
			logger.Error("Immediate run failed", zap.Error(err))
		}
	}

	s.Start()
	logger.Info("Scheduler running",
		zap.String("job", name),
		zap.String("cron", cfg.Schedule.Cron),
		zap.Time("next_run", s.Next(name)))
	<-ctx.Done()

	shutdown, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(shutdown)
}

// scheduledJob builds a fresh pipeline per run so clients do not outlive it.
func scheduledJob(c *config.Config) (scheduler.JobFunc, error) {
	switch c.Schedule.Command {
	case "", "run":
		return func(ctx context.Context) error {
			p, d, err := newRunPipeline(ctx, c)
			if err != nil {
				return err
			}
			defer d.close()
			_, err = p.Run(ctx)
			return err
		}, nil
	case "suggest":
		return func(ctx context.Context) error {
			p, d, err := newSuggestPipeline(ctx, c, "")
			if err != nil {
				return err
			}
			defer d.close()
			_, err = p.Suggest(ctx)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("cannot schedule %q (must be run or suggest)", c.Schedule.Command)
	}
}

func runScheduleHistory(cmd *cobra.Command, _ []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	job := cfg.Schedule.Command
	if job == "" {
		job = "run"
	}
	runs, err := store.History(cmd.Context(), job, limit)
	if err != nil {
		return err
	}
	stats, err := store.Stats(cmd.Context(), job)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s: %d runs (%d succeeded, %d failed, %d skipped)\n",
		job, stats.Total, stats.Succeeded, stats.Failed, stats.Skipped)
	for _, r := range runs {
		line := fmt.Sprintf("  %s  %-8s %6dms", r.StartedAt.Format(time.RFC3339), r.Status, r.DurationMs)
		if r.Error != "" {
			line += "  " + r.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
