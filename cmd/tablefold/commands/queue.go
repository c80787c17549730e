package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablefold/tablefold/cmd/tablefold/ui"
	"github.com/tablefold/tablefold/internal/config"
	"github.com/tablefold/tablefold/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the persisted job queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the jobs in the persisted queue snapshot",
	RunE:  runQueueList,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	snapshots, err := store.Open(store.Config{
		Driver:            cfg.Database.Driver,
		SQLitePath:        cfg.Database.SQLite.Path,
		SQLiteJournalMode: cfg.Database.SQLite.JournalMode,
		PostgresDSN:       cfg.Database.Postgres.DSN,
		MaxOpenConns:      cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConns:      cfg.Database.Postgres.MaxIdleConns,
		ConnMaxLifetime:   cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer snapshots.Close()

	jobs, err := snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		ui.Info("Queue is empty")
		return nil
	}

	rows := make([][]string, len(jobs))
	for i, job := range jobs {
		detail := job.ErrorDetail
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		rows[i] = []string{
			job.ID,
			job.FileName,
			string(job.Mode),
			ui.StatusString(string(job.Status)),
			job.UpdatedAt.Format(time.RFC3339),
			detail,
		}
	}

	ui.Section("Queue")
	ui.Table([]string{"ID", "File", "Mode", "Status", "Updated", "Detail"}, rows)
	return nil
}
