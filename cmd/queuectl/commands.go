package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/models"
	"github.com/joshu-sajeev/lorequeue/internal/queue"
	"github.com/joshu-sajeev/lorequeue/internal/queueapi"
	"github.com/joshu-sajeev/lorequeue/internal/storage"
	"github.com/joshu-sajeev/lorequeue/internal/storage/sqlstore"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(_ *config.Config, backend *storage.Backend, _ queueapi.Registry, _ *slog.Logger) error {
				if backend.DB == nil {
					return errors.New("migrate needs the sqlite or postgres backend")
				}

				n, err := sqlstore.Migrate(cmd.Context(), backend.DB)
				if err != nil {
					return err
				}
				version, err := sqlstore.MigrationVersion(cmd.Context(), backend.DB)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s); schema version %d\n", n, version)
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-status item counts for each queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(_ *config.Config, _ *storage.Backend, registry queueapi.Registry, _ *slog.Logger) error {
				names, err := selectQueues(queueName)
				if err != nil {
					return err
				}

				headers := []string{"Queue"}
				aligns := []columnAlignment{alignLeft}
				for _, st := range models.AllStatuses {
					headers = append(headers, st.String())
					aligns = append(aligns, alignRight)
				}
				headers = append(headers, "total")
				aligns = append(aligns, alignRight)

				rows := make([][]string, 0, len(names))
				for _, name := range names {
					stats, err := registry[name].Stats(cmd.Context())
					if err != nil {
						return fmt.Errorf("stats %s: %w", name, err)
					}
					row := []string{name}
					for _, st := range models.AllStatuses {
						row = append(row, strconv.Itoa(stats.Counts[st]))
					}
					rows = append(rows, append(row, strconv.Itoa(stats.Total)))
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Only show this queue")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		queueName string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items of one queue in a given status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := models.ParseStatus(status)
			if err != nil {
				return err
			}

			return ctx.withBackend(cmd, func(_ *config.Config, _ *storage.Backend, registry queueapi.Registry, _ *slog.Logger) error {
				q, ok := registry[queueName]
				if !ok {
					return fmt.Errorf("unknown queue %q (allowed: %v)", queueName, config.AllowedQueues)
				}

				items, err := q.ListByStatus(cmd.Context(), st)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s items in %s\n", st, queueName)
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID.String(),
						strconv.Itoa(int(item.Priority)),
						fmt.Sprintf("%d/%d", item.Attempts, item.MaxAttempts),
						item.CorrelationKey,
						item.CreatedAt.Local().Format(timeLayout),
						formatScheduled(item.ScheduledAt),
						item.ErrorMessage,
					})
				}

				headers := []string{"ID", "Priority", "Attempts", "World", "Created", "Scheduled", "Error"}
				aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Queue name")
	cmd.Flags().StringVarP(&status, "status", "s", models.StatusPending.String(), "Item status")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var (
		retention   time.Duration
		expireAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale items and delete old finished items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cfg *config.Config, _ *storage.Backend, registry queueapi.Registry, logger *slog.Logger) error {
				policy := cfg.SweepPolicy()
				if cmd.Flags().Changed("retention") {
					policy.Retention = retention
				}
				if cmd.Flags().Changed("expire-after") {
					policy.ExpireAfter = expireAfter
				}

				results, err := queue.NewSweeper(policy, logger, registry.Sweepables()...).SweepOnce(cmd.Context())

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Queue, strconv.Itoa(r.Expired), strconv.Itoa(r.Removed)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Queue", "Expired", "Removed"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&retention, "retention", 0, "Delete completed and failed items older than this, overriding the configured retention (0 disables)")
	cmd.Flags().DurationVar(&expireAfter, "expire-after", 0, "Expire pending and delayed items older than this, overriding the configured window (0 disables)")
	return cmd
}

func selectQueues(name string) ([]string, error) {
	if name == "" {
		return config.AllowedQueues, nil
	}
	if !config.IsAllowedQueue(name) {
		return nil, fmt.Errorf("unknown queue %q (allowed: %v)", name, config.AllowedQueues)
	}
	return []string{name}, nil
}

func formatScheduled(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
