package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"content-planner/internal/app"
	"content-planner/internal/domain"
	"content-planner/internal/infra/config"
	logpkg "content-planner/internal/infra/log"
	"content-planner/internal/usecase/generation"
)

var now = time.Now

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Operator tool for the weekly content planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(weekCmd())
	root.AddCommand(companiesCmd())
	root.AddCommand(generateCmd())
	root.AddCommand(enqueueCmd())
	return root
}

func weekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Print the Monday of the week the next generation targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tz, _ := cmd.Flags().GetString("tz")
			if tz == "" {
				tz = config.Load().TZ
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("unknown time zone %q: %w", tz, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), generation.NextWeek(now().In(loc)))
			return nil
		},
	}
	cmd.Flags().String("tz", "", "IANA time zone (defaults to TZ from the environment)")
	return cmd
}

func companiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List registered companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, deps *app.App) error {
				list, err := deps.Companies.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, c := range list {
					fmt.Fprintf(out, "%s\t%s\t%s\t%d/week\t%s\n", c.ID, c.Name, c.Niche, c.PostsPerWeek, c.City)
				}
				return nil
			})
		},
	}
}

func generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [company-id]",
		Short: "Generate next week's posts for a company and wait for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, deps *app.App) error {
				result, err := deps.Generation.Generate(ctx, companyID)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"success": true, "postsCount": result.PostsCount, "weekStart": result.WeekStart})
			})
		},
	}
}

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [company-id]",
		Short: "Queue a generation job for the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, deps *app.App) error {
				queue, err := deps.RequireQueue()
				if err != nil {
					return err
				}
				if _, err := deps.Companies.Get(ctx, companyID); err != nil {
					return err
				}
				job := domain.GenerationJob{
					ID:          uuid.NewString(),
					CompanyID:   companyID,
					RequestedAt: now().UTC(),
					Cause:       domain.GenerationCauseCLI,
				}
				if err := queue.Enqueue(ctx, job); err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"jobId": job.ID})
			})
		},
	}
}

// withApp собирает зависимости по конфигу окружения и закрывает их после команды.
func withApp(cmd *cobra.Command, run func(ctx context.Context, deps *app.App) error) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logpkg.NewLogger(cfg.AppEnv).Level(zerolog.WarnLevel)
	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()
	return run(ctx, deps)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
