package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/leafletworker/config"
	"sjsage522/leafletworker/internal/crawler"
	"sjsage522/leafletworker/internal/model"
	"sjsage522/leafletworker/internal/schedule"
	"sjsage522/leafletworker/internal/telemetry"
	"sjsage522/leafletworker/logger"
	"sjsage522/leafletworker/services/lifecycle"
	"sjsage522/leafletworker/services/store"
	"sjsage522/leafletworker/services/worker"
)

var (
	runManual   bool
	enqueueWeek string
	weekAt      string
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Process the newest queued collector job",
	Long: `Runs one pipeline pass: acquire the newest queued job, collect every retailer leaflet, commit offers and record the run.

Outside the Mon/Thu/Sat 12:00-12:15 window the command exits without touching the queue unless --manual, MANUAL_TRIGGER=true or GITHUB_EVENT_NAME=workflow_dispatch is set.`,
	RunE: runWorkerCmd,
}

var enqueueCommand = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a collector job for a leaflet week",
	RunE:  enqueueCmd,
}

var weekCommand = &cobra.Command{
	Use:   "week",
	Short: "Print the ISO week id used for offers",
	RunE:  weekCmd,
}

func init() {
	runCommand.Flags().BoolVar(&runManual, "manual", false, "Ignore the scheduling window")
	enqueueCommand.Flags().StringVar(&enqueueWeek, "week", "", "Week id such as 2024-W05 (defaults to the current week)")
	weekCommand.Flags().StringVar(&weekAt, "at", "", "Date (YYYY-MM-DD) to compute the week for (defaults to today)")

	rootCmd.AddCommand(runCommand, enqueueCommand, weekCommand)
}

// loadConfig initializes logging and returns a validated configuration.
func loadConfig() (*config.Config, error) {
	logger.Init()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.ForWorker()

	now := time.Now().In(cfg.Location())
	manual := cfg.ManualTrigger || runManual
	log.Info().
		Str("environment", cfg.Environment).
		Time("now", now).
		Bool("manual", manual).
		Msg("Starting leaflet worker")

	if !schedule.Default(cfg.Location()).Allows(now, manual) {
		log.Info().Msg("Not in scheduled window, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	sources := crawler.CreateSources(cfg, services.Block)
	log.Info().Int("source_count", len(sources)).Msg("Created sources")

	w := worker.NewWorker(
		lifecycle.NewTracker(services.Store),
		services.Store,
		sources,
		services.Publisher,
		telemetry.New(),
		worker.Settings{
			Currency:       cfg.Currency,
			PushgatewayURL: cfg.PushgatewayURL,
		},
	)
	return w.RunOnce(ctx)
}

func enqueueCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	now := time.Now().In(cfg.Location())
	week, err := resolveWeek(enqueueWeek, now)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	defer cancel()

	st, err := store.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	job, err := st.EnqueueJob(ctx, week, now.UTC())
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", week, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued job %s (run %s) for %s\n", job.ID, job.RunID, job.WeekID)
	return nil
}

func weekCmd(cmd *cobra.Command, _ []string) error {
	loc, err := time.LoadLocation(config.LoadConfig().Timezone)
	if err != nil {
		return err
	}
	at, err := resolveDate(weekAt, time.Now().In(loc), loc)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), model.WeekID(at))
	return nil
}

// resolveWeek validates an explicit week id or derives the current one.
func resolveWeek(flag string, now time.Time) (string, error) {
	if flag == "" {
		return model.WeekID(now), nil
	}
	if _, _, err := model.ParseWeekID(flag); err != nil {
		return "", err
	}
	return flag, nil
}

func resolveDate(flag string, now time.Time, loc *time.Location) (time.Time, error) {
	if flag == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, flag, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: %w", flag, err)
	}
	return t, nil
}
