package cli

import (
	"fmt"
	"time"

	"github.com/me/kosched/internal/config"
	"github.com/me/kosched/internal/kernel"
	"github.com/me/kosched/internal/scenario"
	"github.com/me/kosched/internal/sim"
	"github.com/me/kosched/internal/store"
	"github.com/me/kosched/pkg/model"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		configFile   string
		mlfqs        bool
		timerFreq    int
		timeSlice    int
		maxThreads   int
		maxTicks     int64
		tickInterval string
		dbPath       string
		noDB         bool
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.js>",
		Short: "Execute a scheduling scenario and record its trace",
		Long: `Runs a scenario script against a fresh kernel instance until every
scenario thread has exited, then prints a run summary. The trace is
recorded to the database unless --no-db is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			// Flags override the config file.
			if cmd.Flags().Changed("mlfqs") {
				cfg.MLFQS = mlfqs
			}
			if timerFreq > 0 {
				cfg.TimerFreq = timerFreq
			}
			if timeSlice > 0 {
				cfg.TimeSlice = timeSlice
			}
			if maxThreads > 0 {
				cfg.MaxThreads = maxThreads
			}
			if cmd.Flags().Changed("ticks") {
				cfg.MaxTicks = maxTicks
			}
			if tickInterval != "" {
				cfg.TickInterval = tickInterval
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}

			var interval time.Duration
			if cfg.TickInterval != "" {
				interval, err = time.ParseDuration(cfg.TickInterval)
				if err != nil {
					return fmt.Errorf("parse tick interval: %w", err)
				}
			}

			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			var st store.Store
			if !noDB {
				sqlStore, err := store.NewSQLiteStore(cfg.DBPath, logger)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer sqlStore.Close()
				if err := sqlStore.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate database: %w", err)
				}
				st = sqlStore
			}

			runner := sim.NewRunner(st, sim.Config{
				Kernel: kernel.Config{
					TimerFreq:  cfg.TimerFreq,
					TimeSlice:  cfg.TimeSlice,
					MaxThreads: cfg.MaxThreads,
					MLFQS:      cfg.MLFQS,
				},
				TickInterval: interval,
				MaxTicks:     cfg.MaxTicks,
			}, logger)

			run, err := runner.Run(cmd.Context(), sc)
			if err != nil {
				return fmt.Errorf("run scenario: %w", err)
			}

			fmt.Printf("Run:      %s\n", run.ID)
			fmt.Printf("Scenario: %s\n", run.Scenario)
			fmt.Printf("Policy:   %s\n", run.Policy)
			fmt.Printf("State:    %s\n", run.State)
			fmt.Printf("Ticks:    %d\n", run.Ticks)
			if run.State == model.RunStateFailed {
				return fmt.Errorf("run failed: %s", run.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "Path to YAML config file")
	cmd.Flags().BoolVar(&mlfqs, "mlfqs", false, "Use the MLFQS policy instead of priority scheduling")
	cmd.Flags().IntVar(&timerFreq, "timer-freq", 0, "Timer ticks per second")
	cmd.Flags().IntVar(&timeSlice, "time-slice", 0, "Ticks per scheduling quantum")
	cmd.Flags().IntVar(&maxThreads, "max-threads", 0, "Thread arena capacity")
	cmd.Flags().Int64Var(&maxTicks, "ticks", 0, "Abort the run after this many ticks (0 waits for the scenario)")
	cmd.Flags().StringVar(&tickInterval, "tick-interval", "", "Wall-clock pacing per tick, e.g. 1ms (default unpaced)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Database path")
	cmd.Flags().BoolVar(&noDB, "no-db", false, "Do not record the run")

	return cmd
}
