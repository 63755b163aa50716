package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/owenfs/contagion/internal/api"
	"github.com/owenfs/contagion/internal/engine"
	"github.com/owenfs/contagion/internal/persistence"
)

var (
	servePort     int
	serveInterval time.Duration
	serveDBPath   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a paced simulation with a live HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := loadScenario()
		if err != nil {
			return err
		}

		sim, err := engine.New(scenario)
		if err != nil {
			return err
		}
		runner := engine.NewRunner(sim, serveInterval)

		var db *persistence.DB
		if serveDBPath != "" {
			db, err = persistence.Open(serveDBPath)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		adminKey := os.Getenv("CONTAGION_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("CONTAGION_ADMIN_KEY not set, control POST endpoints disabled")
		}

		server := &api.Server{
			Sim:      sim,
			Runner:   runner,
			DB:       db,
			Port:     servePort,
			AdminKey: adminKey,
		}
		server.Start()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigCh
			slog.Info("received signal, shutting down", "signal", sig)
			runner.Stop()
			cancel()
		}()

		fmt.Printf("scenario %q: %d agents, %s mode\n", scenario.Name, scenario.N, scenario.Spatial.Mode)
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", servePort)
		fmt.Println("Running... (Ctrl+C to stop)")

		runner.Run(ctx)

		if db != nil {
			reason := sim.StoppedReason()
			if reason == "" {
				reason = engine.StopCancelled
			}
			if _, err := db.SaveRun(scenario, sim.Series(), sim.Events(), reason); err != nil {
				slog.Error("final save failed", "error", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP API port")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Second, "wall-clock duration of one tick at speed 1")
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "save the finished run to this SQLite database")
}
