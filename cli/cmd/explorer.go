package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/liamzebedee/pogsim/core/store"
	"github.com/liamzebedee/pogsim/explorer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

// replayMetrics registers simulation telemetry on the registry and loads the
// given run into it. An empty run ID falls back to the pinned run, and no run
// at all leaves the metrics at zero.
func replayMetrics(db *sql.DB, registry *prometheus.Registry, runID string) error {
	telemetry := sim.NewTelemetry(registry)
	if runID == "" {
		settings, err := store.LoadDataStore[store.ExplorerStore](db, store.ExplorerStoreKey)
		if err != nil {
			return err
		}
		runID = settings.PinnedRun
	}
	if runID == "" {
		return nil
	}
	return store.ReplayRun(db, runID, telemetry)
}

func RunExplorer(cmdCtx *cli.Context) error {
	port := cmdCtx.Int("port")
	dbPath := cmdCtx.String("db")

	db, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// Handle process signals.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c

		fmt.Println("Shutting down...")
		db.Close()

		os.Exit(1)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := replayMetrics(db, registry, cmdCtx.String("replay")); err != nil {
		return err
	}

	// Setup explorer.
	expl := explorer.NewResultsExplorerServer(db, registry, port)
	return expl.Start()
}
