package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/greenmesh/greenmesh/api"
	"github.com/greenmesh/greenmesh/app"
	"github.com/greenmesh/greenmesh/pkg/dispatcher"
	"github.com/greenmesh/greenmesh/pkg/eventsink"
)

// StartCmd runs the ledger with its API, dispatcher and event sinks.
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := loadNodeContext(cmd)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), nc)
		},
	}
}

func openApp(nc nodeContext) (*app.App, error) {
	db, err := app.OpenDB(nc.home)
	if err != nil {
		return nil, err
	}
	a, err := app.New(nc.logger, db, app.Options{CheckInvariants: nc.cfg.Ledger.CheckInvariants})
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func runNode(ctx context.Context, nc nodeContext) error {
	a, err := openApp(nc)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			nc.logger.Error("close ledger", "error", err)
		}
	}()

	if !a.Initialized() {
		gs, err := app.ReadGenesisFile(genesisPath(nc.home))
		if err != nil {
			return fmt.Errorf("no committed state and no genesis: %w", err)
		}
		if _, err := a.InitChain(gs); err != nil {
			return err
		}
		nc.logger.Info("genesis committed", "time", a.LastBlockTime())
	}
	nc.logger.Info("ledger ready", "height", a.Height())

	if nc.cfg.Log.Events {
		a.AddSink(eventsink.NewLog(nc.logger))
	}
	if len(nc.cfg.Kafka.Brokers) > 0 {
		k, err := eventsink.NewKafka(eventsink.KafkaConfig{Brokers: nc.cfg.Kafka.Brokers, Topic: nc.cfg.Kafka.Topic})
		if err != nil {
			return err
		}
		a.AddSink(k)
		nc.logger.Info("kafka export enabled", "brokers", nc.cfg.Kafka.Brokers)
	}

	g, ctx := errgroup.WithContext(ctx)

	if nc.cfg.Telemetry.Enabled {
		g.Go(func() error { return serveMetrics(ctx, nc.cfg.Telemetry.MetricsPort, nc.logger) })
	}

	if nc.cfg.API.Enabled {
		server, err := api.NewServer(a, nc.cfg.apiConfig(), nc.logger)
		if err != nil {
			return err
		}
		a.AddSink(server.Hub())
		g.Go(func() error { return server.Start(ctx) })
	}

	if nc.cfg.Dispatcher.Enabled {
		operator, err := sdk.AccAddressFromBech32(nc.cfg.Dispatcher.Operator)
		if err != nil {
			return fmt.Errorf("dispatcher.operator: %w", err)
		}
		d, err := dispatcher.New(app.NewDispatchEngine(a, operator), nc.cfg.dispatcherConfig(), nc.logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			d.Run(ctx)
			return nil
		})
	}

	err = g.Wait()
	nc.logger.Info("node stopped", "height", a.Height())
	return err
}

// serveMetrics exposes the Prometheus registry until ctx is done.
func serveMetrics(ctx context.Context, port int, logger log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// ExportCmd prints the current state as a genesis document.
func ExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export committed state as genesis JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			nc, err := loadNodeContext(cmd)
			if err != nil {
				return err
			}
			a, err := openApp(nc)
			if err != nil {
				return err
			}
			defer a.Close()

			gs, err := a.ExportGenesis()
			if err != nil {
				return err
			}
			bz, err := json.MarshalIndent(gs, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return err
		},
	}
}
