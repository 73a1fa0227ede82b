package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/mstate/internal/api"
	"github.com/mtlprog/mstate/internal/boost"
	"github.com/mtlprog/mstate/internal/chain"
	"github.com/mtlprog/mstate/internal/config"
	"github.com/mtlprog/mstate/internal/domain"
	"github.com/mtlprog/mstate/internal/export"
	"github.com/mtlprog/mstate/internal/pipeline"
	"github.com/mtlprog/mstate/internal/subgraph"
	"github.com/mtlprog/mstate/internal/tokens"
	"github.com/mtlprog/mstate/internal/worker"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "mstate",
		Usage: "mStable basket state service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the tick worker and the HTTP API",
				Action: serve,
			},
			{
				Name:  "inspect",
				Usage: "run one tick and print the state as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "masset", Usage: "print only this masset (musd, mbtc)"},
				},
				Action: inspect,
			},
			{
				Name:  "export",
				Usage: "run one tick and write the basket report",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "basket.xlsx", Usage: "XLSX output path"},
				},
				Action: exportReport,
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// app holds the wired components shared by all commands.
type app struct {
	cfg       config.Config
	states    *pipeline.Service
	worker    *worker.TickWorker
	vaults    *chain.VaultBalanceReader
	refresher *tokens.Refresher
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	graph := subgraph.NewClient(cfg.Network.ProtocolSubgraph, cfg.Network.FeedersSubgraph, cfg.HTTPRetryMax, cfg.HTTPRetryBaseDelay)
	store := tokens.NewStore()
	states := pipeline.NewService()
	a := &app{cfg: cfg, states: states}

	var (
		vaults worker.VaultBalanceSource
		hooks  []worker.AfterTickHook
	)
	if len(cfg.Network.RPCURLs) > 0 {
		rpc := chain.NewRPCClient(cfg.Network.RPCURLs, chain.WithBlockTag(cfg.RPCBlockTag))
		if a.vaults, err = chain.NewVaultBalanceReader(rpc, cfg.VaultBalanceTTL); err != nil {
			return nil, err
		}
		vaults = a.vaults
		if cfg.WatchAccount != "" {
			a.refresher = tokens.NewRefresher(rpc, store, cfg.WatchAccount)
			hooks = append(hooks, a.refresher)
		}
	} else {
		slog.Warn("RPC_URLS not set, using indexed vault balances and no token subscriptions")
	}

	a.worker = worker.NewTickWorker(graph, vaults, store, states, worker.TickConfig{
		Account:      cfg.WatchAccount,
		Interval:     cfg.TickInterval,
		LegacyVaults: cfg.Network.LegacyVaultTable(),
	}, hooks...)
	return a, nil
}

func (a *app) close() {
	if a.vaults != nil {
		a.vaults.Close()
	}
}

// once runs a single tick. With a watched account the tick is repeated so the token
// subscriptions read after the first one are part of the result.
func (a *app) once(ctx context.Context) (domain.DataState, error) {
	state, err := a.worker.Tick(ctx)
	if err != nil {
		return nil, fmt.Errorf("running tick: %w", err)
	}
	if a.refresher != nil {
		if state, err = a.worker.Tick(ctx); err != nil {
			return nil, fmt.Errorf("running tick: %w", err)
		}
	}
	return state, nil
}

func serve(c *cli.Context) error {
	ctx := c.Context
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	go a.worker.Run(ctx)

	if a.cfg.ExportCron != "" {
		writers, err := a.exportWriters(ctx)
		if err != nil {
			return err
		}
		scheduler, err := worker.NewExportScheduler(ctx, a.cfg.ExportCron, a.states, export.NewService(writers...))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if a.cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, tick endpoint is unprotected")
	}

	handler := api.NewHandler(a.states, a.worker, boost.NewCalculator(a.cfg.Network.BoostConfig()))
	srv := api.NewServer(api.Options{
		Port:        a.cfg.HTTPPort,
		AdminAPIKey: a.cfg.AdminAPIKey,
		DebugState:  a.cfg.DebugState,
		CORSOrigins: a.cfg.CORSOrigins,
	}, handler)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", a.cfg.HTTPPort, "network", a.cfg.Network.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	slog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

// exportWriters returns the configured scheduled export destinations.
func (a *app) exportWriters(ctx context.Context) ([]export.SheetWriter, error) {
	var writers []export.SheetWriter
	if a.cfg.ExportXLSXPath != "" {
		writers = append(writers, export.NewXLSXWriter(a.cfg.ExportXLSXPath))
	}
	if a.cfg.GoogleSheetsID != "" {
		if a.cfg.GoogleCredentialsJSON == "" {
			return nil, errors.New("GOOGLE_SHEETS_ID requires GOOGLE_CREDENTIALS_JSON")
		}
		sw, err := export.NewSheetsWriter(ctx, a.cfg.GoogleSheetsID, a.cfg.GoogleCredentialsJSON)
		if err != nil {
			return nil, err
		}
		writers = append(writers, sw)
	}
	if len(writers) == 0 {
		return nil, errors.New("EXPORT_CRON requires EXPORT_XLSX_PATH or GOOGLE_SHEETS_ID")
	}
	return writers, nil
}

func inspect(c *cli.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.once(c.Context)
	if err != nil {
		return err
	}

	var out any = state
	if name := c.String("masset"); name != "" {
		masset, err := domain.ParseMassetName(name)
		if err != nil {
			return err
		}
		m, ok := state[masset]
		if !ok {
			return fmt.Errorf("masset %s not in state", masset)
		}
		out = m
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func exportReport(c *cli.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.once(c.Context)
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := export.NewService(export.NewXLSXWriter(out)).Export(c.Context, state); err != nil {
		return err
	}
	slog.Info("basket report written", "path", out, "massets", len(state))
	return nil
}
