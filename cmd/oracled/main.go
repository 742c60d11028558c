// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/alethea-net/oracle/api"
	"github.com/alethea-net/oracle/co"
	"github.com/alethea-net/oracle/kv"
	"github.com/alethea-net/oracle/log"
	"github.com/alethea-net/oracle/lvldb"
	"github.com/alethea-net/oracle/metrics"
	"github.com/alethea-net/oracle/registry"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Oracled",
		Usage:     "Node of the Alethea oracle registry",
		Copyright: "2025 Alethea Network",
		Flags: []cli.Flag{
			dataDirFlag,
			memFlag,
			apiAddrFlag,
			apiCorsFlag,
			adminFlag,
			genesisFlag,
			verbosityFlag,
			maintenanceIntervalFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
			pprofFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	admin, params, err := loadGenesis(ctx)
	if err != nil {
		return err
	}

	var db kv.StoreCloser
	if ctx.Bool(memFlag.Name) {
		db, err = lvldb.NewMem()
	} else {
		dataDir := makeDataDir(ctx)
		db, err = lvldb.New(filepath.Join(dataDir, "registry.db"), lvldb.Options{})
	}
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing registry database..."); db.Close() }()

	outbox := &registry.MemOutbox{}
	reg, err := registry.New(db, admin, registry.NopLedger{}, outbox)
	if err != nil {
		return err
	}
	if !admin.IsZero() {
		if err := reg.UpdateParameters(admin, params); err != nil {
			return err
		}
	}

	now := func() uint64 { return uint64(time.Now().Unix()) }

	srv, apiURL, err := startAPIServer(ctx, api.New(reg, now, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	}))
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); srv.Shutdown(context.Background()) }()

	logger.Info("oracle registry started",
		"version", fullVersion(), "api", apiURL, "admin", admin)

	var goes co.Goes
	defer func() { logger.Info("waiting for background tasks..."); goes.Wait() }()

	done := handleExitSignal()
	goes.Go(func() {
		runMaintenance(reg, outbox, time.Duration(ctx.Uint64(maintenanceIntervalFlag.Name))*time.Second, now, done)
	})
	<-done
	return nil
}

func startAPIServer(ctx *cli.Context, handler http.HandlerFunc) (*http.Server, string, error) {
	addr := ctx.String(apiAddrFlag.Name)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(listener); err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	}()
	return srv, "http://" + listener.Addr().String() + "/", nil
}

// runMaintenance drives the lazy time-based transitions: expiring
// under-voted queries and settling those whose reveal window closed. Queued
// resolution callbacks are drained to the log, the NopLedger counterpart of
// a real collaborator transport.
func runMaintenance(reg *registry.Registry, outbox *registry.MemOutbox, interval time.Duration, now func() uint64, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t := now()
			if expired, err := reg.CheckExpiredQueries(t); err != nil {
				logger.Warn("expiry sweep failed", "err", err)
			} else if len(expired) > 0 {
				logger.Info("expired queries", "ids", expired)
			}
			if settled, err := reg.AutoResolveQueries(t); err != nil {
				logger.Warn("auto-resolve sweep failed", "err", err)
			} else if len(settled) > 0 {
				logger.Info("auto-resolved queries", "ids", settled)
			}
			for _, cb := range outbox.Drain() {
				logger.Info("resolution callback",
					"query", cb.QueryID, "target", cb.Target, "outcome", cb.Outcome)
			}
		case <-done:
			return
		}
	}
}

func handleExitSignal() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		close(done)
	}()
	return done
}
