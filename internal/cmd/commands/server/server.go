// Package server implements the `chartpress server` command: load config,
// wire the resilient executor and upstream clients, and serve the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp-forge/chartpress/internal/api"
	"github.com/hashicorp-forge/chartpress/internal/cmd/base"
	"github.com/hashicorp-forge/chartpress/internal/config"
	intserver "github.com/hashicorp-forge/chartpress/internal/server"
	"github.com/hashicorp-forge/chartpress/pkg/datawrapper"
	"github.com/hashicorp-forge/chartpress/pkg/gsheets"
	"github.com/hashicorp-forge/chartpress/pkg/resilient"
)

type Command struct {
	*base.Command

	// FlagConfig is the path to an optional HCL config file.
	FlagConfig string

	// FlagAddr overrides the configured listen address.
	FlagAddr string
}

func (c *Command) Synopsis() string {
	return "Run the chartpress HTTP server"
}

func (c *Command) Help() string {
	return `Usage: chartpress server [options]

  Run the chartpress HTTP server.

  The Datawrapper API token is read from the ` + config.TokenEnvVar + `
  environment variable. A config file is optional; defaults listen on :8000.

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet("server")

	f.StringVar(&c.FlagConfig, "config", "",
		"Path to an HCL config file (optional)")
	f.StringVar(&c.FlagAddr, "addr", "",
		"Listen address, overrides the config file")

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := config.Load(c.FlagConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}
	if c.FlagAddr != "" {
		cfg.ListenAddr = c.FlagAddr
	}

	if cfg.Datawrapper.Token == "" {
		// Not fatal: the chart endpoints report this per-request.
		c.UI.Warn(fmt.Sprintf(
			"%s is not set; chart endpoints will return configuration errors",
			config.TokenEnvVar))
	}

	exec := resilient.NewExecutor(resilient.Config{
		Logger:         c.Log,
		AttemptTimeout: cfg.Datawrapper.ParsedAttemptTimeout(),
		MaxRetries:     cfg.Datawrapper.MaxRetries,
	})

	srv := intserver.Server{
		Config: cfg,
		Logger: c.Log,
		Charts: datawrapper.New(datawrapper.Config{
			BaseURL:  cfg.Datawrapper.BaseURL,
			Token:    cfg.Datawrapper.Token,
			Executor: exec,
			Logger:   c.Log,
		}),
		Sheets: gsheets.New(gsheets.Config{
			Executor: exec,
			Logger:   c.Log,
		}),
	}

	mux := http.NewServeMux()
	mux.Handle("/", api.RootHandler(srv))
	mux.Handle("/create_chart_id", api.CreateChartHandler(srv))
	mux.Handle("/update_chart", api.UpdateChartHandler(srv))

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.WithRequestID(c.Log, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Log.Info("starting server", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		c.UI.Error(fmt.Sprintf("server error: %v", err))
		return 1
	case sig := <-sigCh:
		c.Log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		c.UI.Error(fmt.Sprintf("error during shutdown: %v", err))
		return 1
	}

	return 0
}
