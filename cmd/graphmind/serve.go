package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psidex/graphmind/internal/explorer"
	"github.com/psidex/graphmind/internal/hub"
	"github.com/psidex/graphmind/internal/store"
)

var (
	serveAddr   string
	serveStatic string
)

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "bind", "b", "", "the ip:port to bind the hub to")
	serveCmd.Flags().StringVarP(&serveStatic, "static", "d", "", "the directory to serve static files from")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub that stores, generates and pushes knowledge graphs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Hub.Addr = serveAddr
	}
	if serveStatic != "" {
		cfg.Hub.StaticDir = serveStatic
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	var h *hub.Hub
	var jobs *explorer.Jobs

	gen, err := explorer.NewLLMGenerator(cfg.LLM, logger.With("component", "generator"))
	if err != nil {
		logger.Warn("knowledge creation disabled", "err", err)
	} else {
		exp := explorer.New(st, gen, cfg.Explorer.Options, logger.With("component", "explorer"))
		if _, watched := st.(store.Watcher); !watched {
			exp.OnSaved(func(principal string) { h.TopicChanged(ctx, principal) })
		}
		jobs = explorer.NewJobs(exp, cfg.Explorer.QueueSize, func(r explorer.Result) { h.JobDone(r) }, logger.With("component", "jobs"))
	}

	hubCfg := hub.Config{
		SnapshotDepth:  cfg.Hub.SnapshotDepth,
		AllowedOrigins: cfg.Hub.AllowedOrigins,
		StaticDir:      cfg.Hub.StaticDir,
	}
	if jobs != nil {
		h = hub.New(st, jobs, hubCfg, logger.With("component", "hub"))
		jobs.Start(cfg.Explorer.Workers)
		defer jobs.Stop()
	} else {
		h = hub.New(st, nil, hubCfg, logger.With("component", "hub"))
	}
	defer h.Close()

	watchErr := make(chan error, 1)
	go func() { watchErr <- h.Run(ctx) }()

	srv := &http.Server{Addr: cfg.Hub.Addr, Handler: h.Handler()}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	fmt.Printf("%s hub listening on %s, store %s at %s\n",
		brand.Sprint("graphmind"), cfg.Hub.Addr, cfg.Store.Backend, cfg.Store.Path)

	select {
	case err = <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case err = <-watchErr:
		if err != nil {
			logger.Error("store watch stopped", "err", err)
		}
		<-ctx.Done()
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Hub.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
