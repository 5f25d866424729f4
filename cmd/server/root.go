package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"remote-finder/internal/api"
	"remote-finder/internal/config"
	"remote-finder/internal/database"
	"remote-finder/internal/remote"
	"remote-finder/internal/session"
	"remote-finder/internal/websocket"
)

func execute() {
	rootCmd := &cobra.Command{
		Use:           "remote-finder",
		Short:         "Browser file manager gateway for SSH/SFTP hosts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	rootCmd.Flags().StringP("config", "c", "", "path to config file")
	rootCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.Flags().String("static", "", "directory with the web UI (overrides config)")
	rootCmd.Flags().String("known-hosts", "", "known_hosts file used to verify remote hosts")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v := config.New(configFile)

	for key, flag := range map[string]string{
		"server.addr":       "addr",
		"server.static_dir": "static",
		"ssh.known_hosts":   "known-hosts",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	return config.Load(v)
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	broker, err := remote.NewBroker(remote.Options{
		ReadyTimeout: cfg.SSH.ReadyTimeout,
		KeepAlive:    cfg.SSH.KeepAlive,
		KnownHosts:   cfg.SSH.KnownHosts,
	})
	if err != nil {
		return fmt.Errorf("creating SSH broker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		journal api.Journal
		db      *database.Store
	)
	if cfg.DB.Source != "" {
		db, err = database.Open(ctx, cfg.DB.Source)
		if err != nil {
			return fmt.Errorf("opening event journal: %w", err)
		}
		defer db.Close()
		journal = db
		log.Println("Event journal connected")
	} else {
		log.Println("No db.source configured, event journal disabled")
	}

	sessions := session.NewStore()
	hub := websocket.NewHub()
	reaper := session.NewReaper(sessions, cfg.Session.SweepInterval, cfg.Session.IdleTimeout)
	server := api.NewServer(cfg, sessions, broker, hub, journal)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	if db != nil {
		g.Go(func() error { return db.RunPruner(gctx, cfg.DB.Retention) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)

		n := sessions.CloseAll(session.ReasonShutdown)
		log.Printf("Closed %d session(s)", n)
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
