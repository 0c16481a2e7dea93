package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/moonvale/moonmud/internal/config"
	"github.com/moonvale/moonmud/internal/db"
	"github.com/moonvale/moonmud/internal/gameserver"
	"github.com/moonvale/moonmud/internal/world"
)

const defaultConfigPath = "config/mudserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := defaultConfigPath
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("moonmud server starting", "log_level", cfg.LogLevel, "tickrate", cfg.TickRate)

	store, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	reg := world.NewRegistry()
	if err := reg.Load(ctx, store); err != nil {
		return fmt.Errorf("loading world: %w", err)
	}
	slog.Info("world loaded", "rooms", len(reg.Rooms()))

	game := gameserver.NewGame(cfg, store, reg)
	server, err := gameserver.NewServer(cfg, game)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := game.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("tick driver: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := server.Run(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("listener: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
