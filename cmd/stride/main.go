package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Versifine/stride/internal/config"
	"github.com/Versifine/stride/internal/logger"
)

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "configs/stride.yaml", "path to the YAML config")
	flag.BoolVar(&opts.console, "console", false, "steer the first character from the terminal")
	flag.StringVar(&opts.script, "script", "", "tengo input script, overrides simulation.input_script")
	flag.IntVar(&opts.ticks, "ticks", -1, "stop after this many ticks, overrides simulation.ticks")
	flag.BoolVar(&opts.fast, "fast", false, "step as fast as possible instead of in real time")
	flag.BoolVar(&opts.watch, "watch", true, "retune characters when the config file changes")
	flag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arena, err := run(ctx, cfg, opts, logger.L())
	if err != nil {
		slog.Error("Simulation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Simulation finished", "snapshot", arena.String())
}
