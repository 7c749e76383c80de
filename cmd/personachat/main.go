// Package main is the entrypoint of the persona chat service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/edgard/personachat/internal/app"
	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	"github.com/edgard/personachat/internal/gemini"
	"github.com/edgard/personachat/internal/httpapi"
	"github.com/edgard/personachat/internal/logger"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/orchestrator"
	"github.com/edgard/personachat/internal/roster"
	"github.com/edgard/personachat/internal/telegram"
)

// Options are the command-line flags.
type Options struct {
	Config string `short:"c" long:"config" default:"./config.yaml" description:"Path to configuration file"`
	Roster string `short:"r" long:"roster" description:"Roster source (directory or http(s) base URL), overrides roster.source"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// run wires every component, blocks until shutdown and returns the exit code.
func run(ctx context.Context, args []string) int {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "path", opts.Config, "error", err)
		return 1
	}
	if opts.Roster != "" {
		cfg.Roster.Source = opts.Roster
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	sink := console.New(log)
	reg, loadErr := loadRoster(ctx, cfg.Roster, log)

	store, err := media.OpenStore(cfg.Media.Dir, cfg.Media.DBPath, log)
	if err != nil {
		log.Error("Failed to open media store", "dir", cfg.Media.Dir, "db_path", cfg.Media.DBPath, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close media store", "error", err)
		}
	}()

	poller := media.NewPoller(cfg.Media.Video.PollInterval, cfg.Media.Video.MaxPolls, sink, log)
	gen := media.NewGenerator(store, poller, sink, log)
	provider := gemini.NewProvider(cfg.Gemini, log)

	session := chat.New(chat.Deps{
		Roster:          reg,
		LoadErr:         loadErr,
		Credentials:     provider,
		Engine:          orchestrator.New(cfg.Orchestrator, gen, log),
		Media:           gen,
		Console:         sink,
		Settings:        chat.Settings{TextModel: cfg.Gemini.TextModel, ImageModel: cfg.Gemini.ImageModel},
		VideoModel:      cfg.Gemini.VideoModel,
		VideoResolution: cfg.Media.Video.Resolution,
		Logger:          log,
	})

	server := httpapi.NewServer(cfg.HTTP, httpapi.Deps{
		Session:     session,
		Credentials: provider,
		Media:       store,
		Console:     sink,
	}, log)

	var bridge app.Runner
	if cfg.Telegram.Enabled {
		br, err := telegram.NewBridge(telegram.HandlerDeps{
			Logger:  log,
			Config:  cfg.Telegram,
			Session: session,
			Media:   store,
		})
		if err != nil {
			log.Error("Failed to create Telegram bridge", "error", err)
			return 1
		}
		bridge = br
	}

	tasks := app.RegisterAllTasks(app.TaskDeps{Logger: log, Store: store, Retention: cfg.Media.Retention})
	sched, err := app.NewScheduler(log, cfg.Scheduler, tasks)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	log.Info("Starting personachat...", "addr", cfg.HTTP.Addr, "telegram", cfg.Telegram.Enabled)
	runErr := app.New(log, server, bridge, sched).Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		return 1
	}
	log.Info("Stopped gracefully.")
	return 0
}

// loadRoster fetches the roster within the configured timeout. A failure is
// returned, not fatal: the session reports it to the user.
func loadRoster(ctx context.Context, cfg config.RosterConfig, log *slog.Logger) (*roster.Registry, error) {
	source, err := roster.NewSource(cfg.Source, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	return roster.NewLoader(source, cfg.Concurrency, log).Load(loadCtx)
}
