package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/botfelt/botfelt/internal/auth"
	"github.com/botfelt/botfelt/internal/replay"
	"github.com/botfelt/botfelt/internal/server"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"botfelt-server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
}

func main() {
	ctx := kong.Parse(&CLI)

	cfg, err := server.LoadServerConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	if CLI.Addr != "" {
		cfg.Server.Address = CLI.Addr
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	logger.Info("starting botfelt server",
		"addr", cfg.GetServerAddress(),
		"tables", len(cfg.Tables))

	var opts []server.ControllerOption
	if cfg.Replay != nil {
		replayCfg := cfg.Replay
		opts = append(opts, server.WithRecorderFactory(func(tableID, tableName string) replay.Recorder {
			path := filepath.Join(replayCfg.Dir, tableName+".jsonl")
			sink, err := replay.NewFileSink(logger, path, replayCfg.Buffer)
			if err != nil {
				logger.Error("failed to open replay log, recording disabled", "table", tableName, "error", err)
				return replay.NopRecorder{}
			}
			return sink
		}))
	}

	controller := server.NewGameController(logger, opts...)
	for _, tableConfig := range cfg.Tables {
		table := controller.CreateTable(tableConfig.Name, tableConfig.GameConfig())
		logger.Info("created table",
			"id", table.ID,
			"name", tableConfig.Name,
			"stakes", fmt.Sprintf("%d/%d", tableConfig.SmallBlind, tableConfig.BigBlind),
			"maxPlayers", tableConfig.MaxPlayers)
	}

	var botAuth auth.BotAuth = auth.NoopAuth{}
	if cfg.Server.APIKey != "" {
		botAuth = auth.NewStaticAuth(cfg.Server.APIKey)
	}

	wsServer := server.NewServer(cfg.GetServerAddress(), logger, controller, botAuth, quartz.NewReal())

	var g errgroup.Group
	g.Go(wsServer.Start)
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down server")
		return wsServer.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		ctx.Exit(1)
	}
}
