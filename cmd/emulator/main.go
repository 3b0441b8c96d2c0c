package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/logger"
	"github.com/raywall/integra-contador/tools/emulator"
	"github.com/rs/zerolog/log"
)

// Injetável para testes
var serverStarter = func(ctx context.Context, s *emulator.Server) error {
	return s.Start(ctx)
}

func main() {
	logger.Configure(config.LoggingConf{Enabled: true, Level: "info", Format: "console"})

	path := os.Getenv("EMULATOR_CONFIG_PATH")
	if path == "" {
		path = "emulator.yaml"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, path); err != nil {
		log.Fatal().Err(err).Msg("emulador encerrado com erro")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := emulator.LoadFile(configPath)
	if err != nil {
		return err
	}
	return serverStarter(ctx, emulator.New(cfg))
}
