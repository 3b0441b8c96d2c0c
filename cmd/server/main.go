package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/engine"
	"github.com/raywall/integra-contador/pkg/logger"
	"github.com/raywall/integra-contador/pkg/transport"
	"github.com/rs/zerolog/log"
)

var (
	// Variáveis injetáveis para mocking
	serverStarter = transport.StartHTTPServer
	lambdaStarter = func(handler interface{}) { lambda.Start(handler) }
	loadConfig    = config.Load
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, engine.Dependencies{}); err != nil {
		log.Fatal().Err(err).Msg("FATAL")
	}
}

// run contém a lógica principal testável
func run(ctx context.Context, deps engine.Dependencies) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Configure(cfg.Logging)

	svcEngine, err := engine.NewServiceEngine(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer svcEngine.Close()

	handler := svcEngine.Handler()

	switch cfg.Server.Runtime {
	case "local":
		svcEngine.Limiter.StartJanitor(ctx, time.Minute)
		if err := svcEngine.StartReloader(ctx); err != nil {
			return err
		}
		if err := serverStarter(ctx, cfg.Server.Port, handler); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case "lambda":
		lambdaStarter(transport.NewLambdaHandler(handler).Handle)
		return nil
	default:
		return fmt.Errorf("runtime desconhecido: %s", cfg.Server.Runtime)
	}
}
