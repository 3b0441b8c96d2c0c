// Package engine monta o processo a partir de config.Config: credenciais,
// catálogo, tokens, transporte mTLS e os colaboradores opcionais da consulta.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/raywall/integra-contador/pkg/auth"
	"github.com/raywall/integra-contador/pkg/awsx"
	"github.com/raywall/integra-contador/pkg/cache"
	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/raywall/integra-contador/pkg/credentials"
	"github.com/raywall/integra-contador/pkg/events"
	"github.com/raywall/integra-contador/pkg/gateway"
	"github.com/raywall/integra-contador/pkg/graphql"
	"github.com/raywall/integra-contador/pkg/metrics"
	"github.com/raywall/integra-contador/pkg/observability"
	"github.com/raywall/integra-contador/pkg/services"
	"github.com/raywall/integra-contador/pkg/storage"
	"github.com/raywall/integra-contador/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceEngine struct {
	Config          *config.Config
	Logger          zerolog.Logger
	MetricProcessor *metrics.Processor
	Credentials     *credentials.Credentials
	Registry        *services.Registry
	Tokens          *auth.TokenManager
	Service         *consulta.Service
	GraphQLEngine   *graphql.GraphQLEngine
	Limiter         *transport.RateLimiter

	closers []io.Closer
}

// Dependencies permite trocar peças externas em testes. Campos nulos são
// criados a partir da configuração.
type Dependencies struct {
	Resolver   *credentials.Resolver
	HTTPClient gateway.Doer
	Store      consulta.Store
	Cache      consulta.Cache
	Publisher  consulta.Publisher
	Lookup     func(string) (string, bool)
	Loader     *UniversalLoader
}

// NewServiceEngine falha com *domain.ConfigError quando credenciais ou
// certificado estão ausentes; nesse caso o processo não deve subir.
func NewServiceEngine(ctx context.Context, cfg *config.Config, deps Dependencies) (*ServiceEngine, error) {
	logger := log.Logger
	se := &ServiceEngine{Config: cfg, Logger: logger}

	recorder, closer, err := observability.NewRecorder(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("falha métricas: %w", err)
	}
	se.MetricProcessor = recorder
	se.closers = append(se.closers, closer)

	resolver := deps.Resolver
	if resolver == nil {
		resolver = &credentials.Resolver{Region: cfg.AWS.Region}
	}
	creds, err := credentials.Load(ctx, cfg.Serpro, resolver)
	if err != nil {
		se.Close()
		return nil, err
	}
	se.Credentials = creds
	logger.Info().Stringer("credenciais", creds).Msg("certificado de cliente carregado")

	lookup := deps.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	se.Registry = services.NewRegistry(cfg.Serpro.RequesterCNPJ, lookup)
	if cfg.Serpro.ServicesFile != "" {
		loader := deps.Loader
		if loader == nil {
			loader = NewUniversalLoader(cfg.AWS.Region)
		}
		if err := se.Registry.LoadOverridesFrom(loader.Source(ctx, cfg.Serpro.ServicesFile)); err != nil {
			se.Close()
			return nil, err
		}
	}

	client := deps.HTTPClient
	if client == nil {
		client = creds.HTTPClient(0)
	}

	se.Tokens = auth.NewOAuth2Manager(auth.AuthConfig{
		TokenURL:     cfg.Serpro.AuthURL,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RoleType:     cfg.Serpro.RoleType,
	}, client, auth.WithTimeout(cfg.Serpro.AuthTimeout), auth.WithMetrics(recorder))

	sender := gateway.NewTransport(client, cfg.Serpro, cfg.Serpro.Timeout)

	opts := []consulta.Option{consulta.WithMetrics(recorder)}

	store := deps.Store
	if store == nil {
		var storeCloser io.Closer
		store, storeCloser, err = storage.New(ctx, cfg.Storage, cfg.AWS.Region)
		if err != nil {
			se.Close()
			return nil, err
		}
		se.closers = append(se.closers, storeCloser)
	}
	opts = append(opts, consulta.WithStore(store))

	c := deps.Cache
	if c == nil && cfg.Cache.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword)
		se.closers = append(se.closers, rdb)
		c = cache.NewRedis(rdb)
	}
	if c != nil {
		opts = append(opts, consulta.WithCache(c, cfg.Cache.TTL))
	}

	pub := deps.Publisher
	if pub == nil && cfg.Events.QueueURL != "" {
		awsCfg, err := awsx.Config(ctx, cfg.AWS.Region)
		if err != nil {
			se.Close()
			return nil, fmt.Errorf("erro ao carregar config AWS: %w", err)
		}
		pub = events.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.Events.QueueURL)
	}
	if pub != nil {
		opts = append(opts, consulta.WithPublisher(pub))
	}

	se.Service = consulta.NewService(se.Registry, se.Tokens, sender, opts...)

	if cfg.Server.GraphQL {
		se.GraphQLEngine, err = graphql.NewGraphQLEngine(se.Service)
		if err != nil {
			se.Close()
			return nil, fmt.Errorf("falha ao iniciar engine graphql: %w", err)
		}
	}

	se.Limiter = transport.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	for name, err := range se.Registry.Check() {
		logger.Warn().Err(err).Str("servico", string(name)).Msg("serviço sem identificadores configurados")
	}

	return se, nil
}

// Handler devolve o roteador HTTP usado tanto no servidor local quanto na Lambda.
func (se *ServiceEngine) Handler() http.Handler {
	return transport.NewRouter(transport.RouterConfig{
		Service:        se.Service,
		GraphQL:        se.GraphQLEngine,
		Limiter:        se.Limiter,
		RequestTimeout: se.Config.Server.RequestTimeout,
	})
}

// Reload relê o arquivo de overrides dos serviços.
func (se *ServiceEngine) Reload() error {
	return se.Registry.Reload()
}

// StartReloader escuta a fila de recarga em background, se configurada.
func (se *ServiceEngine) StartReloader(ctx context.Context) error {
	if se.Config.Events.ReloadQueueURL == "" {
		return nil
	}
	awsCfg, err := awsx.Config(ctx, se.Config.AWS.Region)
	if err != nil {
		return fmt.Errorf("erro ao carregar config AWS: %w", err)
	}
	r := transport.NewSQSReloader(sqs.NewFromConfig(awsCfg), se.Config.Events.ReloadQueueURL, se)
	go r.Start(ctx)
	return nil
}

// Close libera conexões e faz flush das métricas.
func (se *ServiceEngine) Close() error {
	var errs []error
	for i := len(se.closers) - 1; i >= 0; i-- {
		if err := se.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	se.closers = nil
	return errors.Join(errs...)
}
