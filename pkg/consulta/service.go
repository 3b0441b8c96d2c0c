// Package consulta é a fachada única usada pelas rotas HTTP, pelo GraphQL e
// pela CLI: consulta um serviço do Integra Contador para um CNPJ.
package consulta

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/gateway"
	"github.com/raywall/integra-contador/pkg/metrics"
	"github.com/raywall/integra-contador/pkg/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service orquestra montagem, token, envio e interpretação da resposta.
type Service struct {
	builder   Builder
	tokens    Tokens
	sender    Sender
	store     Store
	cache     Cache
	cacheTTL  time.Duration
	publisher Publisher
	metrics   *metrics.Processor
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// Option ajusta o Service na criação.
type Option func(*Service)

func WithStore(s Store) Option { return func(svc *Service) { svc.store = s } }

// WithCache liga o cache de resultados; ttl <= 0 desliga.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(svc *Service) {
		if c != nil && ttl > 0 {
			svc.cache, svc.cacheTTL = c, ttl
		}
	}
}

func WithPublisher(p Publisher) Option { return func(svc *Service) { svc.publisher = p } }

func WithMetrics(p *metrics.Processor) Option { return func(svc *Service) { svc.metrics = p } }

func WithClock(now func() time.Time) Option { return func(svc *Service) { svc.now = now } }

// NewService cria a fachada. builder, tokens e sender são obrigatórios.
func NewService(builder Builder, tokens Tokens, sender Sender, opts ...Option) *Service {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	svc := &Service{
		builder:  builder,
		tokens:   tokens,
		sender:   sender,
		store:    NoopStore{},
		validate: validate,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ConsultRequest valida a requisição externa e chama Consult.
func (s *Service) ConsultRequest(ctx context.Context, req Request) (domain.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.Result{}, &domain.ValidationError{Field: verrs[0].Field(), Reason: "é obrigatório", Err: err}
		}
		return domain.Result{}, &domain.ValidationError{Reason: err.Error(), Err: err}
	}
	return s.Consult(ctx, req.Service, req.TaxID, req.Options)
}

// Consult é a operação completa. Em 401/403 do serviço o par de tokens é
// invalidado e a chamada repetida uma única vez com um par novo.
// Persistência, cache e eventos são registrados em log e ignorados se falharem.
func (s *Service) Consult(ctx context.Context, name, taxID string, opts domain.Options) (domain.Result, error) {
	start := s.now()
	logger := log.Ctx(ctx).With().Str("servico", name).Logger()
	ctx = logger.WithContext(ctx)

	env, res, err := s.builder.Build(name, taxID, opts)
	if err != nil {
		s.observe(&logger, name, start, domain.Result{}, err)
		return domain.Result{}, err
	}
	if ignored := res.Ignored(opts); len(ignored) > 0 {
		logger.Debug().Interface("opcoes_ignoradas", ignored).Msg("opções não usadas pelo serviço")
	}

	key := cacheKey(res.Name, env)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("falha ao ler cache de consultas")
		case ok:
			logger.Debug().Msg("resultado servido do cache")
			s.observe(&logger, string(res.Name), start, cached, nil)
			return cached, nil
		}
	}

	result, err := s.call(ctx, res, env)
	s.observe(&logger, string(res.Name), start, result, err)
	if err != nil {
		return result, err
	}

	s.afterSuccess(ctx, &logger, res, env.Contribuinte.Numero, key, result)
	return result, nil
}

func (s *Service) call(ctx context.Context, res services.Resolved, env gateway.Envelope) (domain.Result, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.tokens.GetToken(ctx)
		if err != nil {
			return domain.Result{}, err
		}

		raw, err := s.sender.Send(ctx, res.Kind, env, token)
		if err != nil {
			return domain.Result{}, err
		}

		result, err := gateway.ParseResponse(raw)
		var gwErr *domain.GatewayError
		if attempt == 0 && errors.As(err, &gwErr) && gwErr.Unauthorized() {
			log.Ctx(ctx).Info().Int("status", gwErr.Status).Msg("token recusado, autenticando novamente")
			s.tokens.Invalidate(token)
			continue
		}
		return result, err
	}
}

func (s *Service) afterSuccess(ctx context.Context, logger *zerolog.Logger, res services.Resolved, taxID, key string, result domain.Result) {
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("falha ao gravar cache de consultas")
		}
	}

	rec := Record{
		ID:        s.newID(),
		TaxID:     taxID,
		Service:   string(res.Name),
		Data:      result.Data,
		Status:    result.Status,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		logger.Error().Err(err).Str("id", rec.ID).Msg("falha ao persistir consulta")
	}

	if s.publisher != nil {
		ev := Event{
			Type:      EventConcluded,
			ID:        rec.ID,
			TaxID:     rec.TaxID,
			Service:   rec.Service,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logger.Warn().Err(err).Str("id", rec.ID).Msg("falha ao publicar evento de consulta")
		}
	}
}

func (s *Service) observe(logger *zerolog.Logger, name string, start time.Time, result domain.Result, err error) {
	latency := s.now().Sub(start).Milliseconds()
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}

	tags := map[string]string{"servico": name, "resultado": outcome}
	_ = s.metrics.Incr(metrics.ConsultaCount, tags)
	_ = s.metrics.Record(metrics.ConsultaLatency, float64(latency), map[string]string{"servico": name})

	if err != nil {
		logger.Warn().Err(err).Str("resultado", outcome).Int64("latency_ms", latency).Msg("consulta falhou")
		return
	}
	logger.Info().Int("status", result.Status).Int64("latency_ms", latency).Msg("consulta concluída")
}

// cacheKey depende do serviço, do contribuinte e do payload exato enviado.
func cacheKey(name services.Name, env gateway.Envelope) string {
	sum := sha256.Sum256([]byte(env.PedidoDados.IDSistema + "|" + env.PedidoDados.IDServico + "|" + env.PedidoDados.Dados))
	return fmt.Sprintf("consulta:%s:%s:%s", name, env.Contribuinte.Numero, hex.EncodeToString(sum[:8]))
}

// Catalog lista as definições do catálogo para as superfícies de descoberta.
func Catalog() []services.Definition {
	return services.Definitions()
}

// History devolve as consultas persistidas de um CNPJ. Stores sem suporte a
// listagem devolvem lista vazia.
func (s *Service) History(ctx context.Context, taxID string, limit int) ([]Record, error) {
	digits, err := services.NormalizeTaxID(taxID)
	if err != nil {
		return nil, err
	}
	lister, ok := s.store.(Lister)
	if !ok {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return lister.List(ctx, digits, limit)
}
