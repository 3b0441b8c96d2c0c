// Package auth mantém o par de tokens do gateway. O par é obtido sob
// demanda, compartilhado entre chamadas concorrentes e só é renovado quando
// um serviço recusa o token em uso.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ========================================================================
// 1. CONFIGURAÇÃO E ESTRUTURAS AUXILIARES
// ========================================================================

// DefaultTimeout limita o handshake OAuth quando nenhum valor é configurado.
const DefaultTimeout = 30 * time.Second

// TokenFetcher define a função que sabe como buscar um novo par de tokens.
type TokenFetcher func(ctx context.Context) (domain.TokenPair, error)

// Option ajusta o TokenManager na criação.
type Option func(*TokenManager)

// WithTimeout define o limite do handshake, independente do prazo de quem
// disparou a busca.
func WithTimeout(d time.Duration) Option {
	return func(m *TokenManager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithMetrics registra integra.auth.count a cada handshake.
func WithMetrics(p *metrics.Processor) Option {
	return func(m *TokenManager) { m.metrics = p }
}

// ========================================================================
// 2. TOKEN MANAGER
// ========================================================================

// TokenManager gerencia o par de tokens de forma thread-safe. Um único
// handshake fica em voo por vez; quem chega durante a busca espera o mesmo
// resultado.
type TokenManager struct {
	mu      sync.RWMutex
	pair    *domain.TokenPair
	group   singleflight.Group
	fetcher TokenFetcher
	timeout time.Duration
	metrics *metrics.Processor
}

// NewTokenManager cria o gerenciador. Nada é buscado até o primeiro GetToken.
func NewTokenManager(fetcher TokenFetcher, opts ...Option) *TokenManager {
	m := &TokenManager{
		fetcher: fetcher,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetToken devolve o par em cache ou dispara o handshake. Cada chamador
// respeita o próprio ctx enquanto espera; a busca em si segue até o fim
// (limitada pelo timeout do manager) para servir os demais.
func (m *TokenManager) GetToken(ctx context.Context) (domain.TokenPair, error) {
	if pair, ok := m.cached(); ok {
		return pair, nil
	}

	ch := m.group.DoChan("token", func() (interface{}, error) {
		// outro chamador pode ter preenchido o cache entre o RLock e aqui
		if pair, ok := m.cached(); ok {
			return pair, nil
		}
		return m.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return domain.TokenPair{}, domain.NewNetworkError("autenticação", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.TokenPair{}, res.Err
		}
		return res.Val.(domain.TokenPair), nil
	}
}

// Invalidate descarta o par em cache, mas só se ainda for stale. Se outro
// chamador já renovou, o par novo é mantido.
func (m *TokenManager) Invalidate(stale domain.TokenPair) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pair != nil && m.pair.AccessToken == stale.AccessToken && m.pair.JWTToken == stale.JWTToken {
		m.pair = nil
	}
}

// Cached informa se há par em cache, sem disparar busca.
func (m *TokenManager) Cached() bool {
	_, ok := m.cached()
	return ok
}

func (m *TokenManager) cached() (domain.TokenPair, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.pair == nil {
		return domain.TokenPair{}, false
	}
	return *m.pair, true
}

func (m *TokenManager) fetch(ctx context.Context) (domain.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	pair, err := m.fetcher(ctx)
	if err == nil && !pair.Valid() {
		err = &domain.AuthError{Detail: "resposta sem access_token ou jwt_token"}
	}

	result := "ok"
	if err != nil {
		err = classify(err)
		result = domain.KindOf(err).String()
	}
	_ = m.metrics.Incr(metrics.AuthCount, map[string]string{"resultado": result})

	logger := log.Ctx(ctx)
	if err != nil {
		logger.Warn().Err(err).Int64("latency_ms", time.Since(start).Milliseconds()).Msg("falha na autenticação com o gateway")
		return domain.TokenPair{}, err
	}

	if pair.ObtainedAt.IsZero() {
		pair.ObtainedAt = time.Now()
	}

	m.mu.Lock()
	m.pair = &pair
	m.mu.Unlock()

	logger.Info().Int64("latency_ms", time.Since(start).Milliseconds()).Msg("token do gateway obtido")
	return pair, nil
}

// classify garante que toda falha do handshake saia como AuthError ou
// NetworkError.
func classify(err error) error {
	var (
		authErr *domain.AuthError
		netErr  *domain.NetworkError
	)
	switch {
	case errors.As(err, &authErr), errors.As(err, &netErr):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.NewNetworkError("autenticação", err)
	default:
		return &domain.AuthError{Err: err}
	}
}
