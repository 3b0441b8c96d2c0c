package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher devolve pares numerados e conta as chamadas.
type countingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *countingFetcher) fetch(ctx context.Context) (domain.TokenPair, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.TokenPair{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.TokenPair{}, f.err
	}
	return domain.TokenPair{AccessToken: "acc-" + string(rune('0'+n)), JWTToken: "jwt"}, nil
}

type recordingProvider struct {
	mu   sync.Mutex
	tags [][]string
}

func (r *recordingProvider) Count(_ string, _ float64, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags)
	return nil
}
func (r *recordingProvider) Gauge(string, float64, []string) error     { return nil }
func (r *recordingProvider) Histogram(string, float64, []string) error { return nil }

func TestTokenManager_GetToken(t *testing.T) {
	t.Run("Busca uma vez e reutiliza o cache", func(t *testing.T) {
		f := &countingFetcher{}
		mgr := NewTokenManager(f.fetch)
		assert.False(t, mgr.Cached())

		first, err := mgr.GetToken(context.Background())
		require.NoError(t, err)
		second, err := mgr.GetToken(context.Background())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), f.calls.Load())
		assert.True(t, mgr.Cached())
		assert.False(t, first.ObtainedAt.IsZero())
	})

	t.Run("Chamadas concorrentes com cache vazio fazem um único handshake", func(t *testing.T) {
		f := &countingFetcher{release: make(chan struct{})}
		mgr := NewTokenManager(f.fetch)

		const callers = 20
		var wg sync.WaitGroup
		results := make([]domain.TokenPair, callers)
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = mgr.GetToken(context.Background())
			}(i)
		}

		time.Sleep(50 * time.Millisecond)
		close(f.release)
		wg.Wait()

		assert.Equal(t, int32(1), f.calls.Load())
		for i := 0; i < callers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, results[0], results[i])
		}
	})

	t.Run("Chamadas concorrentes com cache válido não autenticam de novo", func(t *testing.T) {
		f := &countingFetcher{}
		mgr := NewTokenManager(f.fetch)
		_, err := mgr.GetToken(context.Background())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := mgr.GetToken(context.Background())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), f.calls.Load())
	})

	t.Run("Erro não é cacheado", func(t *testing.T) {
		f := &countingFetcher{err: &domain.AuthError{Status: 401, Detail: "invalid_client"}}
		mgr := NewTokenManager(f.fetch)

		_, err := mgr.GetToken(context.Background())
		var authErr *domain.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 401, authErr.Status)

		_, err = mgr.GetToken(context.Background())
		require.Error(t, err)
		assert.Equal(t, int32(2), f.calls.Load())
		assert.False(t, mgr.Cached())
	})

	t.Run("Erro genérico vira AuthError", func(t *testing.T) {
		mgr := NewTokenManager(func(context.Context) (domain.TokenPair, error) {
			return domain.TokenPair{}, errors.New("boom")
		})
		_, err := mgr.GetToken(context.Background())
		assert.Equal(t, domain.KindAuth, domain.KindOf(err))
	})

	t.Run("Par incompleto é falha de autenticação", func(t *testing.T) {
		mgr := NewTokenManager(func(context.Context) (domain.TokenPair, error) {
			return domain.TokenPair{AccessToken: "acc"}, nil
		})
		_, err := mgr.GetToken(context.Background())
		assert.Equal(t, domain.KindAuth, domain.KindOf(err))
		assert.False(t, mgr.Cached())
	})

	t.Run("Chamador cancelado não derruba a busca dos demais", func(t *testing.T) {
		f := &countingFetcher{release: make(chan struct{})}
		mgr := NewTokenManager(f.fetch)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := mgr.GetToken(ctx)

		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout)

		close(f.release)
		pair, err := mgr.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "acc-1", pair.AccessToken)
		assert.Equal(t, int32(1), f.calls.Load())
	})

	t.Run("Timeout do handshake", func(t *testing.T) {
		f := &countingFetcher{release: make(chan struct{})}
		mgr := NewTokenManager(f.fetch, WithTimeout(20*time.Millisecond))

		_, err := mgr.GetToken(context.Background())
		var netErr *domain.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout)
	})

	t.Run("Métrica por resultado", func(t *testing.T) {
		provider := &recordingProvider{}
		mgr := NewTokenManager((&countingFetcher{}).fetch, WithMetrics(metrics.NewProcessor(nil, provider)))

		_, err := mgr.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"resultado:ok"}}, provider.tags)
	})
}

func TestTokenManager_Invalidate(t *testing.T) {
	f := &countingFetcher{}
	mgr := NewTokenManager(f.fetch)

	stale, err := mgr.GetToken(context.Background())
	require.NoError(t, err)

	t.Run("Par diferente do cache é ignorado", func(t *testing.T) {
		mgr.Invalidate(domain.TokenPair{AccessToken: "outro", JWTToken: "jwt"})
		assert.True(t, mgr.Cached())
	})

	t.Run("Par em uso é descartado e renovado", func(t *testing.T) {
		mgr.Invalidate(stale)
		assert.False(t, mgr.Cached())

		fresh, err := mgr.GetToken(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, stale.AccessToken, fresh.AccessToken)
		assert.Equal(t, int32(2), f.calls.Load())
	})

	t.Run("Invalidação atrasada não apaga o par novo", func(t *testing.T) {
		mgr.Invalidate(stale)
		assert.True(t, mgr.Cached())
		assert.Equal(t, int32(2), f.calls.Load())
	})
}
