package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout é o limite fixo de cada chamada de serviço.
const DefaultTimeout = 30 * time.Second

// maxBody protege contra respostas muito grandes (PDFs em base64 cabem folgados).
const maxBody = 32 << 20

// RawResponse é a resposta do serviço antes da interpretação.
type RawResponse struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// Doer é o subconjunto de *http.Client usado pelo Transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLResolver escolhe o endpoint pelo tipo de requisição.
type URLResolver interface {
	URLFor(kind domain.RequestKind) string
}

// URLMap é um URLResolver estático; tipos ausentes caem em Consultar.
type URLMap map[domain.RequestKind]string

func (m URLMap) URLFor(kind domain.RequestKind) string {
	if u, ok := m[kind]; ok {
		return u
	}
	return m[domain.RequestConsultar]
}

// Transport envia envelopes ao gateway. O certificado de cliente vai no
// http.Client (mTLS); aqui entram apenas os cabeçalhos de token.
type Transport struct {
	client    Doer
	urls      URLResolver
	timeout   time.Duration
	userAgent string
}

// NewTransport cria o transporte. timeout <= 0 usa DefaultTimeout.
func NewTransport(client Doer, urls URLResolver, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{
		client:    client,
		urls:      urls,
		timeout:   timeout,
		userAgent: "IntegraContador/Client",
	}
}

// Send faz o POST do envelope. O prazo do chamador é respeitado além do
// timeout fixo. Falhas de rede viram *domain.NetworkError; respostas HTTP,
// de qualquer status, voltam como RawResponse.
func (t *Transport) Send(ctx context.Context, kind domain.RequestKind, env Envelope, token domain.TokenPair) (*RawResponse, error) {
	url := t.urls.URLFor(kind)

	body, err := env.Bytes()
	if err != nil {
		return nil, fmt.Errorf("erro ao serializar envelope: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("erro ao criar request para %s: %w", url, err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	// o gateway espera o nome em minúsculas, sem canonicalização
	req.Header["jwt_token"] = []string{token.JWTToken}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError(string(kind), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, domain.NewNetworkError(string(kind), err)
	}

	log.Ctx(ctx).Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("chamada ao gateway concluída")

	return &RawResponse{
		Status:  resp.StatusCode,
		Body:    respBody,
		Headers: resp.Header,
	}, nil
}
