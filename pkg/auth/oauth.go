package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/gateway"
)

// DefaultRoleType é o papel com que o escritório se apresenta ao gateway.
const DefaultRoleType = "TERCEIROS"

// ========================================================================
// 3. IMPLEMENTAÇÃO OAUTH2 (CLIENT CREDENTIALS)
// ========================================================================

// AuthConfig descreve o endpoint de autenticação.
type AuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RoleType     string
}

// tokenResponse mapeia a resposta do endpoint de autenticação. Além do
// access_token da RFC 6749, o gateway exige o jwt_token nas chamadas.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	JWTToken    string `json:"jwt_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewOAuth2Manager é um helper que cria o TokenManager já configurado para
// client credentials sobre o cliente mTLS informado.
func NewOAuth2Manager(cfg AuthConfig, client gateway.Doer, opts ...Option) *TokenManager {
	return NewTokenManager(NewOAuth2Fetcher(cfg, client), opts...)
}

// NewOAuth2Fetcher cria a função de busca do fluxo client credentials.
// client deve carregar o certificado de cliente; sem ele o gateway recusa
// o handshake TLS.
func NewOAuth2Fetcher(cfg AuthConfig, client gateway.Doer) TokenFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	roleType := cfg.RoleType
	if roleType == "" {
		roleType = DefaultRoleType
	}

	return func(ctx context.Context) (domain.TokenPair, error) {
		data := url.Values{}
		data.Set("grant_type", "client_credentials")

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return domain.TokenPair{}, &domain.AuthError{Detail: "erro ao criar request", Err: err}
		}

		req.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Role-Type", roleType)

		resp, err := client.Do(req)
		if err != nil {
			return domain.TokenPair{}, domain.NewNetworkError("autenticação", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return domain.TokenPair{}, domain.NewNetworkError("autenticação", err)
		}

		if resp.StatusCode != http.StatusOK {
			detail, _ := gateway.ExtractMessage(body)
			return domain.TokenPair{}, &domain.AuthError{Status: resp.StatusCode, Detail: detail}
		}

		var tokenResp tokenResponse
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return domain.TokenPair{}, &domain.AuthError{Status: resp.StatusCode, Detail: "resposta não é JSON", Err: err}
		}

		var missing []string
		if tokenResp.AccessToken == "" {
			missing = append(missing, "access_token")
		}
		if tokenResp.JWTToken == "" {
			missing = append(missing, "jwt_token")
		}
		if len(missing) > 0 {
			return domain.TokenPair{}, &domain.AuthError{
				Status: resp.StatusCode,
				Detail: fmt.Sprintf("resposta sem %s", strings.Join(missing, " e ")),
			}
		}

		return domain.TokenPair{
			AccessToken: tokenResp.AccessToken,
			JWTToken:    tokenResp.JWTToken,
			ObtainedAt:  time.Now(),
		}, nil
	}
}
