package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUnknownService é devolvido quando o nome do serviço não existe no catálogo.
var ErrUnknownService = errors.New("serviço desconhecido")

// ConfigError indica configuração ausente ou inválida. É fatal: o processo
// não consegue atender nenhuma chamada ao gateway enquanto não for corrigido.
type ConfigError struct {
	// Keys lista exatamente as chaves de configuração ausentes.
	Keys   []string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuração inválida")
	if len(e.Keys) > 0 {
		b.WriteString(": ausente(s) ")
		b.WriteString(strings.Join(e.Keys, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError rejeita uma requisição antes de qualquer chamada de rede.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "requisição inválida: " + e.Reason
	}
	return fmt.Sprintf("requisição inválida: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AuthError representa falha no handshake OAuth com o gateway.
type AuthError struct {
	Status int
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "falha de autenticação no gateway"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError cobre timeout, conexão recusada/reiniciada e falha de handshake TLS.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("tempo esgotado em %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("falha de rede em %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GatewayError é uma resposta não-2xx de um endpoint de serviço. Message já
// vem no formato "[codigo] texto | [codigo] texto".
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway retornou HTTP %d: %s", e.Status, e.Message)
}

// Unauthorized indica que o token em uso foi recusado pelo gateway.
func (e *GatewayError) Unauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// ErrorKind classifica os erros da taxonomia acima.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfig
	KindValidation
	KindAuth
	KindNetwork
	KindGateway
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindGateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// KindOf devolve a categoria do erro, percorrendo a cadeia de wrapping.
func KindOf(err error) ErrorKind {
	var (
		cfgErr  *ConfigError
		valErr  *ValidationError
		authErr *AuthError
		netErr  *NetworkError
		gwErr   *GatewayError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &valErr), errors.Is(err, ErrUnknownService):
		return KindValidation
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &gwErr):
		return KindGateway
	default:
		return KindUnknown
	}
}

// NewNetworkError classifica a falha de ida e volta. Prazo esgotado (do
// chamador ou do timeout fixo) e erros net.Error com Timeout() viram
// Timeout=true; cancelamento, recusa de conexão e falha de TLS não.
func NewNetworkError(op string, err error) *NetworkError {
	var ne net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

// UserMessage é o texto mostrado a quem consumiu a operação.
func UserMessage(err error) string {
	return "operação falhou: " + err.Error()
}
