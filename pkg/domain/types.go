package domain

import (
	"strings"
	"time"
)

// RequestKind seleciona um dos três endpoints fixos do gateway.
type RequestKind string

const (
	RequestConsultar RequestKind = "Consultar"
	RequestEmitir    RequestKind = "Emitir"
	RequestSolicitar RequestKind = "Solicitar"
)

// ParseRequestKind é tolerante a caixa; valores desconhecidos viram Consultar.
func ParseRequestKind(s string) RequestKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emitir":
		return RequestEmitir
	case "solicitar":
		return RequestSolicitar
	default:
		return RequestConsultar
	}
}

// TokenPair é o par de credenciais devolvido pelo endpoint de autenticação.
// Nunca é persistido.
type TokenPair struct {
	AccessToken string
	JWTToken    string
	ObtainedAt  time.Time
}

// Valid indica se o par está completo.
func (t TokenPair) Valid() bool {
	return t.AccessToken != "" && t.JWTToken != ""
}

// Options são os parâmetros livres de uma consulta. Cada serviço usa apenas
// os que declara aceitar.
type Options struct {
	Year          string `json:"ano,omitempty"`
	Month         string `json:"mes,omitempty"`
	ReceiptNumber string `json:"numeroRecibo,omitempty"`
	RevenueCode   string `json:"codigoReceita,omitempty"`
	Category      string `json:"categoria,omitempty"`
}

// Result é a resposta de sucesso do gateway: JSON decodificado ou o texto
// bruto quando o corpo não é JSON.
type Result struct {
	Status int
	Data   interface{}
}
