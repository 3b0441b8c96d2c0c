package config

import (
	"strings"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
)

// Config é a configuração raiz do processo, carregada do ambiente uma única vez.
type Config struct {
	Serpro  SerproConf
	Logging LoggingConf
	Metrics MetricsConf
	Server  ServerConf
	Storage StorageConf
	Cache   CacheConf
	Events  EventsConf
	AWS     AWSConf
}

// SerproConf reúne credenciais, certificado e endpoints do Integra Contador.
//
// Os campos de certificado aceitam conteúdo inline ou uma referência
// (s3://bucket/chave, secretsmanager:<id>, ssm:<nome>); os campos *Path
// apontam para arquivos locais. Um bundle PFX, quando presente, tem
// precedência sobre o par PEM.
type SerproConf struct {
	ClientID     string `env:"SERPRO_CLIENT_ID" envRequired:"true"`
	ClientSecret string `env:"SERPRO_CLIENT_SECRET" envRequired:"true"`

	CertPEM       string `env:"SERPRO_CERT_PEM"`
	CertPEMPath   string `env:"SERPRO_CERT_PEM_PATH"`
	KeyPEM        string `env:"SERPRO_KEY_PEM"`
	KeyPEMPath    string `env:"SERPRO_KEY_PEM_PATH"`
	PFX           string `env:"SERPRO_CERT_PFX"` // base64
	PFXPath       string `env:"SERPRO_CERT_PFX_PATH"`
	PFXPassphrase string `env:"SERPRO_CERT_PASSWORD"`
	CAPath        string `env:"SERPRO_CA_PEM_PATH"`

	RequesterCNPJ string `env:"SERPRO_CNPJ_CONTRATANTE" envRequired:"true" validate:"numeric,len=14"`
	RoleType      string `env:"SERPRO_ROLE_TYPE" envDefault:"TERCEIROS"`

	AuthURL      string `env:"SERPRO_AUTH_URL" envDefault:"https://autenticacao.sapi.serpro.gov.br/authenticate" validate:"url"`
	BaseURL      string `env:"SERPRO_BASE_URL" envDefault:"https://gateway.apiserpro.serpro.gov.br/integra-contador/v1" validate:"url"`
	ConsultarURL string `env:"SERPRO_CONSULTAR_URL" validate:"omitempty,url"`
	EmitirURL    string `env:"SERPRO_EMITIR_URL" validate:"omitempty,url"`
	SolicitarURL string `env:"SERPRO_SOLICITAR_URL" validate:"omitempty,url"`

	Timeout     time.Duration `env:"SERPRO_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	AuthTimeout time.Duration `env:"SERPRO_AUTH_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	ServicesFile string `env:"SERPRO_SERVICES_FILE"`
}

// URLFor devolve o endpoint do tipo de requisição. Tipos desconhecidos caem em Consultar.
func (s SerproConf) URLFor(kind domain.RequestKind) string {
	base := strings.TrimRight(s.BaseURL, "/")
	switch kind {
	case domain.RequestEmitir:
		if s.EmitirURL != "" {
			return s.EmitirURL
		}
		return base + "/Emitir"
	case domain.RequestSolicitar:
		if s.SolicitarURL != "" {
			return s.SolicitarURL
		}
		return base + "/Solicitar"
	default:
		if s.ConsultarURL != "" {
			return s.ConsultarURL
		}
		return base + "/Consultar"
	}
}

type LoggingConf struct {
	Enabled bool   `env:"LOG_ENABLED" envDefault:"true"`
	Level   string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format  string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

type MetricsConf struct {
	Datadog DatadogConf
}

type DatadogConf struct {
	Enabled   bool   `env:"DD_ENABLED"`
	Addr      string `env:"DD_AGENT_HOST" envDefault:"127.0.0.1:8125" validate:"required_if=Enabled true"`
	Namespace string `env:"DD_NAMESPACE" envDefault:"integra."`
}

type ServerConf struct {
	Port           int           `env:"SERVER_PORT" envDefault:"8080" validate:"gt=0,lt=65536"`
	Runtime        string        `env:"SERVER_RUNTIME" envDefault:"local" validate:"oneof=local lambda"`
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"45s"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS" envDefault:"5" validate:"gte=0"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"10" validate:"gte=0"`
	GraphQL        bool          `env:"GRAPHQL_ENABLED" envDefault:"true"`
}

type StorageConf struct {
	Driver string `env:"STORAGE_DRIVER" envDefault:"none" validate:"oneof=none postgres dynamodb"`
	DSN    string `env:"DATABASE_URL" validate:"required_if=Driver postgres"`
	Table  string `env:"STORAGE_TABLE" envDefault:"consultas"`
	// TTL só vale para o DynamoDB (atributo expira_em); zero desliga.
	TTL time.Duration `env:"STORAGE_TTL"`
}

type CacheConf struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	TTL           time.Duration `env:"CACHE_TTL" envDefault:"10m"`
}

type EventsConf struct {
	QueueURL string `env:"SQS_QUEUE_URL" validate:"omitempty,url"`
	// ReloadQueueURL recebe avisos de alteração do arquivo de serviços.
	ReloadQueueURL string `env:"SERPRO_RELOAD_QUEUE_URL" validate:"omitempty,url"`
}

type AWSConf struct {
	Region string `env:"AWS_REGION" envDefault:"sa-east-1"`
}
