package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/integra-contador/envloader"
	"github.com/raywall/integra-contador/pkg/domain"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Load lê a configuração do ambiente do processo e a valida.
func Load() (*Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith lê a configuração a partir de lookup. Variáveis obrigatórias
// ausentes viram um *domain.ConfigError com a lista exata de chaves.
func LoadWith(lookup envloader.LookupFunc) (*Config, error) {
	cfg := &Config{}
	if err := envloader.LoadWith(cfg, lookup); err != nil {
		var missing *envloader.MissingError
		if errors.As(err, &missing) {
			return nil, &domain.ConfigError{Keys: missing.Keys}
		}
		return nil, &domain.ConfigError{Err: err}
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *Config) error {
	if err := cv.validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return &domain.ConfigError{Reason: strings.Join(errMsgs, "; ")}
		}
		return &domain.ConfigError{Err: err}
	}

	if err := cv.validateSemantics(cfg); err != nil {
		return err
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *Config) error {
	s := cfg.Serpro
	// Certificado: PFX ou o par PEM completo.
	hasPFX := s.PFX != "" || s.PFXPath != ""
	hasCert := s.CertPEM != "" || s.CertPEMPath != ""
	hasKey := s.KeyPEM != "" || s.KeyPEMPath != ""

	if !hasPFX {
		var keys []string
		if !hasCert {
			keys = append(keys, "SERPRO_CERT_PEM|SERPRO_CERT_PEM_PATH")
		}
		if !hasKey {
			keys = append(keys, "SERPRO_KEY_PEM|SERPRO_KEY_PEM_PATH")
		}
		if len(keys) > 0 {
			return &domain.ConfigError{
				Keys:   keys,
				Reason: "informe SERPRO_CERT_PFX/SERPRO_CERT_PFX_PATH ou o par certificado+chave PEM",
			}
		}
	}

	if cfg.Storage.Driver == "dynamodb" && cfg.Storage.Table == "" {
		return &domain.ConfigError{Keys: []string{"STORAGE_TABLE"}}
	}
	return nil
}
