package config

import (
	"testing"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"SERPRO_CLIENT_ID":        "client",
		"SERPRO_CLIENT_SECRET":    "secret",
		"SERPRO_CERT_PFX_PATH":    "/certs/empresa.pfx",
		"SERPRO_CNPJ_CONTRATANTE": "51564549000140",
	}
}

func TestLoadWith(t *testing.T) {
	t.Run("Deve aplicar defaults", func(t *testing.T) {
		cfg, err := LoadWith(lookupFrom(baseEnv()))
		require.NoError(t, err)

		assert.Equal(t, "TERCEIROS", cfg.Serpro.RoleType)
		assert.Equal(t, 30*time.Second, cfg.Serpro.Timeout)
		assert.Equal(t, "none", cfg.Storage.Driver)
		assert.Equal(t, "local", cfg.Server.Runtime)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("Deve listar cada chave obrigatória ausente", func(t *testing.T) {
		env := baseEnv()
		delete(env, "SERPRO_CLIENT_ID")
		delete(env, "SERPRO_CLIENT_SECRET")

		_, err := LoadWith(lookupFrom(env))

		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, []string{"SERPRO_CLIENT_ID", "SERPRO_CLIENT_SECRET"}, cfgErr.Keys)
	})

	t.Run("Deve exigir algum certificado", func(t *testing.T) {
		env := baseEnv()
		delete(env, "SERPRO_CERT_PFX_PATH")
		env["SERPRO_CERT_PEM_PATH"] = "/certs/cert.pem"

		_, err := LoadWith(lookupFrom(env))

		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, []string{"SERPRO_KEY_PEM|SERPRO_KEY_PEM_PATH"}, cfgErr.Keys)
	})

	t.Run("Deve rejeitar CNPJ contratante malformado", func(t *testing.T) {
		env := baseEnv()
		env["SERPRO_CNPJ_CONTRATANTE"] = "123"

		_, err := LoadWith(lookupFrom(env))

		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Error(), "RequesterCNPJ")
	})

	t.Run("Postgres exige DATABASE_URL", func(t *testing.T) {
		env := baseEnv()
		env["STORAGE_DRIVER"] = "postgres"

		_, err := LoadWith(lookupFrom(env))
		assert.Error(t, err)
	})
}

func TestSerproConf_URLFor(t *testing.T) {
	s := SerproConf{BaseURL: "https://gw.example/integra-contador/v1/"}

	assert.Equal(t, "https://gw.example/integra-contador/v1/Consultar", s.URLFor(domain.RequestConsultar))
	assert.Equal(t, "https://gw.example/integra-contador/v1/Emitir", s.URLFor(domain.RequestEmitir))
	assert.Equal(t, "https://gw.example/integra-contador/v1/Solicitar", s.URLFor(domain.RequestSolicitar))
	assert.Equal(t, "https://gw.example/integra-contador/v1/Consultar", s.URLFor(domain.RequestKind("Apoiar")))

	s.EmitirURL = "https://outro.example/emitir"
	assert.Equal(t, "https://outro.example/emitir", s.URLFor(domain.RequestEmitir))
}
