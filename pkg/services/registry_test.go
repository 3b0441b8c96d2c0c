package services

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	requester = "11222333000181"
	taxID     = "51564549000140"
)

func envLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func newTestRegistry(env map[string]string) *Registry {
	clock := func() time.Time { return time.Date(2025, time.July, 10, 12, 0, 0, 0, time.UTC) }
	return NewRegistry(requester, envLookup(env)).WithClock(clock)
}

// dadosOf decodifica pedidoDados.dados de volta para um mapa.
func dadosOf(t *testing.T, raw string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestBuild_Envelope(t *testing.T) {
	reg := newTestRegistry(nil)

	for _, def := range Definitions() {
		if def.DefaultService == "" {
			continue
		}
		t.Run(string(def.Name), func(t *testing.T) {
			env, res, err := reg.Build(string(def.Name), "51.564.549/0001-40", domain.Options{RevenueCode: "1234"})
			require.NoError(t, err)

			assert.Equal(t, taxID, env.Contribuinte.Numero)
			assert.Equal(t, 2, env.Contribuinte.Tipo)
			assert.Equal(t, requester, env.Contratante.Numero)
			assert.Equal(t, requester, env.AutorPedidoDados.Numero)
			assert.Equal(t, res.SystemID, env.PedidoDados.IDSistema)
			assert.Equal(t, res.ServiceID, env.PedidoDados.IDServico)
			assert.Equal(t, def.DefaultSystem, env.PedidoDados.IDSistema)
			assert.Equal(t, def.Version, env.PedidoDados.VersaoSistema)
		})
	}
}

func TestBuild_CNPJInvalido(t *testing.T) {
	reg := newTestRegistry(nil)

	for _, in := range []string{"", "123", "5156454900014", "515645490001400", "abc.def.ghi/jklm-no"} {
		_, _, err := reg.Build("CND", in, domain.Options{})

		var valErr *domain.ValidationError
		require.ErrorAs(t, err, &valErr, "entrada %q", in)
		assert.Equal(t, "cnpj", valErr.Field)
	}
}

func TestBuild_Parcelamentos(t *testing.T) {
	reg := newTestRegistry(nil)
	opts := domain.Options{Year: "2024", Month: "03", Category: "X", ReceiptNumber: "9", RevenueCode: "1"}

	for _, name := range []Name{ParcsnPedidos, ParcmeiPedidos} {
		env, _, err := reg.Build(string(name), taxID, opts)
		require.NoError(t, err)
		assert.Equal(t, "", env.PedidoDados.Dados)

		body, err := env.Bytes()
		require.NoError(t, err)
		assert.Contains(t, string(body), `"dados":""`)
	}
}

func TestBuild_SemCNPJNosDados(t *testing.T) {
	reg := newTestRegistry(nil)

	t.Run("DCTFWEB", func(t *testing.T) {
		env, _, err := reg.Build("DCTFWEB", taxID, domain.Options{Year: "2024", Month: "3", ReceiptNumber: "R-1"})
		require.NoError(t, err)

		assert.Equal(t, `{"categoria":"GERAL_MENSAL","anoPA":"2024","mesPA":"03","numeroReciboEntrega":"R-1"}`, env.PedidoDados.Dados)
		assert.NotContains(t, dadosOf(t, env.PedidoDados.Dados), "cnpj")
		assert.Equal(t, taxID, env.Contribuinte.Numero)
	})

	t.Run("DCTFWEB defaults", func(t *testing.T) {
		env, _, err := reg.Build("dctfweb", taxID, domain.Options{Category: "13o_salario"})
		require.NoError(t, err)

		d := dadosOf(t, env.PedidoDados.Dados)
		assert.Equal(t, "2025", d["anoPA"])
		assert.Equal(t, "07", d["mesPA"])
		assert.Equal(t, "13O_SALARIO", d["categoria"])
	})

	t.Run("CAIXA_POSTAL", func(t *testing.T) {
		env, _, err := reg.Build("CAIXA_POSTAL", taxID, domain.Options{Year: "2024"})
		require.NoError(t, err)
		assert.Equal(t, "{}", env.PedidoDados.Dados)
	})
}

func TestBuild_PGMEI(t *testing.T) {
	reg := newTestRegistry(nil)

	t.Run("Ano e mês geram período de apuração", func(t *testing.T) {
		env, _, err := reg.Build("PGMEI", taxID, domain.Options{Year: "2024", Month: "03"})
		require.NoError(t, err)

		assert.Equal(t, `{"cnpj":"51564549000140","anoCalendario":"2024","periodoApuracao":"032024"}`, env.PedidoDados.Dados)
	})

	t.Run("Mês sem zero à esquerda", func(t *testing.T) {
		env, _, err := reg.Build("PGMEI", taxID, domain.Options{Year: "2023", Month: "3"})
		require.NoError(t, err)
		assert.Equal(t, "032023", dadosOf(t, env.PedidoDados.Dados)["periodoApuracao"])
	})

	t.Run("Sem mês não há período", func(t *testing.T) {
		env, _, err := reg.Build("PGMEI", taxID, domain.Options{})
		require.NoError(t, err)

		d := dadosOf(t, env.PedidoDados.Dados)
		assert.Equal(t, "2025", d["anoCalendario"])
		assert.NotContains(t, d, "periodoApuracao")
	})

	t.Run("Mês inválido", func(t *testing.T) {
		_, _, err := reg.Build("PGMEI", taxID, domain.Options{Month: "13"})
		var valErr *domain.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Equal(t, "mes", valErr.Field)
	})

	t.Run("Ano inválido", func(t *testing.T) {
		_, _, err := reg.Build("DIVIDA_ATIVA", taxID, domain.Options{Year: "24"})
		var valErr *domain.ValidationError
		require.ErrorAs(t, err, &valErr)
	})
}

func TestBuild_AnoCalendario(t *testing.T) {
	reg := newTestRegistry(nil)

	for _, name := range []string{"PGMEI", "DIVIDA_ATIVA", "PGDASD"} {
		env, _, err := reg.Build(name, taxID, domain.Options{Year: "2022"})
		require.NoError(t, err)
		assert.Equal(t, "2022", dadosOf(t, env.PedidoDados.Dados)["anoCalendario"], name)
	}
}

func TestResolve(t *testing.T) {
	t.Run("Ambiente sobrescreve default", func(t *testing.T) {
		reg := newTestRegistry(map[string]string{
			"SERPRO_CND_SYSTEM_ID":  "SITFIS2",
			"SERPRO_CND_SERVICE_ID": "RELATORIOSITFIS99",
		})

		res, err := reg.Resolve("cnd")
		require.NoError(t, err)
		assert.Equal(t, "SITFIS2", res.SystemID)
		assert.Equal(t, "RELATORIOSITFIS99", res.ServiceID)
		assert.Equal(t, domain.RequestEmitir, res.Kind)
	})

	t.Run("Sem default nem ambiente nomeia a chave ausente", func(t *testing.T) {
		reg := newTestRegistry(nil)

		_, err := reg.Resolve("SICALC")
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, []string{"SERPRO_SICALC_SERVICE_ID"}, cfgErr.Keys)

		_, _, err = reg.Build("SICALC", taxID, domain.Options{RevenueCode: "1234"})
		assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	})

	t.Run("Serviço desconhecido", func(t *testing.T) {
		reg := newTestRegistry(nil)

		_, err := reg.Resolve("NAO_EXISTE")
		assert.True(t, errors.Is(err, domain.ErrUnknownService))
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("Arquivo de sobrescritas fica entre ambiente e default", func(t *testing.T) {
		reg := newTestRegistry(map[string]string{"SERPRO_SICALC_SYSTEM_ID": "SICALC_ENV"})
		require.NoError(t, reg.LoadOverrides([]byte(`
servicos:
  SICALC:
    idSistema: SICALC_ARQ
    idServico: CONSOLIDARGERARDARF51
  pgmei:
    versao: "2.1"
`)))

		res, err := reg.Resolve("SICALC")
		require.NoError(t, err)
		assert.Equal(t, "SICALC_ENV", res.SystemID)
		assert.Equal(t, "CONSOLIDARGERARDARF51", res.ServiceID)

		pg, err := reg.Resolve("PGMEI")
		require.NoError(t, err)
		assert.Equal(t, "2.1", pg.Version)
	})

	t.Run("Arquivo com serviço desconhecido", func(t *testing.T) {
		reg := newTestRegistry(nil)
		err := reg.LoadOverrides([]byte("servicos:\n  FOO:\n    idSistema: X\n"))
		assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	})

	t.Run("Check aponta apenas os serviços sem identificador", func(t *testing.T) {
		problems := newTestRegistry(nil).Check()
		assert.Len(t, problems, 1)
		assert.Contains(t, problems, SICALC)
	})
}

func TestBuild_SICALC(t *testing.T) {
	reg := newTestRegistry(map[string]string{"SERPRO_SICALC_SERVICE_ID": "CONSOLIDARGERARDARF51"})

	_, _, err := reg.Build("SICALC", taxID, domain.Options{})
	var valErr *domain.ValidationError
	require.ErrorAs(t, err, &valErr)

	env, _, err := reg.Build("SICALC", taxID, domain.Options{RevenueCode: "0190", Year: "2024", Month: "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"cnpj":"51564549000140","codigoReceita":"0190","periodoApuracao":"012024"}`, env.PedidoDados.Dados)
}

func TestDefinition_Ignored(t *testing.T) {
	def, ok := Lookup(CND)
	require.True(t, ok)

	assert.Equal(t, []Option{OptYear, OptCategory}, def.Ignored(domain.Options{Year: "2024", Category: "X"}))

	pg, _ := Lookup(PGMEI)
	assert.Empty(t, pg.Ignored(domain.Options{Year: "2024", Month: "01"}))
}

func TestRegistry_Reload(t *testing.T) {
	path := t.TempDir() + "/servicos.yaml"
	require.NoError(t, os.WriteFile(path, []byte("servicos:\n  SICALC:\n    idServico: PRIMEIRO\n"), 0o600))

	reg := newTestRegistry(nil)
	require.NoError(t, reg.Reload(), "sem arquivo é no-op")
	require.NoError(t, reg.LoadOverridesFile(path))

	res, err := reg.Resolve("SICALC")
	require.NoError(t, err)
	assert.Equal(t, "PRIMEIRO", res.ServiceID)

	require.NoError(t, os.WriteFile(path, []byte("servicos:\n  SICALC:\n    idServico: SEGUNDO\n"), 0o600))
	require.NoError(t, reg.Reload())
	res, err = reg.Resolve("SICALC")
	require.NoError(t, err)
	assert.Equal(t, "SEGUNDO", res.ServiceID)

	require.NoError(t, os.WriteFile(path, []byte("servicos: ["), 0o600))
	assert.Error(t, reg.Reload())
	res, err = reg.Resolve("SICALC")
	require.NoError(t, err)
	assert.Equal(t, "SEGUNDO", res.ServiceID, "arquivo inválido mantém o conjunto atual")

	_, err = newTestRegistry(nil).Resolve("SICALC")
	assert.Error(t, err)
	assert.Error(t, newTestRegistry(nil).LoadOverridesFile(t.TempDir()+"/nao-existe.yaml"))
}
