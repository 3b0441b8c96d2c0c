package services

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/raywall/integra-contador/envloader"
	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/gateway"
	"gopkg.in/yaml.v3"
)

// Override permite trocar identificadores e versão sem recompilar.
type Override struct {
	SystemID  string `yaml:"idSistema"`
	ServiceID string `yaml:"idServico"`
	Version   string `yaml:"versao"`
}

type overridesFile struct {
	Services map[Name]Override `yaml:"servicos"`
}

// Resolved é a definição com os identificadores efetivos.
type Resolved struct {
	Definition
	SystemID  string
	ServiceID string
	Version   string
}

// Registry resolve definições do catálogo contra o ambiente. Pode ser
// compartilhado entre goroutines; só as sobrescritas do arquivo mudam, e
// apenas via Reload.
type Registry struct {
	requester string
	lookup    envloader.LookupFunc
	now       func() time.Time

	mu        sync.RWMutex
	overrides map[Name]Override
	source    Source
}

// Source devolve o conteúdo YAML das sobrescritas (arquivo local, S3, ...).
type Source func() ([]byte, error)

// NewRegistry cria o registro. requester é o CNPJ do contratante usado em
// todos os envelopes; lookup normalmente é os.LookupEnv.
func NewRegistry(requester string, lookup envloader.LookupFunc) *Registry {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Registry{
		requester: requester,
		lookup:    lookup,
		overrides: map[Name]Override{},
		now:       time.Now,
	}
}

// WithClock troca o relógio usado para o ano/mês corrente.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// WithOverrides aplica sobrescritas entre o ambiente e os defaults.
func (r *Registry) WithOverrides(o map[Name]Override) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range o {
		r.overrides[Name(strings.ToUpper(string(k)))] = v
	}
	return r
}

// LoadOverridesFile lê o arquivo YAML de sobrescritas (chave "servicos") e
// guarda o caminho para Reload.
func (r *Registry) LoadOverridesFile(path string) error {
	return r.LoadOverridesFrom(func() ([]byte, error) { return os.ReadFile(path) })
}

// LoadOverridesFrom carrega as sobrescritas de src e a guarda para Reload.
func (r *Registry) LoadOverridesFrom(src Source) error {
	parsed, err := readOverrides(src)
	if err != nil {
		return err
	}
	r.WithOverrides(parsed)
	r.mu.Lock()
	r.source = src
	r.mu.Unlock()
	return nil
}

// LoadOverrides interpreta o conteúdo YAML de sobrescritas.
func (r *Registry) LoadOverrides(data []byte) error {
	parsed, err := parseOverrides(data)
	if err != nil {
		return err
	}
	r.WithOverrides(parsed)
	return nil
}

// Reload relê a origem das sobrescritas e troca o conjunto inteiro. Sem
// origem configurada é um no-op; conteúdo inválido mantém o conjunto atual.
func (r *Registry) Reload() error {
	r.mu.RLock()
	src := r.source
	r.mu.RUnlock()
	if src == nil {
		return nil
	}

	parsed, err := readOverrides(src)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.overrides = parsed
	r.mu.Unlock()
	return nil
}

func readOverrides(src Source) (map[Name]Override, error) {
	data, err := src()
	if err != nil {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_SERVICES_FILE"}, Err: err}
	}
	return parseOverrides(data)
}

func parseOverrides(data []byte) (map[Name]Override, error) {
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_SERVICES_FILE"}, Reason: "YAML inválido", Err: err}
	}
	out := make(map[Name]Override, len(f.Services))
	for name, ov := range f.Services {
		upper := Name(strings.ToUpper(string(name)))
		if _, ok := Lookup(upper); !ok {
			return nil, &domain.ConfigError{Keys: []string{"SERPRO_SERVICES_FILE"}, Reason: fmt.Sprintf("serviço desconhecido %q", name)}
		}
		out[upper] = ov
	}
	return out, nil
}

// Resolve encontra o serviço e seus identificadores: ambiente primeiro,
// depois o arquivo de sobrescritas, por fim o default compilado. Quando
// nada existe, o erro nomeia cada variável ausente.
func (r *Registry) Resolve(name string) (Resolved, error) {
	def, ok := Lookup(Name(strings.ToUpper(strings.TrimSpace(name))))
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %q", domain.ErrUnknownService, name)
	}

	r.mu.RLock()
	ov := r.overrides[def.Name]
	r.mu.RUnlock()
	systemID := first(r.env(def.SystemIDEnv()), ov.SystemID, def.DefaultSystem)
	serviceID := first(r.env(def.ServiceIDEnv()), ov.ServiceID, def.DefaultService)

	var missing []string
	if systemID == "" {
		missing = append(missing, def.SystemIDEnv())
	}
	if serviceID == "" {
		missing = append(missing, def.ServiceIDEnv())
	}
	if len(missing) > 0 {
		return Resolved{}, &domain.ConfigError{
			Keys:   missing,
			Reason: fmt.Sprintf("serviço %s sem identificador configurado", def.Name),
		}
	}

	return Resolved{
		Definition: def,
		SystemID:   systemID,
		ServiceID:  serviceID,
		Version:    first(ov.Version, def.Version, "1.0"),
	}, nil
}

// Build valida o CNPJ, resolve o serviço e monta o envelope exato do gateway.
func (r *Registry) Build(name, taxID string, opts domain.Options) (gateway.Envelope, Resolved, error) {
	if _, ok := Lookup(Name(strings.ToUpper(strings.TrimSpace(name)))); !ok {
		return gateway.Envelope{}, Resolved{}, fmt.Errorf("%w: %q", domain.ErrUnknownService, name)
	}

	digits, err := NormalizeTaxID(taxID)
	if err != nil {
		return gateway.Envelope{}, Resolved{}, err
	}

	res, err := r.Resolve(name)
	if err != nil {
		return gateway.Envelope{}, Resolved{}, err
	}

	dados, err := res.build(gateway.NewDados().Set(fieldTaxID, digits), opts, r.now())
	if err != nil {
		return gateway.Envelope{}, Resolved{}, err
	}

	env, err := gateway.NewEnvelope(r.requester, digits, res.SystemID, res.ServiceID, res.Version, dados)
	if err != nil {
		return gateway.Envelope{}, Resolved{}, err
	}
	return env, res, nil
}

// Ignored lista as opções informadas que o serviço não interpreta.
func (d Definition) Ignored(opts domain.Options) []Option {
	given := map[Option]string{
		OptYear:          opts.Year,
		OptMonth:         opts.Month,
		OptReceiptNumber: opts.ReceiptNumber,
		OptRevenueCode:   opts.RevenueCode,
		OptCategory:      opts.Category,
	}
	var out []Option
	for _, o := range []Option{OptYear, OptMonth, OptReceiptNumber, OptRevenueCode, OptCategory} {
		if given[o] != "" && !d.Accept(o) {
			out = append(out, o)
		}
	}
	return out
}

// Check resolve todo o catálogo e devolve os erros por serviço.
func (r *Registry) Check() map[Name]error {
	out := map[Name]error{}
	for _, d := range Definitions() {
		if _, err := r.Resolve(string(d.Name)); err != nil {
			out[d.Name] = err
		}
	}
	return out
}

func (r *Registry) env(key string) string {
	v, _ := r.lookup(key)
	return strings.TrimSpace(v)
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
