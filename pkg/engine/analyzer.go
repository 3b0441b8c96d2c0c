package engine

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/credentials"
	"github.com/raywall/integra-contador/pkg/services"
)

// ValidationReport contém o resultado detalhado da análise.
type ValidationReport struct {
	Valid       bool              `json:"valid"`
	Credentials string            `json:"credentials,omitempty"`
	Services    map[string]string `json:"services"`
	Errors      []string          `json:"errors,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Analyze verifica, sem chamar o gateway, se o processo conseguiria subir:
// credenciais e certificado, arquivo de sobrescritas e a resolução de cada
// serviço do catálogo. Serviços sem identificadores viram avisos, pois só
// falham quando chamados.
func Analyze(ctx context.Context, cfg *config.Config, deps Dependencies) *ValidationReport {
	report := &ValidationReport{
		Valid:    true,
		Services: map[string]string{},
		Errors:   []string{},
		Warnings: []string{},
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = &credentials.Resolver{Region: cfg.AWS.Region}
	}
	creds, err := credentials.Load(ctx, cfg.Serpro, resolver)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Credenciais: %v", err))
	} else {
		report.Credentials = creds.String()
	}

	lookup := deps.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	reg := services.NewRegistry(cfg.Serpro.RequesterCNPJ, lookup)
	if cfg.Serpro.ServicesFile != "" {
		loader := deps.Loader
		if loader == nil {
			loader = NewUniversalLoader(cfg.AWS.Region)
		}
		if err := reg.LoadOverridesFrom(loader.Source(ctx, cfg.Serpro.ServicesFile)); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Serviços: %v", err))
		}
	}

	for _, def := range services.Definitions() {
		res, err := reg.Resolve(string(def.Name))
		if err != nil {
			report.Services[string(def.Name)] = "indisponível"
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}
		report.Services[string(def.Name)] = fmt.Sprintf("%s/%s v%s (%s)", res.SystemID, res.ServiceID, res.Version, res.Kind)
	}
	sort.Strings(report.Warnings)

	if len(report.Errors) > 0 {
		report.Valid = false
	}
	return report
}
