package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/engine"
	"github.com/raywall/integra-contador/pkg/logger"
	"github.com/raywall/integra-contador/pkg/services"
)

const usage = `Uso: toolkit <comando> [flags]

Comandos:
  servicos   lista o catálogo de serviços
  validar    verifica configuração, certificado e identificadores dos serviços
  consultar  executa uma consulta: -servico NOME -cnpj CNPJ [-ano -mes -recibo -receita -categoria]
`

var loadConfig = config.Load

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, engine.Dependencies{}))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, deps engine.Dependencies) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "servicos":
		return runServicos(args[1:], stdout, stderr)
	case "validar":
		return runValidar(ctx, args[1:], stdout, stderr, deps)
	case "consultar":
		return runConsultar(ctx, args[1:], stdout, stderr, deps)
	default:
		fmt.Fprintf(stderr, "comando desconhecido: %s\n\n%s", args[0], usage)
		return 2
	}
}

func runServicos(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("servicos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "saída em JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	defs := services.Definitions()
	if *asJSON {
		return writeJSON(stdout, stderr, defs)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVIÇO\tTIPO\tVERSÃO\tOPÇÕES\tDESCRIÇÃO")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", d.Name, d.Kind, d.Version, d.Accepts, d.Description)
	}
	tw.Flush()
	return 0
}

func runValidar(ctx context.Context, args []string, stdout, stderr io.Writer, deps engine.Dependencies) int {
	fs := flag.NewFlagSet("validar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "saída em JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "❌ Erro de configuração:\n%v\n", err)
		return 1
	}
	logger.Configure(config.LoggingConf{Enabled: false})

	report := engine.Analyze(ctx, cfg, deps)
	if *asJSON {
		if code := writeJSON(stdout, stderr, report); code != 0 {
			return code
		}
	} else {
		printReport(stdout, report)
	}

	if !report.Valid {
		return 1
	}
	return 0
}

func printReport(w io.Writer, report *engine.ValidationReport) {
	if report.Credentials != "" {
		fmt.Fprintf(w, "Credenciais: %s\n", report.Credentials)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range services.Definitions() {
		fmt.Fprintf(tw, "  %s\t%s\n", d.Name, report.Services[string(d.Name)])
	}
	tw.Flush()
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warn)
	}
	if !report.Valid {
		fmt.Fprintln(w, "❌ A configuração contém erros:")
		for _, e := range report.Errors {
			fmt.Fprintf(w, " - %s\n", e)
		}
		return
	}
	fmt.Fprintln(w, "✅ Configuração válida")
}

func runConsultar(ctx context.Context, args []string, stdout, stderr io.Writer, deps engine.Dependencies) int {
	fs := flag.NewFlagSet("consultar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var req consulta.Request
	fs.StringVar(&req.Service, "servico", "", "nome do serviço (ex.: CND, PGMEI)")
	fs.StringVar(&req.TaxID, "cnpj", "", "CNPJ do contribuinte")
	fs.StringVar(&req.Year, "ano", "", "ano")
	fs.StringVar(&req.Month, "mes", "", "mês")
	fs.StringVar(&req.ReceiptNumber, "recibo", "", "número do recibo ou documento")
	fs.StringVar(&req.RevenueCode, "receita", "", "código de receita")
	fs.StringVar(&req.Category, "categoria", "", "categoria (DCTFWEB)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if req.Service == "" || req.TaxID == "" {
		fmt.Fprintln(stderr, "Erro: flags -servico e -cnpj são obrigatórias")
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "❌ Erro de configuração:\n%v\n", err)
		return 1
	}
	logger.Configure(cfg.Logging)

	se, err := engine.NewServiceEngine(ctx, cfg, deps)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %s\n", domain.UserMessage(err))
		return 1
	}
	defer se.Close()

	res, err := se.Service.ConsultRequest(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %s\n", domain.UserMessage(err))
		return 1
	}
	return writeJSON(stdout, stderr, map[string]interface{}{"status": res.Status, "dados": res.Data})
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "erro ao serializar saída: %v\n", err)
		return 1
	}
	return 0
}
