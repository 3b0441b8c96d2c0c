package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/gateway"
)

// fieldTaxID é a chave com que todo "dados" começa.
const fieldTaxID = "cnpj"

// DefaultDCTFWebCategory é usada quando a categoria não é informada.
const DefaultDCTFWebCategory = "GERAL_MENSAL"

// builder recebe "dados" já iniciado com o CNPJ e aplica as regras do serviço.
type builder func(d *gateway.Dados, opts domain.Options, now time.Time) (*gateway.Dados, error)

func taxIDOnly(d *gateway.Dados, _ domain.Options, _ time.Time) (*gateway.Dados, error) {
	return d, nil
}

func withoutTaxID(d *gateway.Dados, _ domain.Options, _ time.Time) (*gateway.Dados, error) {
	return d.Delete(fieldTaxID), nil
}

// emptyPayload: o gateway exige dados = "" (string vazia), nunca "{}".
func emptyPayload(_ *gateway.Dados, _ domain.Options, _ time.Time) (*gateway.Dados, error) {
	return gateway.EmptyDados(), nil
}

func calendarYear(field string) builder {
	return func(d *gateway.Dados, opts domain.Options, now time.Time) (*gateway.Dados, error) {
		year, err := resolveYear(opts.Year, now)
		if err != nil {
			return nil, err
		}
		return d.Set(field, year), nil
	}
}

func buildPGMEI(d *gateway.Dados, opts domain.Options, now time.Time) (*gateway.Dados, error) {
	year, err := resolveYear(opts.Year, now)
	if err != nil {
		return nil, err
	}
	d.Set("anoCalendario", year)

	if opts.Month != "" {
		month, err := padMonth(opts.Month)
		if err != nil {
			return nil, err
		}
		d.Set("periodoApuracao", month+year)
	}
	return d, nil
}

func buildDCTFWeb(d *gateway.Dados, opts domain.Options, now time.Time) (*gateway.Dados, error) {
	year, err := resolveYear(opts.Year, now)
	if err != nil {
		return nil, err
	}
	month := opts.Month
	if month == "" {
		month = strconv.Itoa(int(now.Month()))
	}
	month, err = padMonth(month)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = DefaultDCTFWebCategory
	}

	d.Delete(fieldTaxID)
	d.Set("categoria", strings.ToUpper(category))
	d.Set("anoPA", year)
	d.Set("mesPA", month)
	if opts.ReceiptNumber != "" {
		d.Set("numeroReciboEntrega", opts.ReceiptNumber)
	}
	return d, nil
}

func buildPagtoWeb(d *gateway.Dados, opts domain.Options, _ time.Time) (*gateway.Dados, error) {
	if opts.ReceiptNumber != "" {
		d.Set("numeroDocumento", opts.ReceiptNumber)
	}
	if opts.RevenueCode != "" {
		d.Set("codigoReceita", opts.RevenueCode)
	}
	return d, nil
}

func buildSICALC(d *gateway.Dados, opts domain.Options, now time.Time) (*gateway.Dados, error) {
	if strings.TrimSpace(opts.RevenueCode) == "" {
		return nil, &domain.ValidationError{Field: string(OptRevenueCode), Reason: "é obrigatório para SICALC"}
	}
	year, err := resolveYear(opts.Year, now)
	if err != nil {
		return nil, err
	}
	month := opts.Month
	if month == "" {
		month = strconv.Itoa(int(now.Month()))
	}
	month, err = padMonth(month)
	if err != nil {
		return nil, err
	}
	d.Set("codigoReceita", opts.RevenueCode)
	d.Set("periodoApuracao", month+year)
	return d, nil
}

// resolveYear usa o ano informado ou o ano corrente.
func resolveYear(year string, now time.Time) (string, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return strconv.Itoa(now.Year()), nil
	}
	if len(year) != 4 || !isDigits(year) {
		return "", &domain.ValidationError{Field: string(OptYear), Reason: fmt.Sprintf("deve ter 4 dígitos, recebido %q", year)}
	}
	return year, nil
}

// padMonth normaliza "3" e "03" para "03".
func padMonth(month string) (string, error) {
	month = strings.TrimSpace(month)
	n, err := strconv.Atoi(month)
	if err != nil || n < 1 || n > 12 {
		return "", &domain.ValidationError{Field: string(OptMonth), Reason: fmt.Sprintf("deve estar entre 1 e 12, recebido %q", month)}
	}
	return fmt.Sprintf("%02d", n), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// NormalizeTaxID remove tudo que não é dígito e exige exatamente 14 dígitos.
func NormalizeTaxID(taxID string) (string, error) {
	var b strings.Builder
	for _, r := range taxID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) != 14 {
		return "", &domain.ValidationError{Field: "cnpj", Reason: fmt.Sprintf("deve conter 14 dígitos, recebido %d", len(digits))}
	}
	return digits, nil
}
