package graphql

import (
	"errors"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/services"
)

type resolver struct {
	svc Consulter
}

func (r *resolver) servicos(p graphql.ResolveParams) (interface{}, error) {
	defs := services.Definitions()
	out := make([]map[string]interface{}, 0, len(defs))
	for _, d := range defs {
		opcoes := make([]string, 0, len(d.Accepts))
		for _, o := range d.Accepts {
			opcoes = append(opcoes, string(o))
		}
		out = append(out, map[string]interface{}{
			"nome":      string(d.Name),
			"descricao": d.Description,
			"tipo":      string(d.Kind),
			"versao":    d.Version,
			"opcoes":    opcoes,
		})
	}
	return out, nil
}

func (r *resolver) consultar(p graphql.ResolveParams) (interface{}, error) {
	req := consulta.Request{
		Service: argString(p.Args, "servico"),
		TaxID:   argString(p.Args, "cnpj"),
		Options: domain.Options{
			Year:          argString(p.Args, "ano"),
			Month:         argString(p.Args, "mes"),
			ReceiptNumber: argString(p.Args, "numeroRecibo"),
			RevenueCode:   argString(p.Args, "codigoReceita"),
			Category:      argString(p.Args, "categoria"),
		},
	}

	res, err := r.svc.ConsultRequest(p.Context, req)
	if err != nil {
		return nil, errors.New(domain.UserMessage(err))
	}

	digits, _ := services.NormalizeTaxID(req.TaxID)
	return map[string]interface{}{
		"servico": strings.ToUpper(req.Service),
		"cnpj":    digits,
		"status":  res.Status,
		"dados":   res.Data,
	}, nil
}

func (r *resolver) historico(p graphql.ResolveParams) (interface{}, error) {
	limit, _ := p.Args["limite"].(int)
	records, err := r.svc.History(p.Context, argString(p.Args, "cnpj"), limit)
	if err != nil {
		return nil, errors.New(domain.UserMessage(err))
	}

	out := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		out = append(out, map[string]interface{}{
			"id":       rec.ID,
			"servico":  rec.Service,
			"cnpj":     rec.TaxID,
			"status":   rec.Status,
			"dados":    rec.Data,
			"criadoEm": rec.CreatedAt,
		})
	}
	return out, nil
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}
