// Package services é o catálogo fechado de serviços do Integra Contador.
// Cada variante declara seus identificadores, tipo de requisição, versão,
// opções aceitas e o construtor do objeto "dados".
package services

import (
	"sort"

	"github.com/raywall/integra-contador/pkg/domain"
)

// Name identifica um serviço do catálogo.
type Name string

const (
	CND             Name = "CND"
	SitfisProtocolo Name = "SITFIS_PROTOCOLO"
	PGMEI           Name = "PGMEI"
	DividaAtiva     Name = "DIVIDA_ATIVA"
	PGDASD          Name = "PGDASD"
	CCMEI           Name = "CCMEI"
	CCMEISituacao   Name = "CCMEI_SITUACAO"
	DCTFWeb         Name = "DCTFWEB"
	CaixaPostal     Name = "CAIXA_POSTAL"
	ParcsnPedidos   Name = "PARCSN_PEDIDOS"
	ParcmeiPedidos  Name = "PARCMEI_PEDIDOS"
	Procuracoes     Name = "PROCURACOES"
	DEFIS           Name = "DEFIS"
	DASNSIMEI       Name = "DASNSIMEI"
	PagtoWeb        Name = "PAGTOWEB"
	SICALC          Name = "SICALC"
)

// Option é um parâmetro opcional que o serviço sabe interpretar.
type Option string

const (
	OptYear          Option = "ano"
	OptMonth         Option = "mes"
	OptReceiptNumber Option = "numeroRecibo"
	OptRevenueCode   Option = "codigoReceita"
	OptCategory      Option = "categoria"
)

// Definition é imutável e definida em tempo de compilação.
type Definition struct {
	Name           Name               `json:"nome"`
	Description    string             `json:"descricao"`
	DefaultSystem  string             `json:"idSistemaPadrao,omitempty"`
	DefaultService string             `json:"idServicoPadrao,omitempty"`
	Kind           domain.RequestKind `json:"tipo"`
	Version        string             `json:"versao"`
	Accepts        []Option           `json:"opcoes,omitempty"`

	build builder
}

// SystemIDEnv é a variável que sobrescreve o idSistema.
func (d Definition) SystemIDEnv() string { return "SERPRO_" + string(d.Name) + "_SYSTEM_ID" }

// ServiceIDEnv é a variável que sobrescreve o idServico.
func (d Definition) ServiceIDEnv() string { return "SERPRO_" + string(d.Name) + "_SERVICE_ID" }

// Accept informa se o serviço interpreta a opção.
func (d Definition) Accept(o Option) bool {
	for _, a := range d.Accepts {
		if a == o {
			return true
		}
	}
	return false
}

// catalog é o único ponto de registro dos serviços.
var catalog = map[Name]Definition{
	CND: {
		Name: CND, Description: "Relatório de situação fiscal (certidão)",
		DefaultSystem: "SITFIS", DefaultService: "RELATORIOSITFIS92",
		Kind: domain.RequestEmitir, Version: "2.0", build: taxIDOnly,
	},
	SitfisProtocolo: {
		Name: SitfisProtocolo, Description: "Solicita protocolo do relatório de situação fiscal",
		DefaultSystem: "SITFIS", DefaultService: "SOLICITARPROTOCOLO91",
		Kind: domain.RequestSolicitar, Version: "2.0", build: taxIDOnly,
	},
	PGMEI: {
		Name: PGMEI, Description: "Gera DAS do MEI",
		DefaultSystem: "PGMEI", DefaultService: "GERARDASPDF21",
		Kind: domain.RequestEmitir, Version: "1.0",
		Accepts: []Option{OptYear, OptMonth}, build: buildPGMEI,
	},
	DividaAtiva: {
		Name: DividaAtiva, Description: "Consulta dívida ativa do MEI",
		DefaultSystem: "PGMEI", DefaultService: "DIVIDAATIVA24",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptYear}, build: calendarYear("anoCalendario"),
	},
	PGDASD: {
		Name: PGDASD, Description: "Extrato do Simples Nacional",
		DefaultSystem: "PGDASD", DefaultService: "CONSEXTRATO16",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptYear}, build: calendarYear("anoCalendario"),
	},
	CCMEI: {
		Name: CCMEI, Description: "Dados do certificado da condição de MEI",
		DefaultSystem: "CCMEI", DefaultService: "DADOSCCMEI122",
		Kind: domain.RequestConsultar, Version: "1.0", build: taxIDOnly,
	},
	CCMEISituacao: {
		Name: CCMEISituacao, Description: "Situação cadastral do MEI",
		DefaultSystem: "CCMEI", DefaultService: "CCMEISITCADASTRAL123",
		Kind: domain.RequestConsultar, Version: "1.0", build: taxIDOnly,
	},
	DCTFWeb: {
		Name: DCTFWeb, Description: "Recibo de transmissão da DCTFWeb",
		DefaultSystem: "DCTFWEB", DefaultService: "CONSRECIBO32",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptYear, OptMonth, OptCategory, OptReceiptNumber}, build: buildDCTFWeb,
	},
	CaixaPostal: {
		Name: CaixaPostal, Description: "Mensagens da caixa postal do contribuinte",
		DefaultSystem: "CAIXAPOSTAL", DefaultService: "MSGCONTRIBUINTE61",
		Kind: domain.RequestConsultar, Version: "1.0", build: withoutTaxID,
	},
	ParcsnPedidos: {
		Name: ParcsnPedidos, Description: "Pedidos de parcelamento do Simples Nacional",
		DefaultSystem: "PARCSN", DefaultService: "PEDIDOSPARC163",
		Kind: domain.RequestConsultar, Version: "1.0", build: emptyPayload,
	},
	ParcmeiPedidos: {
		Name: ParcmeiPedidos, Description: "Pedidos de parcelamento do MEI",
		DefaultSystem: "PARCMEI", DefaultService: "PEDIDOSPARC203",
		Kind: domain.RequestConsultar, Version: "1.0", build: emptyPayload,
	},
	Procuracoes: {
		Name: Procuracoes, Description: "Procurações eletrônicas",
		DefaultSystem: "PROCURACOES", DefaultService: "OBTERPROCURACAO41",
		Kind: domain.RequestConsultar, Version: "1", build: taxIDOnly,
	},
	DEFIS: {
		Name: DEFIS, Description: "Declarações DEFIS transmitidas",
		DefaultSystem: "DEFIS", DefaultService: "CONSDECLARACAO142",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptYear}, build: calendarYear("ano"),
	},
	DASNSIMEI: {
		Name: DASNSIMEI, Description: "Última declaração DASN-SIMEI",
		DefaultSystem: "DASNSIMEI", DefaultService: "CONSULTIMADECREC152",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptYear}, build: calendarYear("anoCalendario"),
	},
	PagtoWeb: {
		Name: PagtoWeb, Description: "Pagamentos de documentos de arrecadação",
		DefaultSystem: "PAGTOWEB", DefaultService: "PAGAMENTOS71",
		Kind: domain.RequestConsultar, Version: "1.0",
		Accepts: []Option{OptReceiptNumber, OptRevenueCode}, build: buildPagtoWeb,
	},
	SICALC: {
		Name: SICALC, Description: "Consolida e gera DARF",
		DefaultSystem: "SICALC",
		Kind:          domain.RequestEmitir, Version: "1.0",
		Accepts: []Option{OptRevenueCode, OptYear, OptMonth}, build: buildSICALC,
	},
}

// Definitions lista o catálogo ordenado por nome.
func Definitions() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup devolve a definição do serviço, se existir.
func Lookup(name Name) (Definition, bool) {
	d, ok := catalog[name]
	return d, ok
}
