package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// jsonScalar devolve a resposta do gateway como veio (objeto, lista ou texto).
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Valor JSON arbitrário devolvido pelo gateway",
	Serialize:   func(value interface{}) interface{} { return value },
	ParseValue:  func(value interface{}) interface{} { return value },
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if v, ok := valueAST.(*ast.StringValue); ok {
			return v.Value
		}
		return nil
	},
})

var servicoType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Servico",
	Description: "Serviço do catálogo do Integra Contador",
	Fields: graphql.Fields{
		"nome":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"descricao": &graphql.Field{Type: graphql.String},
		"tipo":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"versao":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"opcoes":    &graphql.Field{Type: graphql.NewList(graphql.String)},
	},
})

var consultaType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Consulta",
	Fields: graphql.Fields{
		"servico": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"cnpj":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"status":  &graphql.Field{Type: graphql.Int},
		"dados":   &graphql.Field{Type: jsonScalar},
	},
})

var registroType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Registro",
	Fields: graphql.Fields{
		"id":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"servico":  &graphql.Field{Type: graphql.String},
		"cnpj":     &graphql.Field{Type: graphql.String},
		"status":   &graphql.Field{Type: graphql.Int},
		"dados":    &graphql.Field{Type: jsonScalar},
		"criadoEm": &graphql.Field{Type: graphql.DateTime},
	},
})

func buildSchema(r *resolver) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"servicos": &graphql.Field{
				Type:    graphql.NewList(servicoType),
				Resolve: r.servicos,
			},
			"consultar": &graphql.Field{
				Type: consultaType,
				Args: graphql.FieldConfigArgument{
					"servico":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"cnpj":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"ano":           &graphql.ArgumentConfig{Type: graphql.String},
					"mes":           &graphql.ArgumentConfig{Type: graphql.String},
					"numeroRecibo":  &graphql.ArgumentConfig{Type: graphql.String},
					"codigoReceita": &graphql.ArgumentConfig{Type: graphql.String},
					"categoria":     &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.consultar,
			},
			"historico": &graphql.Field{
				Type: graphql.NewList(registroType),
				Args: graphql.FieldConfigArgument{
					"cnpj":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limite": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: r.historico,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}
