// Package graphql expõe o catálogo, a consulta e o histórico via GraphQL.
package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/raywall/integra-contador/pkg/domain"
)

// Consulter é o que o schema precisa da fachada de consultas.
type Consulter interface {
	ConsultRequest(ctx context.Context, req consulta.Request) (domain.Result, error)
	History(ctx context.Context, taxID string, limit int) ([]consulta.Record, error)
}

type GraphQLEngine struct {
	Schema graphql.Schema
}

func NewGraphQLEngine(svc Consulter) (*GraphQLEngine, error) {
	schema, err := buildSchema(&resolver{svc: svc})
	if err != nil {
		return nil, err
	}
	return &GraphQLEngine{Schema: schema}, nil
}

func (ge *GraphQLEngine) Execute(ctx context.Context, query string, variables map[string]interface{}) *graphql.Result {
	params := graphql.Params{
		Schema:         ge.Schema,
		RequestString:  query,
		VariableValues: variables,
		Context:        ctx,
	}
	return graphql.Do(params)
}
