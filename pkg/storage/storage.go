// Package storage implementa a persistência das consultas bem-sucedidas em
// Postgres ou DynamoDB, escolhida por STORAGE_DRIVER.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/raywall/integra-contador/pkg/awsx"
	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/consulta"
)

// DefaultTable é a tabela usada quando nenhuma é configurada.
const DefaultTable = "consultas"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New escolhe a implementação pelo driver. O Closer libera conexões do
// banco e deve ser chamado no encerramento.
func New(ctx context.Context, cfg config.StorageConf, region string) (consulta.Store, io.Closer, error) {
	switch cfg.Driver {
	case "", "none":
		return consulta.NoopStore{}, nopCloser{}, nil

	case "postgres":
		store, db, err := OpenPostgres(ctx, cfg.DSN, cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return store, db, nil

	case "dynamodb":
		awsCfg, err := awsx.Config(ctx, region)
		if err != nil {
			return nil, nil, fmt.Errorf("erro ao carregar config AWS: %w", err)
		}
		return NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Table, cfg.TTL), nopCloser{}, nil

	default:
		return nil, nil, fmt.Errorf("driver de armazenamento desconhecido: %s", cfg.Driver)
	}
}
