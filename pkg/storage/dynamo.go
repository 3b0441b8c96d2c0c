package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/raywall/integra-contador/pkg/consulta"
)

// DynamoDBClient é o subconjunto do cliente usado pelo store (permite Mocking).
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem é o formato gravado: chave de partição cnpj, ordenação criado_em.
// A resposta vai como string JSON para não esbarrar nos limites de tipos do DynamoDB.
type dynamoItem struct {
	TaxID     string `dynamodbav:"cnpj"`
	CreatedAt string `dynamodbav:"criado_em"`
	ID        string `dynamodbav:"id"`
	Service   string `dynamodbav:"servico"`
	Response  string `dynamodbav:"resposta"`
	Status    int    `dynamodbav:"status"`
	ExpiresAt int64  `dynamodbav:"expira_em,omitempty"`
}

// Dynamo grava as consultas em uma tabela DynamoDB.
type Dynamo struct {
	client DynamoDBClient
	table  string
	ttl    time.Duration
}

// NewDynamo cria o store. ttl > 0 preenche o atributo expira_em.
func NewDynamo(client DynamoDBClient, table string, ttl time.Duration) *Dynamo {
	if table == "" {
		table = DefaultTable
	}
	return &Dynamo{client: client, table: table, ttl: ttl}
}

func (d *Dynamo) Save(ctx context.Context, rec consulta.Record) error {
	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("dynamostore: marshal resposta failed: %w", err)
	}

	item := dynamoItem{
		TaxID:     rec.TaxID,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		ID:        rec.ID,
		Service:   rec.Service,
		Response:  string(payload),
		Status:    rec.Status,
	}
	if d.ttl > 0 {
		item.ExpiresAt = rec.CreatedAt.Add(d.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamostore: marshal failed: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("dynamostore: put failed: %w", err)
	}
	return nil
}

func (d *Dynamo) List(ctx context.Context, taxID string, limit int) ([]consulta.Record, error) {
	keyCond := expression.Key("cnpj").Equal(expression.Value(taxID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("dynamostore: build expression failed: %w", err)
	}

	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(d.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamostore: query failed: %w", err)
	}

	var items []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("dynamostore: unmarshal failed: %w", err)
	}

	records := make([]consulta.Record, 0, len(items))
	for _, it := range items {
		rec := consulta.Record{
			ID:      it.ID,
			TaxID:   it.TaxID,
			Service: it.Service,
			Status:  it.Status,
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, it.CreatedAt)
		if err := json.Unmarshal([]byte(it.Response), &rec.Data); err != nil {
			rec.Data = it.Response
		}
		records = append(records, rec)
	}
	return records, nil
}
