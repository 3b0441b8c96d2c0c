package engine

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/integra-contador/pkg/awsx"
	"github.com/raywall/integra-contador/pkg/services"
)

// --- Interfaces para Mocking ---

type S3Downloader interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type DynamoGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// UniversalLoader lê o arquivo de sobrescritas dos serviços de um arquivo
// local, do S3 (s3://bucket/chave) ou de um item do DynamoDB
// (dynamodb://tabela/chave?col=config&pk=id). Os clientes AWS só são
// criados quando a origem exige.
type UniversalLoader struct {
	Region string
	S3     S3Downloader
	Dynamo DynamoGetter
}

func NewUniversalLoader(region string) *UniversalLoader {
	return &UniversalLoader{Region: region}
}

// Source devolve a origem usada por services.Registry na carga e nas recargas.
func (ul *UniversalLoader) Source(ctx context.Context, location string) services.Source {
	return func() ([]byte, error) {
		data, err := ul.Load(context.WithoutCancel(ctx), location)
		if err != nil {
			return nil, fmt.Errorf("falha leitura dos serviços (%s): %w", location, err)
		}
		return data, nil
	}
}

// Load detecta o esquema da origem e devolve o conteúdo bruto.
func (ul *UniversalLoader) Load(ctx context.Context, location string) ([]byte, error) {
	switch {
	case strings.HasPrefix(location, "s3://"):
		if ul.S3 == nil {
			cfg, err := awsx.Config(ctx, ul.Region)
			if err != nil {
				return nil, err
			}
			ul.S3 = s3.NewFromConfig(cfg)
		}
		return ul.loadFromS3(ctx, location)

	case strings.HasPrefix(location, "dynamodb://"):
		if ul.Dynamo == nil {
			cfg, err := awsx.Config(ctx, ul.Region)
			if err != nil {
				return nil, err
			}
			ul.Dynamo = dynamodb.NewFromConfig(cfg)
		}
		return ul.loadFromDynamoDB(ctx, location)

	default:
		return os.ReadFile(strings.TrimPrefix(location, "file://"))
	}
}

func (ul *UniversalLoader) loadFromS3(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL S3 inválida: %w", err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	out, err := ul.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (ul *UniversalLoader) loadFromDynamoDB(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("URL DynamoDB inválida: %w", err)
	}

	tableName := u.Host
	pkValue := strings.TrimPrefix(u.Path, "/")

	colName := u.Query().Get("col")
	if colName == "" {
		colName = "config"
	}
	pkName := u.Query().Get("pk")
	if pkName == "" {
		pkName = "id"
	}

	out, err := ul.Dynamo.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key: map[string]types.AttributeValue{
			pkName: &types.AttributeValueMemberS{Value: pkValue},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("item não encontrado no DynamoDB")
	}

	var itemMap map[string]interface{}
	if err := attributevalue.UnmarshalMap(out.Item, &itemMap); err != nil {
		return nil, err
	}

	content, ok := itemMap[colName].(string)
	if !ok {
		return nil, fmt.Errorf("coluna '%s' inválida ou vazia no DynamoDB", colName)
	}
	return []byte(content), nil
}
