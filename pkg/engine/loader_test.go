package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/raywall/integra-contador/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockS3Loader struct {
	GetObjectFunc func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

func (m *MockS3Loader) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(ctx, params, optFns...)
}

type MockDynamoLoader struct {
	GetItemFunc func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

func (m *MockDynamoLoader) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetItemFunc(ctx, params, optFns...)
}

const overridesYAML = "servicos:\n  SICALC:\n    idServico: CONSOLIDARGERARDARF51\n"

func TestUniversalLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("arquivo local com e sem file://", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "servicos.yaml")
		require.NoError(t, os.WriteFile(path, []byte(overridesYAML), 0o600))

		ul := NewUniversalLoader("sa-east-1")
		data, err := ul.Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, overridesYAML, string(data))

		data, err = ul.Load(ctx, "file://"+path)
		require.NoError(t, err)
		assert.Equal(t, overridesYAML, string(data))
	})

	t.Run("S3", func(t *testing.T) {
		ul := &UniversalLoader{S3: &MockS3Loader{
			GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
				assert.Equal(t, "meu-bucket", *params.Bucket)
				assert.Equal(t, "config/servicos.yaml", *params.Key)
				return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(overridesYAML))}, nil
			},
		}}

		data, err := ul.Load(ctx, "s3://meu-bucket/config/servicos.yaml")
		require.NoError(t, err)
		assert.Equal(t, overridesYAML, string(data))
	})

	t.Run("DynamoDB com coluna e chave customizadas", func(t *testing.T) {
		ul := &UniversalLoader{Dynamo: &MockDynamoLoader{
			GetItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
				assert.Equal(t, "configs", *params.TableName)
				key, ok := params.Key["nome"].(*types.AttributeValueMemberS)
				require.True(t, ok)
				assert.Equal(t, "integra", key.Value)
				return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
					"nome": &types.AttributeValueMemberS{Value: "integra"},
					"yaml": &types.AttributeValueMemberS{Value: overridesYAML},
				}}, nil
			},
		}}

		data, err := ul.Load(ctx, "dynamodb://configs/integra?col=yaml&pk=nome")
		require.NoError(t, err)
		assert.Equal(t, overridesYAML, string(data))
	})

	t.Run("DynamoDB sem item", func(t *testing.T) {
		ul := &UniversalLoader{Dynamo: &MockDynamoLoader{
			GetItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{}, nil
			},
		}}
		_, err := ul.Load(ctx, "dynamodb://configs/integra")
		assert.ErrorContains(t, err, "item não encontrado")
	})

	t.Run("DynamoDB coluna ausente", func(t *testing.T) {
		ul := &UniversalLoader{Dynamo: &MockDynamoLoader{
			GetItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: "integra"},
				}}, nil
			},
		}}
		_, err := ul.Load(ctx, "dynamodb://configs/integra")
		assert.ErrorContains(t, err, "coluna 'config'")
	})
}

func TestUniversalLoader_Source(t *testing.T) {
	calls := 0
	ul := &UniversalLoader{S3: &MockS3Loader{
		GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			calls++
			if calls > 1 {
				return nil, errors.New("AccessDenied")
			}
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(overridesYAML))}, nil
		},
	}}

	reg := services.NewRegistry("11222333000181", noEnv)
	require.NoError(t, reg.LoadOverridesFrom(ul.Source(context.Background(), "s3://b/servicos.yaml")))

	res, err := reg.Resolve("SICALC")
	require.NoError(t, err)
	assert.Equal(t, "CONSOLIDARGERARDARF51", res.ServiceID)

	err = reg.Reload()
	assert.ErrorContains(t, err, "AccessDenied")
	res, err = reg.Resolve("SICALC")
	require.NoError(t, err)
	assert.Equal(t, "CONSOLIDARGERARDARF51", res.ServiceID, "falha na recarga mantém o conjunto atual")
}
