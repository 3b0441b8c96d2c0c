package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDynamo struct{ mock.Mock }

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

var criadoEm = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func TestDynamo_Save(t *testing.T) {
	rec := consulta.Record{
		ID: "0b7e", TaxID: "51564549000140", Service: "CND",
		Data: map[string]interface{}{"ok": true}, Status: 200, CreatedAt: criadoEm,
	}

	t.Run("Grava o item com TTL", func(t *testing.T) {
		client := &mockDynamo{}
		client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(in.Item, &item); err != nil {
				return false
			}
			return *in.TableName == "consultas" &&
				item.TaxID == "51564549000140" &&
				item.Response == `{"ok":true}` &&
				item.CreatedAt == "2025-03-01T10:00:00Z" &&
				item.ExpiresAt == criadoEm.Add(time.Hour).Unix()
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		require.NoError(t, NewDynamo(client, "", time.Hour).Save(context.Background(), rec))
		client.AssertExpectations(t)
	})

	t.Run("Sem TTL não grava expira_em", func(t *testing.T) {
		client := &mockDynamo{}
		client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			_, has := in.Item["expira_em"]
			return !has
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		require.NoError(t, NewDynamo(client, "historico", 0).Save(context.Background(), rec))
		client.AssertExpectations(t)
	})

	t.Run("Erro do DynamoDB", func(t *testing.T) {
		client := &mockDynamo{}
		client.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := NewDynamo(client, "", 0).Save(context.Background(), rec)
		assert.ErrorContains(t, err, "throttled")
	})
}

func TestDynamo_List(t *testing.T) {
	item, err := attributevalue.MarshalMap(dynamoItem{
		TaxID: "51564549000140", CreatedAt: "2025-03-01T10:00:00Z", ID: "a1",
		Service: "PGMEI", Response: `{"dados":"x"}`, Status: 200,
	})
	require.NoError(t, err)
	raw, err := attributevalue.MarshalMap(dynamoItem{
		TaxID: "51564549000140", CreatedAt: "2025-02-01T10:00:00Z", ID: "a0",
		Service: "CND", Response: `texto`, Status: 200,
	})
	require.NoError(t, err)

	client := &mockDynamo{}
	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		v, ok := in.ExpressionAttributeValues[":0"].(*types.AttributeValueMemberS)
		return ok && v.Value == "51564549000140" && !*in.ScanIndexForward && *in.Limit == 5
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item, raw}}, nil)

	records, err := NewDynamo(client, "", 0).List(context.Background(), "51564549000140", 5)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "PGMEI", records[0].Service)
	assert.Equal(t, map[string]interface{}{"dados": "x"}, records[0].Data)
	assert.Equal(t, criadoEm, records[0].CreatedAt)
	assert.Equal(t, "texto", records[1].Data)
}
