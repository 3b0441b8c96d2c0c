// Package events publica na fila SQS a conclusão de cada consulta.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/raywall/integra-contador/pkg/consulta"
)

// SQSClient define a interface necessária para o publisher (permite Mocking).
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher envia um evento por mensagem.
type SQSPublisher struct {
	client   SQSClient
	queueURL string
}

func NewSQSPublisher(client SQSClient, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// Publish serializa o evento e o envia com os atributos tipo e servico,
// usados para filtro por quem consome a fila.
func (p *SQSPublisher) Publish(ctx context.Context, ev consulta.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("erro ao serializar evento: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"tipo":    {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
			"servico": {DataType: aws.String("String"), StringValue: aws.String(ev.Service)},
		},
	})
	if err != nil {
		return fmt.Errorf("erro ao publicar no SQS: %w", err)
	}
	return nil
}
