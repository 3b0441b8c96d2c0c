package transport

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SQSClient define a interface necessária para o reloader (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Reloader é satisfeito por services.Registry: relê o arquivo de overrides.
type Reloader interface {
	Reload() error
}

// SQSReloader escuta uma fila e recarrega os identificadores dos serviços a
// cada mensagem recebida.
type SQSReloader struct {
	client     SQSClient
	queueURL   string
	reloader   Reloader
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewSQSReloader(client SQSClient, queueURL string, reloader Reloader) *SQSReloader {
	return &SQSReloader{
		client:     client,
		queueURL:   queueURL,
		reloader:   reloader,
		retryDelay: 5 * time.Second,
		logger:     log.With().Str("component", "sqs_reloader").Logger(),
	}
}

// Start bloqueia até o ctx ser cancelado.
func (s *SQSReloader) Start(ctx context.Context) {
	if s.queueURL == "" {
		s.logger.Warn().Msg("fila de recarga não configurada, hot reload desativado")
		return
	}

	s.logger.Info().Str("queue", s.queueURL).Msg("monitorando fila de recarga dos serviços")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("parando monitoramento SQS")
			return
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msgf("erro no SQS, nova tentativa em %s", s.retryDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.retryDelay):
			}
			continue
		}

		for _, msg := range out.Messages {
			if err := s.reloader.Reload(); err != nil {
				s.logger.Error().Err(err).Msg("falha ao recarregar serviços, mantendo configuração atual")
			} else {
				s.logger.Info().Msg("overrides de serviços recarregados")
			}

			if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				s.logger.Warn().Err(err).Msg("falha ao remover mensagem da fila")
			}
		}
	}
}
