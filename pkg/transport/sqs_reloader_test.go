package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/raywall/integra-contador/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const reloadQueue = "https://sqs.us-east-1.amazonaws.com/123/reload-queue"

type MockSQSClient struct {
	mock.Mock
}

func (m *MockSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	return nil, args.Error(1)
}

type countingReloader struct {
	calls atomic.Int32
	err   error
}

func (c *countingReloader) Reload() error {
	c.calls.Add(1)
	return c.err
}

// blockUntilDone faz as chamadas seguintes esperarem o cancelamento, como um
// long polling sem mensagens.
func blockUntilDone(m *MockSQSClient) {
	m.On("ReceiveMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(&sqs.ReceiveMessageOutput{}, nil).Maybe()
}

func oneMessage(m *MockSQSClient, handle string) {
	m.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{{Body: aws.String(`{"acao":"reload"}`), ReceiptHandle: aws.String(handle)}},
	}, nil).Once()
}

func TestSQSReloader(t *testing.T) {
	t.Run("mensagem dispara reload e é removida", func(t *testing.T) {
		mockSQS := new(MockSQSClient)
		oneMessage(mockSQS, "handle_123")
		blockUntilDone(mockSQS)
		mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

		rl := &countingReloader{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			NewSQSReloader(mockSQS, reloadQueue, rl).Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return rl.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done

		mockSQS.AssertCalled(t, "DeleteMessage", mock.Anything, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(reloadQueue),
			ReceiptHandle: aws.String("handle_123"),
		})
	})

	t.Run("falha no reload ainda remove a mensagem", func(t *testing.T) {
		mockSQS := new(MockSQSClient)
		oneMessage(mockSQS, "h-1")
		blockUntilDone(mockSQS)
		mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

		rl := &countingReloader{err: errors.New("yaml inválido")}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			NewSQSReloader(mockSQS, reloadQueue, rl).Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return rl.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
		mockSQS.AssertNumberOfCalls(t, "DeleteMessage", 1)
	})

	t.Run("erro do SQS espera e tenta de novo", func(t *testing.T) {
		mockSQS := new(MockSQSClient)
		mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()
		oneMessage(mockSQS, "h-2")
		blockUntilDone(mockSQS)
		mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

		rl := &countingReloader{}
		r := NewSQSReloader(mockSQS, reloadQueue, rl)
		r.retryDelay = time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			r.Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return rl.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		cancel()
		<-done
	})

	t.Run("sem fila retorna imediatamente", func(t *testing.T) {
		mockSQS := new(MockSQSClient)
		NewSQSReloader(mockSQS, "", &countingReloader{}).Start(context.Background())
		mockSQS.AssertNotCalled(t, "ReceiveMessage", mock.Anything, mock.Anything)
	})
}

func TestSQSReloader_Registry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servicos.yaml")
	require.NoError(t, os.WriteFile(path, []byte("servicos:\n  CND:\n    idServico: V1\n"), 0o600))

	reg := services.NewRegistry("11222333000181", func(string) (string, bool) { return "", false })
	require.NoError(t, reg.LoadOverridesFile(path))

	res, err := reg.Resolve("CND")
	require.NoError(t, err)
	assert.Equal(t, "V1", res.ServiceID)

	require.NoError(t, os.WriteFile(path, []byte("servicos:\n  CND:\n    idServico: V2\n"), 0o600))

	mockSQS := new(MockSQSClient)
	oneMessage(mockSQS, "h-3")
	blockUntilDone(mockSQS)
	mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewSQSReloader(mockSQS, reloadQueue, reg).Start(ctx)

	assert.Eventually(t, func() bool {
		res, err := reg.Resolve("CND")
		return err == nil && res.ServiceID == "V2"
	}, time.Second, 5*time.Millisecond)
}
