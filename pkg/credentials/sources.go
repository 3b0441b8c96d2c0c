package credentials

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/raywall/integra-contador/pkg/awsx"
)

// Prefixos de referência aceitos nos campos de certificado e segredo.
const (
	prefixS3      = "s3://"
	prefixSecrets = "secretsmanager:"
	prefixSSM     = "ssm:"
)

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver traduz um valor de configuração em bytes: conteúdo inline,
// arquivo local ou referência a S3, Secrets Manager ou SSM Parameter Store.
// Os clientes AWS só são criados quando alguma referência os exige.
type Resolver struct {
	Region   string
	S3       S3Client
	Secrets  SecretsClient
	SSM      SSMClient
	ReadFile func(name string) ([]byte, error)
}

// Resolve devolve o conteúdo apontado por value. Com isPath=true, valores
// sem prefixo conhecido são tratados como caminho de arquivo; caso contrário,
// como conteúdo literal. O booleano indica se o conteúdo veio em forma
// textual (inline, SecretString, SSM), onde binários chegam em base64.
func (r *Resolver) Resolve(ctx context.Context, value string, isPath bool) ([]byte, bool, error) {
	switch {
	case value == "":
		return nil, false, nil
	case strings.HasPrefix(value, prefixS3):
		data, err := r.fromS3(ctx, strings.TrimPrefix(value, prefixS3))
		return data, false, err
	case strings.HasPrefix(value, prefixSecrets):
		return r.fromSecrets(ctx, strings.TrimPrefix(value, prefixSecrets))
	case strings.HasPrefix(value, prefixSSM):
		data, err := r.fromSSM(ctx, strings.TrimPrefix(value, prefixSSM))
		return data, true, err
	case isPath:
		read := r.ReadFile
		if read == nil {
			read = os.ReadFile
		}
		data, err := read(value)
		if err != nil {
			return nil, false, fmt.Errorf("erro ao ler arquivo %s: %w", value, err)
		}
		return data, false, nil
	default:
		return []byte(value), true, nil
	}
}

// ResolveString é o atalho para segredos textuais (client id/secret).
func (r *Resolver) ResolveString(ctx context.Context, value string) (string, error) {
	data, _, err := r.Resolve(ctx, value, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Resolver) fromS3(ctx context.Context, location string) ([]byte, error) {
	bucket, key, ok := strings.Cut(location, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("referência S3 inválida: s3://%s", location)
	}
	if r.S3 == nil {
		cfg, err := awsx.Config(ctx, r.Region)
		if err != nil {
			return nil, err
		}
		r.S3 = s3.NewFromConfig(cfg)
	}

	out, err := r.S3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao baixar do S3: %w", err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

func (r *Resolver) fromSecrets(ctx context.Context, secretID string) ([]byte, bool, error) {
	if r.Secrets == nil {
		cfg, err := awsx.Config(ctx, r.Region)
		if err != nil {
			return nil, false, err
		}
		r.Secrets = secretsmanager.NewFromConfig(cfg)
	}

	out, err := r.Secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("erro no SecretsManager: %w", err)
	}
	if out.SecretString != nil {
		return []byte(*out.SecretString), true, nil
	}
	return out.SecretBinary, false, nil
}

func (r *Resolver) fromSSM(ctx context.Context, name string) ([]byte, error) {
	if r.SSM == nil {
		cfg, err := awsx.Config(ctx, r.Region)
		if err != nil {
			return nil, err
		}
		r.SSM = ssm.NewFromConfig(cfg)
	}

	decrypt := true
	out, err := r.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return nil, fmt.Errorf("erro no SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parâmetro SSM %s sem valor", name)
	}
	return []byte(*out.Parameter.Value), nil
}
