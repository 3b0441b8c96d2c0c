package observability

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DatadogProvider adapta a lib oficial do Datadog para nossa interface.
type DatadogProvider struct {
	client statsd.ClientInterface
}

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// Close descarrega o buffer do cliente statsd.
func (d *DatadogProvider) Close() error {
	return d.client.Close()
}

// LogProvider escreve cada métrica no log em nível debug. Útil no modo
// local, quando não há agente do Datadog.
type LogProvider struct {
	Logger zerolog.Logger
}

func (l *LogProvider) emit(kind, name string, value float64, tags []string) error {
	l.Logger.Debug().Str("metric", name).Str("type", kind).Float64("value", value).Strs("tags", tags).Msg("métrica")
	return nil
}

func (l *LogProvider) Count(name string, value float64, tags []string) error {
	return l.emit("count", name, value, tags)
}

func (l *LogProvider) Gauge(name string, value float64, tags []string) error {
	return l.emit("gauge", name, value, tags)
}

func (l *LogProvider) Histogram(name string, value float64, tags []string) error {
	return l.emit("histogram", name, value, tags)
}

func (l *LogProvider) Close() error { return nil }

// Closer é o Provider com liberação de recursos.
type Closer interface {
	metrics.Provider
	Close() error
}

// SetupMetrics inicializa o provedor correto a partir do ambiente.
func SetupMetrics(cfg config.MetricsConf) (Closer, error) {
	if !cfg.Datadog.Enabled {
		return &LogProvider{Logger: log.Logger}, nil
	}

	// Configurações do cliente StatsD
	opts := []statsd.Option{
		statsd.WithNamespace(cfg.Datadog.Namespace),
		statsd.WithTags([]string{"app:integra-contador"}),
	}

	client, err := statsd.New(cfg.Datadog.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no datadog statsd: %w", err)
	}

	return &DatadogProvider{client: client}, nil
}

// NewRecorder monta o Processor com a tabela padrão de métricas do domínio.
func NewRecorder(cfg config.MetricsConf) (*metrics.Processor, Closer, error) {
	provider, err := SetupMetrics(cfg)
	if err != nil {
		return nil, nil, err
	}
	return metrics.NewProcessor(nil, provider), provider, nil
}
