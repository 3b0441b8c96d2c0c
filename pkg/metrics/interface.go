package metrics

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por Prometheus ou Logging sem alterar a lógica de negócio.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// MetricType define os tipos suportados.
type MetricType string

const (
	TypeCount     MetricType = "count"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricDefinition armazena os metadados da métrica (nome real, tipo).
type MetricDefinition struct {
	Name string
	Type MetricType
}

// IDs das métricas emitidas pelo cliente do gateway.
const (
	ConsultaCount   = "consulta_count"
	ConsultaLatency = "consulta_latency"
	AuthCount       = "auth_count"
)

// Definitions é a tabela padrão ID -> métrica real.
var Definitions = map[string]MetricDefinition{
	ConsultaCount:   {Name: "integra.consulta.count", Type: TypeCount},
	ConsultaLatency: {Name: "integra.consulta.latency_ms", Type: TypeHistogram},
	AuthCount:       {Name: "integra.auth.count", Type: TypeCount},
}
