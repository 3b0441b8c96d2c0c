package metrics

import (
	"fmt"
	"sort"
)

// Processor traduz IDs lógicos em chamadas ao Provider.
type Processor struct {
	definitions map[string]MetricDefinition
	provider    Provider
}

// NewProcessor cria um processador linkando IDs aos seus tipos reais.
// Sem definições, usa a tabela padrão; provider nil descarta tudo.
func NewProcessor(defs map[string]MetricDefinition, provider Provider) *Processor {
	if defs == nil {
		defs = Definitions
	}
	return &Processor{
		definitions: defs,
		provider:    provider,
	}
}

// Record envia um valor para a métrica identificada por id. As tags saem
// ordenadas por chave no formato "chave:valor".
func (p *Processor) Record(id string, value float64, tags map[string]string) error {
	if p == nil || p.provider == nil {
		return nil
	}

	def, exists := p.definitions[id]
	if !exists {
		return fmt.Errorf("métrica não definida: %s", id)
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	finalTags := make([]string, 0, len(keys))
	for _, k := range keys {
		finalTags = append(finalTags, fmt.Sprintf("%s:%s", k, tags[k]))
	}

	switch def.Type {
	case TypeCount:
		return p.provider.Count(def.Name, value, finalTags)
	case TypeGauge:
		return p.provider.Gauge(def.Name, value, finalTags)
	case TypeHistogram:
		return p.provider.Histogram(def.Name, value, finalTags)
	default:
		return fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
	}
}

// Incr é um atalho para contadores.
func (p *Processor) Incr(id string, tags map[string]string) error {
	return p.Record(id, 1, tags)
}
