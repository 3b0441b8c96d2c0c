package consulta

import (
	"context"
	"time"

	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/gateway"
	"github.com/raywall/integra-contador/pkg/services"
)

// Request é a entrada das superfícies externas (HTTP, GraphQL, CLI).
type Request struct {
	Service string `json:"servico" validate:"required"`
	TaxID   string `json:"cnpj" validate:"required"`
	domain.Options
}

// Record é o que se persiste depois de uma consulta bem-sucedida.
type Record struct {
	ID        string      `json:"id"`
	TaxID     string      `json:"cnpj"`
	Service   string      `json:"servico"`
	Data      interface{} `json:"resposta"`
	Status    int         `json:"status"`
	CreatedAt time.Time   `json:"criado_em"`
}

// EventConcluded é o tipo do evento publicado após o sucesso.
const EventConcluded = "consulta.concluida"

// Event avisa outros sistemas que uma consulta terminou. Não carrega a resposta.
type Event struct {
	Type      string    `json:"tipo"`
	ID        string    `json:"id"`
	TaxID     string    `json:"cnpj"`
	Service   string    `json:"servico"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"criado_em"`
}

// Builder monta o envelope de um serviço do catálogo.
type Builder interface {
	Build(name, taxID string, opts domain.Options) (gateway.Envelope, services.Resolved, error)
}

// Tokens fornece e invalida o par de tokens do gateway.
type Tokens interface {
	GetToken(ctx context.Context) (domain.TokenPair, error)
	Invalidate(stale domain.TokenPair)
}

// Sender envia o envelope ao endpoint do tipo informado.
type Sender interface {
	Send(ctx context.Context, kind domain.RequestKind, env gateway.Envelope, token domain.TokenPair) (*gateway.RawResponse, error)
}

// Store persiste o resultado. Falhas não derrubam a consulta.
type Store interface {
	Save(ctx context.Context, rec Record) error
}

// Cache guarda resultados recentes por chave.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Result, bool, error)
	Set(ctx context.Context, key string, res domain.Result, ttl time.Duration) error
}

// Publisher publica eventos de conclusão.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NoopStore descarta os registros.
type NoopStore struct{}

func (NoopStore) Save(context.Context, Record) error { return nil }

// Lister é implementado pelos stores que sabem listar o histórico de um CNPJ,
// do mais recente para o mais antigo.
type Lister interface {
	List(ctx context.Context, taxID string, limit int) ([]Record, error)
}

func (NoopStore) List(context.Context, string, int) ([]Record, error) { return nil, nil }
