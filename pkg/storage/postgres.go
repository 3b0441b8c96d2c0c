package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq" // Driver Postgres
	"github.com/raywall/integra-contador/pkg/consulta"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// queryTimeout é o limite de segurança de cada comando no banco.
const queryTimeout = 5 * time.Second

// DB é o subconjunto de *sql.DB usado pelo store.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Postgres grava as consultas na tabela informada (padrão "consultas").
type Postgres struct {
	db    DB
	table string
}

// NewPostgres valida o nome da tabela; o nome entra no SQL sem placeholder.
func NewPostgres(db DB, table string) (*Postgres, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("nome de tabela inválido: %q", table)
	}
	return &Postgres{db: db, table: table}, nil
}

// OpenPostgres abre a conexão, confere se o banco responde e garante a tabela.
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("erro ao abrir conexão SQL: %w", err)
	}

	ctxDb, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := db.PingContext(ctxDb); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("banco não respondeu: %w", err)
	}

	store, err := NewPostgres(db, table)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// Migrate cria a tabela e o índice por CNPJ se ainda não existirem.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctxDb, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	id UUID PRIMARY KEY,
	cnpj VARCHAR(14) NOT NULL,
	servico VARCHAR(64) NOT NULL,
	resposta JSONB,
	status INTEGER NOT NULL,
	criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_cnpj_idx ON %[1]s (cnpj, criado_em DESC);`, p.table)

	if _, err := p.db.ExecContext(ctxDb, stmt); err != nil {
		return fmt.Errorf("erro ao criar tabela %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, rec consulta.Record) error {
	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("erro ao serializar resposta: %w", err)
	}

	ctxDb, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = p.db.ExecContext(ctxDb,
		fmt.Sprintf(`INSERT INTO %s (id, cnpj, servico, resposta, status, criado_em) VALUES ($1, $2, $3, $4, $5, $6)`, p.table),
		rec.ID, rec.TaxID, rec.Service, string(payload), rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("erro no insert SQL: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, taxID string, limit int) ([]consulta.Record, error) {
	ctxDb, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctxDb,
		fmt.Sprintf(`SELECT id, cnpj, servico, resposta, status, criado_em FROM %s WHERE cnpj = $1 ORDER BY criado_em DESC LIMIT $2`, p.table),
		taxID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("erro na query SQL: %w", err)
	}
	defer rows.Close()

	var out []consulta.Record
	for rows.Next() {
		var (
			rec     consulta.Record
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.TaxID, &rec.Service, &payload, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Data); err != nil {
				rec.Data = string(payload)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
