// Package transport expõe a fachada de consultas via HTTP (servidor local ou
// API Gateway + Lambda) e consome a fila de recarga de configuração.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/raywall/integra-contador/pkg/consulta"
	"github.com/raywall/integra-contador/pkg/domain"
	"github.com/raywall/integra-contador/pkg/graphql"
	"github.com/raywall/integra-contador/pkg/services"
	"github.com/rs/zerolog/log"
)

// maxRequestBody limita o corpo aceito nas rotas REST e GraphQL.
const maxRequestBody = 1 << 20

// Consulter é o que as rotas precisam da fachada de consultas.
type Consulter interface {
	ConsultRequest(ctx context.Context, req consulta.Request) (domain.Result, error)
	History(ctx context.Context, taxID string, limit int) ([]consulta.Record, error)
}

// RouterConfig reúne as dependências do roteador.
type RouterConfig struct {
	Service        Consulter
	GraphQL        *graphql.GraphQLEngine
	Limiter        *RateLimiter
	RequestTimeout time.Duration
}

type errorBody struct {
	Error string `json:"error"`
}

type consultaBody struct {
	Servico string      `json:"servico"`
	CNPJ    string      `json:"cnpj"`
	Status  int         `json:"status"`
	Dados   interface{} `json:"dados"`
}

// NewRouter monta as rotas. /health fica fora do limite de taxa.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(cfg.Limiter.Middleware, TimeoutMiddleware(cfg.RequestTimeout))

	api.HandleFunc("/v1/servicos", handleServicos).Methods(http.MethodGet)
	api.HandleFunc("/v1/consultas/{servico}", handleConsulta(cfg.Service)).Methods(http.MethodPost)
	api.HandleFunc("/v1/consultas/{cnpj}/historico", handleHistorico(cfg.Service)).Methods(http.MethodGet)

	if cfg.GraphQL != nil {
		api.HandleFunc("/graphql", handleGraphQL(cfg.GraphQL)).Methods(http.MethodPost)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "rota não encontrada"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "método não permitido"})
	})

	return ObservabilityMiddleware(router)
}

// StartHTTPServer atende até o ctx ser cancelado e então encerra com prazo.
func StartHTTPServer(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Servidor HTTP ouvindo em %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		log.Info().Msg("encerrando servidor HTTP")
		return srv.Shutdown(shutdownCtx)
	}
}

// StatusFor traduz a categoria do erro em status HTTP.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth, domain.KindGateway:
		return http.StatusBadGateway
	case domain.KindNetwork:
		var netErr *domain.NetworkError
		if errors.As(err, &netErr) && netErr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	ev := log.Ctx(r.Context()).Warn()
	if status >= 500 {
		ev = log.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", status).Msg("requisição falhou")
	writeJSON(w, status, errorBody{Error: domain.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleServicos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.Definitions())
}

func handleConsulta(svc Consulter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consulta.Request
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			writeError(w, r, &domain.ValidationError{Reason: "corpo ilegível", Err: err})
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, r, &domain.ValidationError{Reason: "JSON inválido", Err: err})
				return
			}
		}
		req.Service = strings.ToUpper(mux.Vars(r)["servico"])
		if req.TaxID == "" {
			req.TaxID = r.URL.Query().Get("cnpj")
		}

		res, err := svc.ConsultRequest(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		digits, _ := services.NormalizeTaxID(req.TaxID)
		writeJSON(w, http.StatusOK, consultaBody{
			Servico: req.Service,
			CNPJ:    digits,
			Status:  res.Status,
			Dados:   res.Data,
		})
	}
}

func handleHistorico(svc Consulter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limite"))
		records, err := svc.History(r.Context(), mux.Vars(r)["cnpj"], limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if records == nil {
			records = []consulta.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleGraphQL(engine *graphql.GraphQLEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON Body"})
			return
		}

		result := engine.Execute(r.Context(), p.Query, p.Variables)
		writeJSON(w, http.StatusOK, result)
	}
}
