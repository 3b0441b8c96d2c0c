package emulator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/raywall/integra-contador/pkg/gateway"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Response é o status e o corpo devolvidos por uma rota.
type Response struct {
	Status int         `yaml:"status" json:"status"`
	Body   interface{} `yaml:"corpo" json:"corpo,omitempty"`
}

// Route associa um idServico (e opcionalmente um CNPJ) a uma resposta.
type Route struct {
	ServiceID string   `yaml:"idServico"`
	TaxID     string   `yaml:"cnpj,omitempty"`
	Response  Response `yaml:"resposta"`
}

// Config é o conteúdo do arquivo YAML do emulador.
type Config struct {
	Port         int     `yaml:"porta"`
	ClientID     string  `yaml:"client_id"`
	ClientSecret string  `yaml:"client_secret"`
	CertFile     string  `yaml:"certificado"`
	KeyFile      string  `yaml:"chave"`
	ClientCAFile string  `yaml:"ca_clientes"`
	Routes       []Route `yaml:"rotas"`
}

// LoadFile lê e valida a configuração.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("erro ao ler arquivo: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("erro ao parsear yaml: %w", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 9443
	}
	for i, r := range cfg.Routes {
		if r.ServiceID == "" {
			return cfg, fmt.Errorf("rota %d sem idServico", i)
		}
		if r.Response.Status == 0 {
			cfg.Routes[i].Response.Status = http.StatusOK
		}
	}
	return cfg, nil
}

// Server guarda os tokens emitidos para validar as chamadas de serviço.
type Server struct {
	cfg Config

	mu     sync.Mutex
	tokens map[string]string // access_token -> jwt_token
}

func New(cfg Config) *Server {
	return &Server{cfg: cfg, tokens: make(map[string]string)}
}

// Handler monta as rotas do gateway falso.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/authenticate", s.handleAuth).Methods(http.MethodPost)
	router.HandleFunc("/{tipo:Consultar|Emitir|Solicitar}", s.handleService).Methods(http.MethodPost)
	return router
}

// Revoke descarta todos os tokens emitidos; a próxima chamada recebe 401.
func (s *Server) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ClientID != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.ClientID || pass != s.cfg.ClientSecret {
			sendResponse(w, http.StatusUnauthorized, map[string]string{
				"error":             "invalid_client",
				"error_description": "Bad credentials",
			})
			return
		}
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		sendResponse(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	access, jwt := uuid.NewString(), uuid.NewString()
	s.mu.Lock()
	s.tokens[access] = jwt
	s.mu.Unlock()

	log.Info().Str("role_type", r.Header.Get("Role-Type")).Msg("emulador: token emitido")
	sendResponse(w, http.StatusOK, map[string]interface{}{
		"access_token": access,
		"jwt_token":    jwt,
		"token_type":   "bearer",
		"expires_in":   2008,
		"scope":        "default",
	})
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		sendResponse(w, http.StatusUnauthorized, errorEnvelope("AcessoNegado-ICGERENCIADOR-001", "Token inválido ou expirado."))
		return
	}

	var env gateway.Envelope
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err == nil {
		err = json.Unmarshal(body, &env)
	}
	if err != nil {
		sendResponse(w, http.StatusBadRequest, errorEnvelope("EntradaIncorreta-ICGERENCIADOR-002", "Envelope inválido."))
		return
	}

	kind := mux.Vars(r)["tipo"]
	route, ok := s.match(env.PedidoDados.IDServico, env.Contribuinte.Numero)
	log.Info().
		Str("tipo", kind).
		Str("idServico", env.PedidoDados.IDServico).
		Bool("match", ok).
		Msg("emulador: chamada de serviço")
	if !ok {
		sendResponse(w, http.StatusNotFound, errorEnvelope("Aviso-ICGERENCIADOR-404",
			fmt.Sprintf("Nenhuma resposta configurada para %s.", env.PedidoDados.IDServico)))
		return
	}
	sendResponse(w, route.Response.Status, route.Response.Body)
}

func (s *Server) authorized(r *http.Request) bool {
	access := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	jwt := r.Header.Get("jwt_token")

	s.mu.Lock()
	defer s.mu.Unlock()
	want, ok := s.tokens[access]
	return ok && want == jwt
}

// match prefere a rota específica do CNPJ à rota genérica do serviço.
func (s *Server) match(serviceID, taxID string) (Route, bool) {
	var generic *Route
	for i := range s.cfg.Routes {
		r := &s.cfg.Routes[i]
		if !strings.EqualFold(r.ServiceID, serviceID) {
			continue
		}
		if r.TaxID == taxID {
			return *r, true
		}
		if r.TaxID == "" && generic == nil {
			generic = r
		}
	}
	if generic != nil {
		return *generic, true
	}
	return Route{}, false
}

// Start atende até o ctx ser cancelado. Com certificado configurado usa TLS,
// exigindo certificado de cliente quando há CA de clientes.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := s.cfg.CertFile != "" && s.cfg.KeyFile != ""
	if useTLS && s.cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(s.cfg.ClientCAFile)
		if err != nil {
			return fmt.Errorf("erro ao ler CA de clientes: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return errors.New("CA de clientes sem certificado PEM válido")
		}
		srv.TLSConfig = &tls.Config{ClientAuth: tls.RequireAndVerifyClientCert, ClientCAs: pool}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("porta", s.cfg.Port).Bool("tls", useTLS).Msg("emulador do gateway iniciado")
		if useTLS {
			errCh <- srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func errorEnvelope(code, text string) map[string]interface{} {
	return map[string]interface{}{
		"mensagens": []map[string]string{{"codigo": code, "texto": text}},
	}
}

func sendResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Error().Err(err).Msg("erro ao serializar resposta")
		}
	}
}
