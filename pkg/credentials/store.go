// Package credentials carrega, uma única vez na subida do processo, as
// credenciais OAuth e o certificado de cliente usados no mTLS com o gateway.
package credentials

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/raywall/integra-contador/pkg/config"
	"github.com/raywall/integra-contador/pkg/domain"
	"software.sslmate.com/src/go-pkcs12"
)

// Format identifica de onde veio o certificado.
type Format string

const (
	FormatPEM    Format = "pem"
	FormatPKCS12 Format = "pkcs12"
)

// Credentials é imutável depois de carregada.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Certificate  tls.Certificate
	Format       Format
	// RootCAs é opcional; nil significa usar o pool do sistema.
	RootCAs *x509.CertPool
}

// TLSConfig monta a configuração de cliente mTLS.
func (c *Credentials) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.Certificate},
		RootCAs:      c.RootCAs,
		MinVersion:   tls.VersionTLS12,
	}
}

// HTTPClient devolve um cliente com o certificado anexado ao handshake.
// Autenticação e chamadas de serviço compartilham o mesmo pool de conexões
// quando usam o cliente retornado por uma única chamada.
func (c *Credentials) HTTPClient(timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = c.TLSConfig()
	tr.MaxIdleConnsPerHost = 16
	return &http.Client{Transport: tr, Timeout: timeout}
}

// Load lê client id/secret e o certificado. Qualquer ausência é um
// *domain.ConfigError nomeando a chave; o processo não deve subir sem isso.
func Load(ctx context.Context, cfg config.SerproConf, r *Resolver) (*Credentials, error) {
	if r == nil {
		r = &Resolver{}
	}

	clientID, err := r.ResolveString(ctx, cfg.ClientID)
	if err != nil {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_CLIENT_ID"}, Err: err}
	}
	clientSecret, err := r.ResolveString(ctx, cfg.ClientSecret)
	if err != nil {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_CLIENT_SECRET"}, Err: err}
	}

	var missing []string
	if clientID == "" {
		missing = append(missing, "SERPRO_CLIENT_ID")
	}
	if clientSecret == "" {
		missing = append(missing, "SERPRO_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, &domain.ConfigError{Keys: missing}
	}

	creds := &Credentials{ClientID: clientID, ClientSecret: clientSecret}

	// PFX tem precedência sobre o par PEM.
	switch {
	case cfg.PFX != "" || cfg.PFXPath != "":
		cert, err := loadPKCS12(ctx, cfg, r)
		if err != nil {
			return nil, err
		}
		creds.Certificate = cert
		creds.Format = FormatPKCS12
	case (cfg.CertPEM != "" || cfg.CertPEMPath != "") && (cfg.KeyPEM != "" || cfg.KeyPEMPath != ""):
		cert, err := loadPEM(ctx, cfg, r)
		if err != nil {
			return nil, err
		}
		creds.Certificate = cert
		creds.Format = FormatPEM
	default:
		return nil, &domain.ConfigError{
			Keys:   []string{"SERPRO_CERT_PFX|SERPRO_CERT_PEM+SERPRO_KEY_PEM"},
			Reason: "nenhum certificado de cliente configurado",
		}
	}

	if cfg.CAPath != "" {
		pool, err := loadCAPool(ctx, cfg.CAPath, r)
		if err != nil {
			return nil, err
		}
		creds.RootCAs = pool
	}

	return creds, nil
}

// pick escolhe entre conteúdo inline e caminho; o conteúdo inline vence.
func pick(ctx context.Context, r *Resolver, inline, path string) ([]byte, bool, error) {
	if inline != "" {
		return r.Resolve(ctx, inline, false)
	}
	return r.Resolve(ctx, path, true)
}

func loadPEM(ctx context.Context, cfg config.SerproConf, r *Resolver) (tls.Certificate, error) {
	certPEM, _, err := pick(ctx, r, cfg.CertPEM, cfg.CertPEMPath)
	if err != nil {
		return tls.Certificate{}, &domain.ConfigError{Keys: []string{"SERPRO_CERT_PEM"}, Err: err}
	}
	keyPEM, _, err := pick(ctx, r, cfg.KeyPEM, cfg.KeyPEMPath)
	if err != nil {
		return tls.Certificate{}, &domain.ConfigError{Keys: []string{"SERPRO_KEY_PEM"}, Err: err}
	}

	cert, err := tls.X509KeyPair(normalizePEM(certPEM), normalizePEM(keyPEM))
	if err != nil {
		return tls.Certificate{}, &domain.ConfigError{Reason: "par PEM inválido", Err: err}
	}
	return cert, nil
}

func loadPKCS12(ctx context.Context, cfg config.SerproConf, r *Resolver) (tls.Certificate, error) {
	raw, textual, err := pick(ctx, r, cfg.PFX, cfg.PFXPath)
	if err != nil {
		return tls.Certificate{}, &domain.ConfigError{Keys: []string{"SERPRO_CERT_PFX"}, Err: err}
	}
	if textual {
		decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(raw)))
		if err != nil {
			return tls.Certificate{}, &domain.ConfigError{Keys: []string{"SERPRO_CERT_PFX"}, Reason: "PFX inline deve estar em base64", Err: err}
		}
		raw = decoded
	}

	cert, err := decodePKCS12(raw, cfg.PFXPassphrase)
	if err != nil {
		return tls.Certificate{}, &domain.ConfigError{Keys: []string{"SERPRO_CERT_PFX"}, Reason: "bundle PKCS#12 inválido ou senha incorreta", Err: err}
	}
	return cert, nil
}

// decodePKCS12 aceita bundles legados (3DES/RC2) e modernos (PBES2/AES),
// como os exportados pelo OpenSSL 3. O par é remontado em PEM para que
// tls.X509KeyPair confira que a chave corresponde ao certificado folha.
func decodePKCS12(data []byte, passphrase string) (tls.Certificate, error) {
	key, leaf, chain, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return tls.Certificate{}, err
	}
	if leaf == nil || key == nil {
		return tls.Certificate{}, errors.New("bundle sem certificado ou chave privada")
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("chave privada não suportada: %w", err)
	}

	var certPEM bytes.Buffer
	for _, c := range append([]*x509.Certificate{leaf}, chain...) {
		if err := pem.Encode(&certPEM, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}); err != nil {
			return tls.Certificate{}, err
		}
	}
	return tls.X509KeyPair(certPEM.Bytes(), pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))
}

func loadCAPool(ctx context.Context, path string, r *Resolver) (*x509.CertPool, error) {
	data, _, err := r.Resolve(ctx, path, true)
	if err != nil {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_CA_PEM_PATH"}, Err: err}
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(normalizePEM(data)) {
		return nil, &domain.ConfigError{Keys: []string{"SERPRO_CA_PEM_PATH"}, Reason: "nenhum certificado PEM válido"}
	}
	return pool, nil
}

// normalizePEM aceita PEM com quebras de linha escapadas ("\n" literal),
// comum quando o conteúdo vem de variável de ambiente.
func normalizePEM(data []byte) []byte {
	return bytes.ReplaceAll(data, []byte(`\n`), []byte("\n"))
}

// String nunca expõe o segredo.
func (c *Credentials) String() string {
	return fmt.Sprintf("Credentials{ClientID: %s, Format: %s}", c.ClientID, c.Format)
}
