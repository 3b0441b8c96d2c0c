// Package testcert gera certificados efêmeros para testes de mTLS.
package testcert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// Pair é um certificado autoassinado com a chave correspondente.
type Pair struct {
	CertPEM []byte
	KeyPEM  []byte
	TLS     tls.Certificate
	Leaf    *x509.Certificate
}

// New gera um par válido por uma hora. Serve tanto como certificado de
// servidor (127.0.0.1/localhost) quanto de cliente.
func New(t testing.TB, commonName string) Pair {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("testcert: gerar chave: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName, Organization: []string{"Integra Teste"}},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},

		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("testcert: criar certificado: %v", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("testcert: serializar chave: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("testcert: montar par TLS: %v", err)
	}
	leaf, _ := x509.ParseCertificate(der)

	return Pair{CertPEM: certPEM, KeyPEM: keyPEM, TLS: pair, Leaf: leaf}
}

// Pool devolve um CertPool contendo apenas o certificado do par.
func (p Pair) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(p.Leaf)
	return pool
}

// PFX empacota o par em um bundle PKCS#12 moderno (PBES2/AES-256).
func (p Pair) PFX(t testing.TB, password string) []byte {
	t.Helper()

	data, err := pkcs12.Modern.Encode(p.TLS.PrivateKey, p.Leaf, nil, password)
	if err != nil {
		t.Fatalf("testcert: gerar PFX: %v", err)
	}
	return data
}
