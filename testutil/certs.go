package testutil

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
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Certs holds a throwaway CA together with server and client
// certificates it signed, all written as PEM files.
type Certs struct {
	CAFile         string
	ServerCertFile string
	ServerKeyFile  string
	ClientCertFile string
	ClientKeyFile  string
	CAPool         *x509.CertPool
}

type keyPair struct {
	cert    *x509.Certificate
	der     []byte
	key     *ecdsa.PrivateKey
	keyFile string
}

func writePEM(t *testing.T, name, typ string, b []byte) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(fn, pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: b}), 0600)
	if err != nil {
		t.Fatalf("writing %s: %v", fn, err)
	}
	return fn
}

func newPair(t *testing.T, tmpl *x509.Certificate, parent *keyPair) *keyPair {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	signer, signerKey := tmpl, key
	if parent != nil {
		signer, signerKey = parent.cert, parent.key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, signer, &key.PublicKey, signerKey)
	if err != nil {
		t.Fatalf("creating cert '%s': %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing cert '%s': %v", tmpl.Subject.CommonName, err)
	}
	return &keyPair{cert: cert, der: der, key: key}
}

func (p *keyPair) write(t *testing.T, name string) (certFile, keyFile string) {
	t.Helper()
	kb, err := x509.MarshalECPrivateKey(p.key)
	if err != nil {
		t.Fatalf("marshalling key for %s: %v", name, err)
	}
	return writePEM(t, name+".crt", "CERTIFICATE", p.der), writePEM(t, name+".key", "EC PRIVATE KEY", kb)
}

// WriteCerts creates a CA, a server certificate valid for 127.0.0.1
// and localhost, and a client certificate.
func WriteCerts(t *testing.T) *Certs {
	t.Helper()
	now := time.Now()
	ca := newPair(t, &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "estufa test CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}, nil)
	server := newPair(t, &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}, ca)
	client := newPair(t, &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "ESP32_Test_Client"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}, ca)

	c := &Certs{
		CAFile: writePEM(t, "ca.crt", "CERTIFICATE", ca.der),
		CAPool: x509.NewCertPool(),
	}
	c.CAPool.AddCert(ca.cert)
	c.ServerCertFile, c.ServerKeyFile = server.write(t, "server")
	c.ClientCertFile, c.ClientKeyFile = client.write(t, "client")
	return c
}

// ServerTLSConfig demands a client certificate signed by the test CA.
func (c *Certs) ServerTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	cert, err := tls.LoadX509KeyPair(c.ServerCertFile, c.ServerKeyFile)
	if err != nil {
		t.Fatalf("loading server cert: %v", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    c.CAPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
}
