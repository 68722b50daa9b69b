package redisutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestParseOptionsPlain(t *testing.T) {
	opts, err := ParseOptions("redis://:secret@localhost:6380/2", TLSFiles{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.TLSConfig != nil || opts.Addr != "localhost:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected options: %#v", opts)
	}
	if _, err := ParseOptions("", TLSFiles{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestParseOptionsTLS(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeTempCert(t, dir)
	tests := []struct {
		name    string
		files   TLSFiles
		wantErr bool
		check   func(t *testing.T, files TLSFiles)
	}{
		{name: "insecure", files: TLSFiles{Insecure: true}},
		{name: "ca and pair", files: TLSFiles{CA: certPath, Cert: certPath, Key: keyPath, ServerName: "store.internal"}},
		{name: "cert without key", files: TLSFiles{Cert: certPath}, wantErr: true},
		{name: "missing ca", files: TLSFiles{CA: filepath.Join(dir, "nope.pem")}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := ParseOptions("redis://localhost:6379", tc.files)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			cfg := opts.TLSConfig
			if cfg == nil {
				t.Fatalf("expected tls config")
			}
			if cfg.InsecureSkipVerify != tc.files.Insecure || cfg.ServerName != tc.files.ServerName {
				t.Fatalf("unexpected tls config: %#v", cfg)
			}
			if tc.files.CA != "" && (cfg.RootCAs == nil || len(cfg.Certificates) != 1) {
				t.Fatalf("expected root CAs and client certificate")
			}
		})
	}
}

func TestNewClientConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(Options{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
	if err := client.Set(t.Context(), "docintake:ping", "1", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("docintake:ping"); got != "1" {
		t.Fatalf("unexpected value %q", got)
	}
}

func writeTempCert(t *testing.T, dir string) (string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}
