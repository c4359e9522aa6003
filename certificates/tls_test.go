package certificates

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certPath, keyPath
}

func TestBuildLoadsCertAndDefaultsCipherSuites(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir)

	cfg, err := Build(Settings{CertFilePath: certPath, KeyFilePath: keyPath})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Certificates = %d, want 1", len(cfg.Certificates))
	}
	if len(cfg.CipherSuites) != 0 {
		t.Fatalf("CipherSuites = %v, want empty when CipherList unset", cfg.CipherSuites)
	}
}

func TestBuildParsesCipherList(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir)

	cfg, err := Build(Settings{
		CertFilePath: certPath,
		KeyFilePath:  keyPath,
		CipherList:   "ECDHE-RSA-AES128-GCM-SHA256, ECDHE-ECDSA-AES256-GCM-SHA384",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cfg.CipherSuites) != 2 {
		t.Fatalf("CipherSuites = %v, want 2 entries", cfg.CipherSuites)
	}
}

func TestBuildRejectsUnknownCipher(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeSelfSigned(t, dir)

	if _, err := Build(Settings{CertFilePath: certPath, KeyFilePath: keyPath, CipherList: "not-a-cipher"}); err == nil {
		t.Fatal("expected error for unsupported cipher suite")
	}
}

func TestBuildRejectsMissingPaths(t *testing.T) {
	if _, err := Build(Settings{}); err == nil {
		t.Fatal("expected error when cert/key paths are empty")
	}
}
