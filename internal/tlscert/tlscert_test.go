package tlscert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSelfSigned(t *testing.T) {
	cert, err := SelfSigned("/C=US/ST=NC/L=Cary/O=Example/CN=localhost")
	if err != nil {
		t.Fatalf("SelfSigned error: %v", err)
	}
	if cert.Leaf == nil {
		t.Fatal("Leaf not populated")
	}
	if cert.Leaf.Subject.CommonName != "localhost" {
		t.Errorf("CN = %q, want localhost", cert.Leaf.Subject.CommonName)
	}
	if len(cert.Leaf.Subject.Organization) != 1 || cert.Leaf.Subject.Organization[0] != "Example" {
		t.Errorf("O = %v", cert.Leaf.Subject.Organization)
	}
	if len(cert.Leaf.IPAddresses) == 0 {
		t.Error("expected loopback IP SANs for CN=localhost")
	}
	if err := cert.Leaf.VerifyHostname("localhost"); err != nil {
		t.Errorf("VerifyHostname(localhost): %v", err)
	}
}

func TestSelfSignedBadSubject(t *testing.T) {
	for _, subject := range []string{"", "/", "/CN=", "/XX=foo", "localhost"} {
		if _, err := SelfSigned(subject); err == nil {
			t.Errorf("SelfSigned(%q) accepted a bad subject", subject)
		}
	}
}

func writePair(t *testing.T, dir string, cert tls.Certificate) {
	t.Helper()
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyDER, err := x509.MarshalECPrivateKey(cert.PrivateKey.(*ecdsa.PrivateKey))
	if err != nil {
		t.Fatal(err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(filepath.Join(dir, "server.crt"), certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "server.key"), keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirRoundTrip(t *testing.T) {
	cert, err := SelfSigned("/CN=roundtrip.test")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	writePair(t, dir, cert)

	loaded, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir error: %v", err)
	}
	if len(loaded.Certificate) == 0 {
		t.Fatal("LoadDir returned an empty certificate")
	}
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	if !errors.Is(err, ErrNoCertFound) {
		t.Fatalf("err = %v, want ErrNoCertFound", err)
	}
}

func TestCAPool(t *testing.T) {
	cert, err := SelfSigned("/CN=ca.test")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	if err := os.WriteFile(filepath.Join(dir, "ca.pem"), certPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	pool, err := CAPool(dir)
	if err != nil {
		t.Fatalf("CAPool error: %v", err)
	}
	if pool == nil {
		t.Fatal("nil pool")
	}

	if _, err := CAPool(t.TempDir()); err == nil {
		t.Error("CAPool accepted a directory with no certificates")
	}
}
