// Package tlscert loads server certificates from a directory or generates a
// self-signed pair from a subject string, and builds CA pools for backend
// calls to Viya deployments with private certificate chains.
package tlscert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCertFound indicates the certificate directory held no usable pair.
var ErrNoCertFound = errors.New("tlscert: no certificate pair found")

// LoadDir searches dir for a certificate and key pair. It accepts the usual
// filename conventions: *.crt/*.pem for certs and *.key for keys, trying each
// combination until one parses.
func LoadDir(dir string) (tls.Certificate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlscert: read %s: %w", dir, err)
	}

	var certs, keys []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".crt", ".pem", ".cer":
			certs = append(certs, filepath.Join(dir, name))
		case ".key":
			keys = append(keys, filepath.Join(dir, name))
		}
	}

	for _, c := range certs {
		for _, k := range keys {
			pair, err := tls.LoadX509KeyPair(c, k)
			if err == nil {
				return pair, nil
			}
		}
	}
	return tls.Certificate{}, ErrNoCertFound
}

// SelfSigned generates an ephemeral ECDSA certificate from a subject string
// of the form "/C=US/ST=NC/L=Cary/O=Example/CN=localhost". The CN also
// becomes a DNS SAN; "localhost" additionally gets loopback IP SANs.
func SelfSigned(subject string) (tls.Certificate, error) {
	name, err := parseSubject(subject)
	if err != nil {
		return tls.Certificate{}, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlscert: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlscert: serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if name.CommonName != "" {
		tmpl.DNSNames = []string{name.CommonName}
		if name.CommonName == "localhost" {
			tmpl.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlscert: create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// parseSubject turns "/C=US/O=Example/CN=host" into a pkix.Name.
func parseSubject(subject string) (pkix.Name, error) {
	var name pkix.Name
	seen := false
	for _, part := range strings.Split(subject, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok || val == "" {
			return pkix.Name{}, fmt.Errorf("tlscert: bad subject component %q", part)
		}
		seen = true
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "C":
			name.Country = append(name.Country, val)
		case "ST":
			name.Province = append(name.Province, val)
		case "L":
			name.Locality = append(name.Locality, val)
		case "O":
			name.Organization = append(name.Organization, val)
		case "OU":
			name.OrganizationalUnit = append(name.OrganizationalUnit, val)
		case "CN":
			name.CommonName = val
		default:
			return pkix.Name{}, fmt.Errorf("tlscert: unknown subject attribute %q", key)
		}
	}
	if !seen {
		return pkix.Name{}, fmt.Errorf("tlscert: empty subject %q", subject)
	}
	return name, nil
}

// CAPool returns the system pool extended with every PEM certificate found
// under dir. An empty dir name returns the system pool untouched.
func CAPool(dir string) (*x509.CertPool, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if dir == "" {
		return pool, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tlscert: read %s: %w", dir, err)
	}
	added := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if pool.AppendCertsFromPEM(b) {
			added++
		}
	}
	if added == 0 {
		return nil, fmt.Errorf("tlscert: no CA certificates in %s", dir)
	}
	return pool, nil
}
