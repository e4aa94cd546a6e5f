// Package certgen generates temporary self-signed certificate bundles used
// as a placeholder until a real authority-issued certificate is available.
package certgen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// DefaultValidity is the short placeholder window; the bundle is only
	// meant to bridge the gap until the authority client succeeds.
	DefaultValidity = 10 * 24 * time.Hour

	// DefaultKeyBits is the RSA key size for generated bundles.
	DefaultKeyBits = 2048
)

var (
	ErrDomainRequired = errors.New("domain is required")
	ErrKeyTooSmall    = errors.New("key size must be at least 2048 bits")
)

// SelfSigned generates a self-signed certificate and private key for the
// domain, both PEM-encoded.
func SelfSigned(domain string, validity time.Duration, bits int) (certPEM, keyPEM []byte, err error) {
	if domain == "" {
		return nil, nil, ErrDomainRequired
	}
	if bits < 2048 {
		return nil, nil, ErrKeyTooSmall
	}
	if validity <= 0 {
		validity = DefaultValidity
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: domain,
		},
		DNSNames:              []string{domain},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}
