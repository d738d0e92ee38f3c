package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// IssueToken creates a signed JWT token for the given principal.
// signingKeyPEM is the PEM-encoded ECDSA private key.
func IssueToken(signingKeyPEM string, p *Principal, ttl time.Duration) (string, error) {
	issuer, err := NewTokenIssuer(signingKeyPEM)
	if err != nil {
		return "", err
	}
	return issuer.Issue(p, ttl)
}

// LoadSigningKey reads a PEM private key from path.
func LoadSigningKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read signing key: %w", err)
	}
	return string(data), nil
}

// GenerateSigningKey creates a fresh P-256 key, PEM encoded. Used for local
// development when no key file is configured.
func GenerateSigningKey() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}
