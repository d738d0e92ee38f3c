package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim on every token minted by this service.
const Issuer = "tableside"

// Claims are the JWT claims carried by API and realtime tokens.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role"`
}

// TokenIssuer signs tokens with an ECDSA P-256 private key.
type TokenIssuer struct {
	signingKey *ecdsa.PrivateKey
}

// NewTokenIssuer creates an issuer from a PEM encoded EC private key.
func NewTokenIssuer(signingKeyPEM string) (*TokenIssuer, error) {
	if signingKeyPEM == "" {
		return nil, errors.New("JWT signing key not provided")
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(signingKeyPEM))
	if err != nil {
		return nil, err
	}

	return &TokenIssuer{signingKey: key}, nil
}

// Issue mints an ES256 token for p that expires after ttl.
func (i *TokenIssuer) Issue(p *Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(p.Role),
	}
	if p.TenantID != nil {
		claims.TenantID = p.TenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(i.signingKey)
}

// PublicKey returns the verification key matching the signing key.
func (i *TokenIssuer) PublicKey() *ecdsa.PublicKey {
	return &i.signingKey.PublicKey
}

// TokenVerifier validates ES256 tokens and turns them into principals.
type TokenVerifier struct {
	publicKey *ecdsa.PublicKey
}

// NewTokenVerifier creates a verifier for the given public key.
func NewTokenVerifier(publicKey *ecdsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{publicKey: publicKey}
}

// NewTokenVerifierFromPEM creates a verifier from a PEM encoded public key.
func NewTokenVerifierFromPEM(publicKeyPEM string) (*TokenVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	return &TokenVerifier{publicKey: publicKey}, nil
}

// Verify checks the signature, expiry and issuer of tokenString and returns
// the principal it describes.
func (v *TokenVerifier) Verify(tokenString string) (*Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sub claim: %w", ErrUnauthenticated, err)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	principal := &Principal{UserID: userID, Role: role}
	if claims.TenantID != "" {
		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid tenant_id claim: %w", ErrUnauthenticated, err)
		}
		principal.TenantID = &tenantID
	}

	return principal, nil
}
