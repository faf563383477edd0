package appstore

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// tokenAudience identifies the App Store Connect API in the claim set.
	tokenAudience = "appstoreconnect-v1"

	// tokenTTL bounds the token's validity window. Tokens are minted once
	// per tenant per run and never cached across runs.
	tokenTTL = 20 * time.Minute
)

// MintToken builds a short-lived ES256 signed token for the App Store
// Connect API from a tenant's .p8 signing key, key ID and issuer ID.
func MintToken(privateKeyPEM, keyID, issuerID string) (string, error) {
	return mintTokenAt(privateKeyPEM, keyID, issuerID, time.Now())
}

func mintTokenAt(privateKeyPEM, keyID, issuerID string, now time.Time) (string, error) {
	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("MintToken: %w", err)
	}

	claims := jwt.MapClaims{
		"iss": issuerID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"aud": tokenAudience,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = keyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("MintToken: signing: %w", err)
	}

	return signed, nil
}

// parsePrivateKey decodes a PEM-wrapped PKCS#8 EC private key, the
// format App Store Connect issues .p8 keys in.
func parsePrivateKey(pemText string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("parsePrivateKey: no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsePrivateKey: parsing PKCS#8: %w", err)
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("parsePrivateKey: key is %T, want *ecdsa.PrivateKey", parsed)
	}

	return key, nil
}
