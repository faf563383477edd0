package credentials

import (
	"fmt"

	infra "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
)

// Bundle holds a tenant's decrypted App Store Connect credentials.
// It lives in memory only for the duration of a sync run and is never
// persisted or logged in plaintext.
type Bundle struct {
	PrivateKey   string // .p8 signing key, PEM encoded
	KeyID        string
	IssuerID     string
	VendorNumber string
	SKU          string // may be a comma-separated list
}

// DecryptBundle decrypts the credential fields of a stored row. A nil
// row or a missing required field means the tenant never configured
// credentials and maps to ErrNotConfigured; the SKU filter is optional.
// Any field failing authentication is a hard error for that tenant's
// run.
func DecryptBundle(key []byte, row *infra.CredentialRow) (*Bundle, error) {
	if row == nil {
		return nil, ErrNotConfigured
	}

	b := &Bundle{}
	fields := []struct {
		name     string
		enc      string
		dst      *string
		optional bool
	}{
		{"private_key", row.EncPrivateKey, &b.PrivateKey, false},
		{"key_id", row.EncKeyID, &b.KeyID, false},
		{"issuer_id", row.EncIssuerID, &b.IssuerID, false},
		{"vendor_number", row.EncVendorNumber, &b.VendorNumber, false},
		{"sku", row.EncSKU, &b.SKU, true},
	}

	for _, f := range fields {
		if f.enc == "" {
			if f.optional {
				continue
			}
			return nil, ErrNotConfigured
		}
		plain, err := EncryptedField(f.enc).Decrypt(key)
		if err != nil {
			return nil, fmt.Errorf("DecryptBundle: field %s: %w", f.name, err)
		}
		*f.dst = plain
	}

	return b, nil
}
