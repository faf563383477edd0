package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/copanyhq/revenue-sync/internal/credentials"
	infraBQ "github.com/copanyhq/revenue-sync/internal/infra/bigquery"
	"github.com/copanyhq/revenue-sync/internal/logger"
)

// Encrypts a tenant's App Store Connect credentials and stores them.
// The private key is read from a .p8 file; everything is sealed with
// the process encryption key before it leaves this process.
func main() {
	_ = godotenv.Load()

	log := logger.New()

	var (
		tenantID     = flag.String("tenant", "", "Tenant ID (required)")
		keyFile      = flag.String("key-file", "", "Path to the App Store Connect .p8 private key (required)")
		keyID        = flag.String("key-id", "", "App Store Connect key ID (required)")
		issuerID     = flag.String("issuer-id", "", "App Store Connect issuer ID (required)")
		vendorNumber = flag.String("vendor-number", "", "App Store Connect vendor number (required)")
		sku          = flag.String("sku", "", "Comma-separated SKU list to filter reports to (optional)")
	)
	flag.Parse()

	if *tenantID == "" || *keyFile == "" || *keyID == "" || *issuerID == "" || *vendorNumber == "" {
		flag.Usage()
		os.Exit(2)
	}

	key, err := credentials.KeyFromHex(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("ENCRYPTION_KEY must be 64 hex characters")
	}

	privateKeyPEM, err := os.ReadFile(*keyFile)
	if err != nil {
		log.Fatal().Err(err).Str("key_file", *keyFile).Msg("Failed to read private key file")
	}

	row := &infraBQ.CredentialRow{
		TenantID:  *tenantID,
		CreatedTS: time.Now().UTC(),
	}

	fields := []struct {
		plaintext string
		dst       *string
	}{
		{string(privateKeyPEM), &row.EncPrivateKey},
		{*keyID, &row.EncKeyID},
		{*issuerID, &row.EncIssuerID},
		{*vendorNumber, &row.EncVendorNumber},
		{*sku, &row.EncSKU},
	}
	for _, f := range fields {
		if f.plaintext == "" {
			continue
		}
		sealed, err := credentials.Encrypt(key, f.plaintext)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encrypt credential field")
		}
		*f.dst = string(sealed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := infraBQ.NewSyncRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create sync repository")
	}
	defer repo.Close()

	if err := repo.InsertCredentials(ctx, row); err != nil {
		log.Fatal().Err(err).Str("tenant_id", *tenantID).Msg("Failed to store credentials")
	}

	fmt.Printf("Stored encrypted credentials for tenant %s\n", *tenantID)
}
