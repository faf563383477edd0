package gcsstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Store writes raw decompressed report text to a GCS bucket. Raw report
// rows carry the resulting gs:// URI instead of the full text, which can
// run to megabytes per report.
type Store struct {
	bucket string
}

// New creates a store for the given bucket. An empty bucket name
// disables blob storage; rows are then inserted without a URI.
func New(bucket string) *Store {
	return &Store{bucket: bucket}
}

// Enabled reports whether a bucket is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != ""
}

// SaveReportText uploads one report's text and returns its GCS URI.
// It assumes Application Default Credentials are configured.
func (s *Store) SaveReportText(ctx context.Context, tenantID, reportType, regionCode, reportDate, text string) (string, error) {
	objectName := reportObjectName(tenantID, reportType, regionCode, reportDate)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("SaveReportText: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := strings.NewReader(text).WriteTo(w); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("SaveReportText: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("SaveReportText: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// reportObjectName lays reports out by tenant and month so a bucket
// listing groups one sync run's uploads together.
func reportObjectName(tenantID, reportType, regionCode, reportDate string) string {
	return fmt.Sprintf("reports/%s/%s/%s-%s.txt", tenantID, reportDate, reportType, regionCode)
}
