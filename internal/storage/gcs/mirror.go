// Package gcs mirrors backup documents to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/riverdogs/newscrawler/internal/scraper"
	"github.com/riverdogs/newscrawler/internal/storage/backup"
)

// Mirror uploads article backup documents to a GCS bucket. Authentication is
// handled via Application Default Credentials.
type Mirror struct {
	client *storage.Client
	bucket string
}

// New initializes a GCS client and fails fast if the bucket is unreachable.
func New(ctx context.Context, bucket string) (*Mirror, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucket, err)
	}
	return &Mirror{client: client, bucket: bucket}, nil
}

// Write uploads the article's backup document under the same deterministic
// name the local backup store uses, and returns the object URI.
func (m *Mirror) Write(ctx context.Context, article scraper.Article) (string, error) {
	data, err := backup.Marshal(article)
	if err != nil {
		return "", fmt.Errorf("encode article: %w", err)
	}
	name := backup.FileName(article, time.Now())

	wc := m.client.Bucket(m.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = "application/json; charset=utf-8"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write GCS object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close GCS writer for %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", m.bucket, name), nil
}

// Close releases the underlying client.
func (m *Mirror) Close() error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}
