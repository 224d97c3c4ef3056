// Package queue defines the provider interface for ingest notifications.
// By using an interface, the ingestion service stays decoupled from a
// specific messaging backend.
package queue

import "context"

// Publisher sends a notification for each ingested article.
type Publisher interface {
	// Publish sends the payload. Implementations are fire-and-forget;
	// delivery failures surface as errors but never block ingestion.
	Publish(ctx context.Context, payload []byte) error

	// Close releases any resources held by the publisher.
	Close() error
}

// NoOpPublisher discards notifications. It is used when no messaging backend
// is configured.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing.
func (NoOpPublisher) Publish(_ context.Context, _ []byte) error { return nil }

// Close for NoOpPublisher does nothing.
func (NoOpPublisher) Close() error { return nil }
