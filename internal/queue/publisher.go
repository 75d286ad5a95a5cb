// Package queue publishes persisted messages onto a durable broker queue.
package queue

import (
	"context"

	"github.com/abdghn/youapp-be-test/internal/models"
)

// Publisher owns the broker connection used to hand messages downstream.
type Publisher interface {
	// Connect establishes the connection and declares the queue. Calling it
	// while already connected is a no-op.
	Connect(ctx context.Context) error

	// Publish delivers msg, connecting first if needed. Failures are
	// apperr.KindPublishUnavailable.
	Publish(ctx context.Context, msg *models.Message) error

	// Close releases the connection.
	Close() error
}
