// Package ai wraps the external AI-model collaborator. The model's output is
// fully untrusted until the thread service has schema-validated it.
package ai

import (
	"context"

	"fitai/fitness-tracker/internal/domain"
)

// Model produces one text completion from a topic's full message history.
// Implementations must bound the call with a timeout and return an error
// rather than hang.
type Model interface {
	Complete(ctx context.Context, history []domain.Message) (string, error)
}
