// Package oracle defines the port for text-completion backends.
package oracle

import (
	"context"
	"errors"
)

// ErrOracleFailure reports a completion that failed after all retries.
var ErrOracleFailure = errors.New("oracle failure")

// Request is a single completion request.
type Request struct {
	System string
	Prompt string
}

// Oracle completes prompts. Implementations must honor ctx cancellation.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}
