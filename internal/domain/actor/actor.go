// Package actor defines the Actor domain entity: a human or an autonomous persona
// that can act as client or worker on tasks.
package actor

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/Exec/internal/domain"
)

// Kind tells the orchestrator whether, and as what, an actor is woken up.
type Kind string

const (
	KindHuman   Kind = "human"
	KindManager Kind = "manager"
	KindAgent   Kind = "agent"
	KindClient  Kind = "client" // autonomous stand-in for a human client
)

// Valid reports whether k is a known actor kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHuman, KindManager, KindAgent, KindClient:
		return true
	}
	return false
}

// Actor is consumed read-only by the task engine. Credentials live elsewhere.
type Actor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Autonomous reports whether the orchestrator should wake this actor.
func (a *Actor) Autonomous() bool {
	return a.Kind != KindHuman && a.Kind != ""
}

// CreateRequest holds the fields needed to provision an actor.
type CreateRequest struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Validate checks the request for required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown actor kind %q", domain.ErrValidation, r.Kind)
	}
	return nil
}
