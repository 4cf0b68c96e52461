package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/port/database"
)

// ActorService provides read access to actors plus the provisioning used by
// the admin command.
type ActorService struct {
	store        database.Store
	defaultAgent string
}

// NewActorService creates a new ActorService. defaultAgent names the agent
// that receives newly created subtasks.
func NewActorService(store database.Store, defaultAgent string) *ActorService {
	return &ActorService{store: store, defaultAgent: defaultAgent}
}

// List returns all actors.
func (s *ActorService) List(ctx context.Context) ([]actor.Actor, error) {
	return s.store.ListActors(ctx)
}

// Get returns an actor by ID.
func (s *ActorService) Get(ctx context.Context, id string) (*actor.Actor, error) {
	return s.store.GetActor(ctx, id)
}

// Create provisions a new actor.
func (s *ActorService) Create(ctx context.Context, req actor.CreateRequest) (*actor.Actor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateActor(ctx, req)
}

// Seed creates the default actors that are missing and returns all of them.
func (s *ActorService) Seed(ctx context.Context) ([]actor.Actor, error) {
	defaults := []actor.CreateRequest{
		{Name: "admin", Kind: actor.KindHuman},
		{Name: "alice", Kind: actor.KindHuman},
		{Name: "manager", Kind: actor.KindManager},
		{Name: s.defaultAgent, Kind: actor.KindAgent},
	}

	out := make([]actor.Actor, 0, len(defaults))
	for _, req := range defaults {
		a, err := s.ensure(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", req.Name, err)
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *ActorService) ensure(ctx context.Context, req actor.CreateRequest) (*actor.Actor, error) {
	a, err := s.store.GetActorByName(ctx, req.Name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	a, err = s.Create(ctx, req)
	if errors.Is(err, domain.ErrConflict) {
		return s.store.GetActorByName(ctx, req.Name)
	}
	return a, err
}

// DefaultAgent returns the configured agent, or the first agent actor when
// none carries the configured name.
func (s *ActorService) DefaultAgent(ctx context.Context) (*actor.Actor, error) {
	a, err := s.store.GetActorByName(ctx, s.defaultAgent)
	switch {
	case err == nil && a.Kind == actor.KindAgent:
		return a, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	all, err := s.store.ListActors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Kind == actor.KindAgent {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("agent actor: %w", domain.ErrNotFound)
}
