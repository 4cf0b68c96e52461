package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/Exec/internal/adapter/memstore"
	"github.com/Strob0t/Exec/internal/domain"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/service"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := service.NewActorService(memstore.New(), "agent")

	first, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	second, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("expected 4 actors, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("actor %s re-created", first[i].Name)
		}
	}

	all, _ := svc.List(ctx)
	if len(all) != 4 {
		t.Errorf("List() = %d actors, want 4", len(all))
	}

	kinds := map[string]actor.Kind{}
	for _, a := range first {
		kinds[a.Name] = a.Kind
	}
	want := map[string]actor.Kind{
		"admin": actor.KindHuman, "alice": actor.KindHuman,
		"manager": actor.KindManager, "agent": actor.KindAgent,
	}
	for name, k := range want {
		if kinds[name] != k {
			t.Errorf("%s kind = %q, want %q", name, kinds[name], k)
		}
	}
}

func TestCreateActorValidates(t *testing.T) {
	svc := service.NewActorService(memstore.New(), "agent")
	_, err := svc.Create(context.Background(), actor.CreateRequest{Name: "x", Kind: "robot"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDefaultAgent(t *testing.T) {
	ctx := context.Background()

	t.Run("by name", func(t *testing.T) {
		svc := service.NewActorService(memstore.New(), "scout")
		if _, err := svc.Create(ctx, actor.CreateRequest{Name: "other", Kind: actor.KindAgent}); err != nil {
			t.Fatal(err)
		}
		want, _ := svc.Create(ctx, actor.CreateRequest{Name: "scout", Kind: actor.KindAgent})
		got, err := svc.DefaultAgent(ctx)
		if err != nil {
			t.Fatalf("DefaultAgent: %v", err)
		}
		if got.ID != want.ID {
			t.Errorf("got %s, want scout", got.Name)
		}
	})

	t.Run("falls back to first agent", func(t *testing.T) {
		svc := service.NewActorService(memstore.New(), "scout")
		_, _ = svc.Create(ctx, actor.CreateRequest{Name: "scout", Kind: actor.KindHuman})
		want, _ := svc.Create(ctx, actor.CreateRequest{Name: "runner", Kind: actor.KindAgent})
		got, err := svc.DefaultAgent(ctx)
		if err != nil {
			t.Fatalf("DefaultAgent: %v", err)
		}
		if got.ID != want.ID {
			t.Errorf("got %s, want runner", got.Name)
		}
	})

	t.Run("no agent", func(t *testing.T) {
		svc := service.NewActorService(memstore.New(), "scout")
		_, err := svc.DefaultAgent(ctx)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
