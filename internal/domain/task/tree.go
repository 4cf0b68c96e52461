package task

import (
	"context"
	"fmt"

	"github.com/Strob0t/Exec/internal/domain"
)

// MaxDepth bounds the ancestor walk so a corrupted store cannot hang it.
const MaxDepth = 256

// Lookup loads a task by id.
type Lookup func(ctx context.Context, id string) (*Task, error)

// CheckParent verifies that attaching childID under parentID keeps the tree
// acyclic: childID must not be parentID or any of its ancestors, and the
// ancestor chain itself must terminate.
func CheckParent(ctx context.Context, childID, parentID string, get Lookup) error {
	seen := make(map[string]bool)
	id := parentID
	for depth := 0; id != ""; depth++ {
		if id == childID {
			return fmt.Errorf("task %s under %s: %w", childID, parentID, domain.ErrCycle)
		}
		if seen[id] || depth >= MaxDepth {
			return fmt.Errorf("ancestors of %s: %w", parentID, domain.ErrCycle)
		}
		seen[id] = true

		t, err := get(ctx, id)
		if err != nil {
			return fmt.Errorf("load ancestor %s: %w", id, err)
		}
		id = t.ParentID
	}
	return nil
}

// Ancestors returns the ids from the direct parent up to the root.
func Ancestors(ctx context.Context, t *Task, get Lookup) ([]string, error) {
	var out []string
	seen := map[string]bool{t.ID: true}
	for id := t.ParentID; id != ""; {
		if seen[id] || len(out) >= MaxDepth {
			return nil, fmt.Errorf("ancestors of %s: %w", t.ID, domain.ErrCycle)
		}
		seen[id] = true
		out = append(out, id)

		p, err := get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load ancestor %s: %w", id, err)
		}
		id = p.ParentID
	}
	return out, nil
}
