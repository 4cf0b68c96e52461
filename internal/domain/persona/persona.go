// Package persona resolves which role an autonomous actor plays on a task and
// holds each role's fixed orientation and action vocabulary.
package persona

import (
	"errors"
	"fmt"

	"github.com/Strob0t/Exec/internal/domain/action"
	"github.com/Strob0t/Exec/internal/domain/actor"
	"github.com/Strob0t/Exec/internal/domain/task"
)

// ErrNoPersona reports an actor that has no persona on the given task.
var ErrNoPersona = errors.New("no persona for actor on task")

// Kind enumerates the personas with their own action tables.
type Kind string

const (
	Client          Kind = "client"
	ManagerAsWorker Kind = "manager_as_worker"
	ManagerAsClient Kind = "manager_as_client"
	WorkerAgent     Kind = "worker_agent"
)

// All lists every persona kind.
var All = []Kind{Client, ManagerAsWorker, ManagerAsClient, WorkerAgent}

// Resolve picks the persona for actor a on task t. The client seat is checked
// first; a manager in the client seat acts as ManagerAsClient and any other
// autonomous client as Client. In the worker seat the actor's declared kind
// decides.
func Resolve(t *task.Task, a *actor.Actor) (Kind, error) {
	if !a.Autonomous() {
		return "", fmt.Errorf("actor %s is not autonomous: %w", a.ID, ErrNoPersona)
	}
	switch a.ID {
	case t.ClientID:
		if a.Kind == actor.KindManager {
			return ManagerAsClient, nil
		}
		return Client, nil
	case t.WorkerID:
		switch a.Kind {
		case actor.KindManager:
			return ManagerAsWorker, nil
		case actor.KindAgent:
			return WorkerAgent, nil
		}
		return "", fmt.Errorf("actor %s of kind %s cannot work task %s: %w", a.ID, a.Kind, t.ID, ErrNoPersona)
	}
	return "", fmt.Errorf("actor %s is not a participant of task %s: %w", a.ID, t.ID, ErrNoPersona)
}

// Entry is one line of an advertised vocabulary.
type Entry struct {
	Name action.Name
	Arg  string // placeholder shown to the oracle, empty for no argument
}

func (e Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Name, e.Arg)
}

// Profile is the fixed prompt material of one persona.
type Profile struct {
	Kind        Kind
	Orientation string
	Vocabulary  []Entry
}

// Advertises reports whether name is in the persona's vocabulary.
func (p Profile) Advertises(name action.Name) bool {
	for _, e := range p.Vocabulary {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Lookup returns the profile of kind k.
func Lookup(k Kind) (Profile, bool) {
	p, ok := profiles[k]
	return p, ok
}
