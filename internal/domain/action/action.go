// Package action defines the closed set of actions a persona may emit and the
// NAME(ARGUMENT) grammar used to read them out of free text.
package action

import (
	"errors"
	"fmt"
)

var (
	// ErrParse reports text that does not follow NAME(ARGUMENT).
	ErrParse = errors.New("malformed action")
	// ErrUnsupportedAction reports an action name outside the persona's table.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Name is the tag of an action variant.
type Name string

const (
	NameMessageClient       Name = "MESSAGE_CLIENT"
	NameMessageWorker       Name = "MESSAGE_WORKER"
	NameSearchWeb           Name = "SEARCH_WEB"
	NameAccessURL           Name = "ACCESS_URL"
	NameCreatePlan          Name = "CREATE_PLAN"
	NameCreateSubtask       Name = "CREATE_SUBTASK"
	NameMarkTaskComplete    Name = "MARK_TASK_COMPLETE"
	NameCalculateExpression Name = "CALCULATE_EXPRESSION"
)

// Action is one typed, executable decision. The set of implementations is closed.
type Action interface {
	Name() Name
	action()
}

// MessageClient posts text addressed to the task's client.
type MessageClient struct{ Text string }

// MessageWorker posts text addressed to the task's worker.
type MessageWorker struct{ Text string }

// SearchWeb runs a web search and posts the ranked results.
type SearchWeb struct{ Query string }

// AccessURL fetches a page and posts it as text.
type AccessURL struct{ URL string }

// CreatePlan posts a plan for the task.
type CreatePlan struct{ Text string }

// CreateSubtask delegates a new child task to an agent.
type CreateSubtask struct{ Title string }

// MarkTaskComplete marks the task complete.
type MarkTaskComplete struct{}

// CalculateExpression is advertised by no persona and bound to no handler; it
// exists so the grammar can name it in an unsupported-action error.
type CalculateExpression struct{ Expression string }

func (MessageClient) Name() Name       { return NameMessageClient }
func (MessageWorker) Name() Name       { return NameMessageWorker }
func (SearchWeb) Name() Name           { return NameSearchWeb }
func (AccessURL) Name() Name           { return NameAccessURL }
func (CreatePlan) Name() Name          { return NameCreatePlan }
func (CreateSubtask) Name() Name       { return NameCreateSubtask }
func (MarkTaskComplete) Name() Name    { return NameMarkTaskComplete }
func (CalculateExpression) Name() Name { return NameCalculateExpression }

func (MessageClient) action()       {}
func (MessageWorker) action()       {}
func (SearchWeb) action()           {}
func (AccessURL) action()           {}
func (CreatePlan) action()          {}
func (CreateSubtask) action()       {}
func (MarkTaskComplete) action()    {}
func (CalculateExpression) action() {}

// Decode turns a parsed call into its typed variant.
func Decode(c Call) (Action, error) {
	switch c.Name {
	case NameMessageClient:
		return MessageClient{Text: c.Argument}, nil
	case NameMessageWorker:
		return MessageWorker{Text: c.Argument}, nil
	case NameSearchWeb:
		return SearchWeb{Query: c.Argument}, nil
	case NameAccessURL:
		return AccessURL{URL: c.Argument}, nil
	case NameCreatePlan:
		return CreatePlan{Text: c.Argument}, nil
	case NameCreateSubtask:
		return CreateSubtask{Title: c.Argument}, nil
	case NameMarkTaskComplete:
		return MarkTaskComplete{}, nil
	case NameCalculateExpression:
		return CalculateExpression{Expression: c.Argument}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, c.Name)
	}
}
