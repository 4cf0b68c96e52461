package persona

import (
	"fmt"
	"strings"

	"github.com/Strob0t/Exec/internal/domain/task"
)

// Observation is the task state a persona sees on wake-up.
type Observation struct {
	Task       task.Task
	Transcript []task.Message
	Subtasks   []task.Task
}

// Render writes the observation as plain text: title, role-labelled transcript
// and, when present, the subtasks with their status.
func (o Observation) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", o.Task.Title)
	if len(o.Transcript) > 0 {
		b.WriteString("\n")
	}
	for i := range o.Transcript {
		m := &o.Transcript[i]
		if m.Kind == task.KindDiagnostic {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", o.Task.RoleOf(m.AuthorID), m.Body)
	}
	if len(o.Subtasks) > 0 {
		b.WriteString("\nSubtasks:\n")
		for i := range o.Subtasks {
			st := &o.Subtasks[i]
			fmt.Fprintf(&b, "- %s [%s]\n", st.Title, subtaskStatus(st))
		}
	}
	return b.String()
}

func subtaskStatus(t *task.Task) string {
	switch {
	case t.IsComplete:
		return "complete"
	case !t.IsOpen:
		return "closed"
	case !t.HasWorker():
		return "unassigned"
	default:
		return "in progress"
	}
}

// DecisionPrompt renders the observe/orient/decide prompt.
func DecisionPrompt(p Profile, obs Observation) string {
	return fmt.Sprintf(`
### OBSERVATION ###
(This first section involves collecting information about the current
task, both internally and externally. By observing and analyzing the available
information, you gain awareness of the circumstances and identify potential
next steps.)

`+"```"+`
%s
`+"```"+`

### ORIENTATION ###
(Once you have reviewed the necessary information above, the next step is to orient
yourself by interpreting and analyzing the data. This stage involves
understanding the context, assessing the significance of the observations, and
evaluating how they relate to your existing knowledge and mental models.)

%s

### DECISION ###
(In this section, you use the insights gained from observation and orientation
to make a decision to help achieve your goal. Consider the available courses of
action, their likely outcomes, and select the most suitable one. Write your
final decision at the end in a single sentence.)

`, strings.TrimRight(obs.Render(), "\n"), p.Orientation)
}

// ActionPrompt renders the act prompt that follows a decision.
func ActionPrompt(p Profile, decisionPrompt, decision string) string {
	var actions strings.Builder
	for _, e := range p.Vocabulary {
		fmt.Fprintf(&actions, "- %s\n", e)
	}
	return fmt.Sprintf(`

%s

%s

### ACT ###

All actions use the following syntax, similar to python functions:

ACTION_NAME(ARGUMENT).

I have the following actions available to me:
%s
Given the decision above, I will perform the following action:

`, decisionPrompt, decision, actions.String())
}
