// Package action turns a raw model reply into a single decision: call a tool,
// or stop with a final answer.
package action

import (
	"fmt"

	"github.com/szaher/infraagent/internal/tools"
)

// Kind tags a Decision.
type Kind int

const (
	KindFinal Kind = iota
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindFinal:
		return "final"
	case KindAction:
		return "action"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Decision is the parsed form of one model reply. Content is set for
// KindFinal; Name and Params are set for KindAction.
type Decision struct {
	Kind    Kind
	Content string
	Name    string
	Params  tools.Params
}

// Final builds a terminal decision.
func Final(content string) Decision {
	return Decision{Kind: KindFinal, Content: content}
}

// Action builds a tool invocation decision.
func Action(name string, params tools.Params) Decision {
	return Decision{Kind: KindAction, Name: name, Params: params}
}

// IsFinal reports whether the decision ends the loop.
func (d Decision) IsFinal() bool { return d.Kind == KindFinal }
