package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/eduforge/coursegen-backend/internal/platform/openai"
)

// Handler executes one tool invocation. The returned string is fed back to
// the model verbatim as the tool output.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// ToolDef is one allow-listed capability. MaxCallsPerGenerate bounds the
// tool within a single Generate call, MaxCallsPerSession across the whole
// ToolSet lifetime (one pipeline stage typically owns one ToolSet).
type ToolDef struct {
	Name                string
	Description         string
	Parameters          map[string]any
	MaxCallsPerGenerate int
	MaxCallsPerSession  int
	Handler             Handler
}

// ToolSet is an allow-list of tools with per-call and per-session budgets.
// It is not safe for concurrent use; each stage builds its own.
type ToolSet struct {
	defs         map[string]ToolDef
	order        []string
	sessionCalls map[string]int
}

func NewToolSet(defs ...ToolDef) (*ToolSet, error) {
	ts := &ToolSet{
		defs:         make(map[string]ToolDef, len(defs)),
		sessionCalls: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" || def.Handler == nil {
			return nil, fmt.Errorf("tool definition needs a name and a handler")
		}
		if _, dup := ts.defs[def.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", def.Name)
		}
		if def.MaxCallsPerGenerate <= 0 {
			def.MaxCallsPerGenerate = 3
		}
		if def.MaxCallsPerSession <= 0 {
			def.MaxCallsPerSession = 10
		}
		ts.defs[def.Name] = def
		ts.order = append(ts.order, def.Name)
	}
	return ts, nil
}

// Wire renders the allow-list in the shape the Responses API expects.
func (ts *ToolSet) Wire() []openai.Tool {
	if ts == nil || len(ts.defs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(ts.defs))
	for _, name := range ts.order {
		def := ts.defs[name]
		out = append(out, openai.Tool{
			Type:        "function",
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return out
}

// Names lists the allow-listed tool names in registration order.
func (ts *ToolSet) Names() []string {
	if ts == nil {
		return nil
	}
	return append([]string(nil), ts.order...)
}

// budgetFor reports the remaining budget for tool name given callCounts,
// the per-Generate tally. A nil error means the call may proceed.
func (ts *ToolSet) budgetFor(name string, callCounts map[string]int) (ToolDef, error) {
	def, ok := ts.defs[name]
	if !ok {
		return ToolDef{}, fmt.Errorf("tool %q is not allow-listed (have: %v)", name, ts.sortedNames())
	}
	if callCounts[name] >= def.MaxCallsPerGenerate {
		return def, &ToolBudgetExceededError{
			Tool: name, Calls: callCounts[name], Budget: def.MaxCallsPerGenerate,
		}
	}
	if ts.sessionCalls[name] >= def.MaxCallsPerSession {
		return def, &ToolBudgetExceededError{
			Tool: name, Calls: ts.sessionCalls[name], Budget: def.MaxCallsPerSession,
		}
	}
	return def, nil
}

func (ts *ToolSet) recordCall(name string) {
	ts.sessionCalls[name]++
}

func (ts *ToolSet) sortedNames() []string {
	names := make([]string, 0, len(ts.defs))
	for name := range ts.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
