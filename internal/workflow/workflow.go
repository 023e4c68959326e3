// Package workflow builds and executes step graphs with sequential stages,
// parallel stages, gated branches and fan-out steps.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// TriggerID names the run input in bindings.
const TriggerID = "trigger"

var (
	// ErrInvalidGraph wraps every graph construction error.
	ErrInvalidGraph = errors.New("invalid workflow graph")
	// ErrDependencyFailed marks steps that did not run because a dependency failed.
	ErrDependencyFailed = errors.New("dependency failed")
)

// Values is the input or output of a step.
type Values map[string]any

// StepFunc is the work of a step.
type StepFunc func(ctx context.Context, in Values) (Values, error)

// Mode selects how a step runs.
type Mode int

const (
	Sequential Mode = iota
	// FanOut runs the step once per element of the input named by Over.
	FanOut
)

// Binding points at a value produced by the trigger or an earlier step.
// An empty Path selects the whole output.
type Binding struct {
	Step     string
	Path     string
	Optional bool
}

// From binds to a path in an earlier step's output.
func From(step, path string) Binding {
	return Binding{Step: step, Path: path}
}

// Trigger binds to a path in the run input.
func Trigger(path string) Binding {
	return Binding{Step: TriggerID, Path: path}
}

// OrAbsent marks the binding optional: a skipped source leaves the input
// absent instead of skipping the step.
func (b Binding) OrAbsent() Binding {
	b.Optional = true
	return b
}

func (b Binding) String() string {
	if b.Path == "" {
		return b.Step
	}
	return b.Step + "." + b.Path
}

// Op is a gate comparison.
type Op string

const (
	OpEq Op = "eq"
	OpNe Op = "ne"
)

// Gate decides whether a branch arm runs.
type Gate struct {
	Ref   Binding
	Op    Op
	Value any
}

// When gates on ref == value.
func When(ref Binding, value any) *Gate {
	return &Gate{Ref: ref, Op: OpEq, Value: value}
}

// Unless gates on ref != value.
func Unless(ref Binding, value any) *Gate {
	return &Gate{Ref: ref, Op: OpNe, Value: value}
}

func (g *Gate) eval(v any) bool {
	switch g.Op {
	case OpNe:
		return !equal(v, g.Value)
	default:
		return equal(v, g.Value)
	}
}

func (g *Gate) String() string {
	return fmt.Sprintf("%s %s %v", g.Ref, g.Op, g.Value)
}

// Step is a node of the graph.
type Step struct {
	ID     string
	Inputs map[string]Binding
	Gate   *Gate
	Mode   Mode
	// Over names the list input of a FanOut step.
	Over string
	// Concurrency bounds a FanOut step; zero uses the graph limit.
	Concurrency int
	Run         StepFunc
}

// deps returns the step ids this step reads from, excluding the trigger.
func (s *Step) deps() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(b Binding) {
		if b.Step == TriggerID || seen[b.Step] {
			return
		}
		seen[b.Step] = true
		out = append(out, b.Step)
	}
	for _, b := range sortedBindings(s.Inputs) {
		add(b)
	}
	if s.Gate != nil {
		add(s.Gate.Ref)
	}
	return out
}

// required reports whether a skipped dep skips this step.
func (s *Step) required(dep string) bool {
	if s.Gate != nil && s.Gate.Ref.Step == dep {
		return true
	}
	for _, b := range s.Inputs {
		if b.Step == dep && !b.Optional {
			return true
		}
	}
	return false
}

func sortedBindings(in map[string]Binding) []Binding {
	names := make([]string, 0, len(in))
	for k := range in {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]Binding, len(names))
	for i, n := range names {
		out[i] = in[n]
	}
	return out
}
