package workflow

import (
	"errors"
	"fmt"

	"city-planner/backend/internal/logging"
)

type stageKind int

const (
	stageSequential stageKind = iota
	stageParallel
	stageBranch
)

func (k stageKind) String() string {
	switch k {
	case stageParallel:
		return "parallel"
	case stageBranch:
		return "branch"
	default:
		return "sequential"
	}
}

type stage struct {
	kind   stageKind
	steps  []*Step
	on     Binding
	domain []any
}

// Builder assembles a Graph stage by stage.
type Builder struct {
	name   string
	stages []stage
	limit  int
	logger *logging.Logger
}

// NewBuilder starts a graph with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, logger: logging.Nop()}
}

// Then appends a stage with a single step.
func (b *Builder) Then(s Step) *Builder {
	b.stages = append(b.stages, stage{kind: stageSequential, steps: []*Step{&s}})
	return b
}

// Parallel appends a stage whose steps run concurrently. The next stage
// starts after all of them end.
func (b *Builder) Parallel(steps ...Step) *Builder {
	b.stages = append(b.stages, stage{kind: stageParallel, steps: ptrs(steps)})
	return b
}

// Branch appends a stage of gated arms. Every arm must gate on on, and each
// value of domain must open exactly one arm.
func (b *Builder) Branch(on Binding, domain []any, arms ...Step) *Builder {
	b.stages = append(b.stages, stage{kind: stageBranch, steps: ptrs(arms), on: on, domain: domain})
	return b
}

// WithConcurrency bounds parallel stages and fan-out steps.
func (b *Builder) WithConcurrency(n int) *Builder {
	b.limit = n
	return b
}

// WithLogger sets the logger used by runs of the graph.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

func ptrs(steps []Step) []*Step {
	out := make([]*Step, len(steps))
	for i := range steps {
		s := steps[i]
		out[i] = &s
	}
	return out
}

// Graph is a validated, immutable step graph.
type Graph struct {
	name    string
	stages  []stage
	byID    map[string]*Step
	stageOf map[string]int
	order   []string
	limit   int
	logger  *logging.Logger
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// StepIDs returns step ids in declaration order.
func (g *Graph) StepIDs() []string {
	return append([]string(nil), g.order...)
}

// Build validates the stages and returns the graph. All problems are
// reported together, each wrapping ErrInvalidGraph.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		name:    b.name,
		stages:  b.stages,
		byID:    make(map[string]*Step),
		stageOf: make(map[string]int),
		limit:   b.limit,
		logger:  b.logger,
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...)))
	}

	if len(b.stages) == 0 {
		fail("graph %q has no steps", b.name)
	}

	for i, st := range b.stages {
		if len(st.steps) == 0 {
			fail("%s stage %d is empty", st.kind, i)
		}
		for _, s := range st.steps {
			switch {
			case s.ID == "":
				fail("stage %d has a step with an empty id", i)
				continue
			case s.ID == TriggerID:
				fail("step id %q is reserved", TriggerID)
				continue
			}
			if _, dup := g.byID[s.ID]; dup {
				fail("duplicate step id %q", s.ID)
				continue
			}
			g.byID[s.ID] = s
			g.stageOf[s.ID] = i
			g.order = append(g.order, s.ID)

			if s.Run == nil {
				fail("step %q has no run function", s.ID)
			}
			if s.Mode == FanOut {
				if s.Over == "" {
					fail("fan-out step %q has no list input", s.ID)
				} else if _, ok := s.Inputs[s.Over]; !ok {
					fail("fan-out step %q iterates over unbound input %q", s.ID, s.Over)
				}
			}
		}
	}

	for _, id := range g.order {
		s := g.byID[id]
		for _, dep := range s.deps() {
			if _, ok := g.byID[dep]; !ok {
				fail("step %q references unknown step %q", id, dep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		fail("dependency cycle: %v", cycle)
	}

	for i, st := range b.stages {
		for _, s := range st.steps {
			if g.byID[s.ID] != s {
				continue
			}
			for _, dep := range s.deps() {
				at, ok := g.stageOf[dep]
				if !ok || dep == s.ID {
					continue
				}
				switch {
				case at == i && st.kind != stageSequential:
					fail("step %q depends on %q in the same %s stage", s.ID, dep, st.kind)
				case at > i:
					fail("step %q references later step %q", s.ID, dep)
				}
			}
			if s.Gate != nil && st.kind != stageBranch {
				fail("step %q has a gate outside a branch stage", s.ID)
			}
		}
		if st.kind == stageBranch {
			errs = append(errs, validateBranch(i, st)...)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

func validateBranch(i int, st stage) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidGraph, fmt.Sprintf(format, args...)))
	}

	if len(st.domain) == 0 {
		fail("branch stage %d on %s has an empty domain", i, st.on)
	}
	for _, s := range st.steps {
		switch {
		case s.Gate == nil:
			fail("branch arm %q has no gate", s.ID)
		case s.Gate.Ref.Step != st.on.Step || s.Gate.Ref.Path != st.on.Path:
			fail("branch arm %q gates on %s, expected %s", s.ID, s.Gate.Ref, st.on)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	for _, v := range st.domain {
		var open []string
		for _, s := range st.steps {
			if s.Gate.eval(v) {
				open = append(open, s.ID)
			}
		}
		switch {
		case len(open) == 0:
			fail("branch on %s is not exhaustive: no arm for %v", st.on, v)
		case len(open) > 1:
			fail("branch on %s overlaps: %v all open for %v", st.on, open, v)
		}
	}
	return errs
}

// findCycle returns a dependency cycle, including self references, or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range g.byID[id].deps() {
			if _, ok := g.byID[dep]; !ok {
				continue
			}
			switch color[dep] {
			case grey:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						break
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}
