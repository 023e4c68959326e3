package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"city-planner/backend/pkg/models"
)

// Status is the state of a step within a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// StepState is the per-run record of a step.
type StepState struct {
	Status     Status
	Output     Values
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// StepError is a step that failed on its own.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RunError lists the root failures of a run. Steps failed only because a
// dependency failed are not included.
type RunError struct {
	RunID    string
	Failures []*StepError
}

func (e *RunError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("workflow run %s failed: %s", e.RunID, strings.Join(parts, "; "))
}

func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Steps returns the ids of the failed steps.
func (e *RunError) Steps() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.Step
	}
	return ids
}

// Output keys copied into step reports when a step sets them to a string.
const (
	ReportSource  = "source"
	ReportMessage = "message"
)

// Run is one execution of a graph. It is created per call to Execute and
// never persisted.
type Run struct {
	ID      string
	Graph   string
	Trigger Values

	mu     sync.RWMutex
	states map[string]*StepState
	order  []string
}

// State returns a copy of the state of step id.
func (r *Run) State(id string) (StepState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	if !ok {
		return StepState{}, false
	}
	return *s, true
}

// Status returns the status of step id, or pending if unknown.
func (r *Run) Status(id string) Status {
	s, ok := r.State(id)
	if !ok {
		return StatusPending
	}
	return s.Status
}

// Output returns the output of a completed step.
func (r *Run) Output(id string) (Values, bool) {
	s, ok := r.State(id)
	if !ok || s.Status != StatusCompleted {
		return nil, false
	}
	return s.Output, true
}

// Steps reports every step in declaration order.
func (r *Run) Steps() []models.StepReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]models.StepReport, 0, len(r.order))
	for _, id := range r.order {
		s := r.states[id]
		rep := models.StepReport{ID: id, Status: string(s.Status)}
		if s.Err != nil {
			rep.Error = s.Err.Error()
		}
		rep.Source, _ = s.Output[ReportSource].(string)
		rep.Message, _ = s.Output[ReportMessage].(string)
		if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
			rep.Duration = s.FinishedAt.Sub(s.StartedAt)
		}
		reports = append(reports, rep)
	}
	return reports
}

func (r *Run) set(id string, fn func(*StepState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.states[id])
}

// Execute runs the graph with trigger as input. Steps that can run always
// run; the returned error is a *RunError when any step failed on its own.
func (g *Graph) Execute(ctx context.Context, trigger Values) (*Run, error) {
	run := &Run{
		ID:      uuid.NewString(),
		Graph:   g.name,
		Trigger: trigger,
		states:  make(map[string]*StepState, len(g.order)),
		order:   g.order,
	}
	for _, id := range g.order {
		run.states[id] = &StepState{Status: StatusPending}
	}

	logger := g.logger.With("workflow", g.name, "run_id", run.ID)
	logger.Debug("workflow run started")

	for _, st := range g.stages {
		if len(st.steps) == 1 {
			g.runStep(ctx, run, st.steps[0])
			continue
		}
		_, _ = MapJoin(ctx, st.steps, g.limit, func(ctx context.Context, _ int, s *Step) (struct{}, error) {
			g.runStep(ctx, run, s)
			return struct{}{}, nil
		})
	}

	var failures []*StepError
	for _, id := range g.order {
		s, _ := run.State(id)
		if s.Status == StatusFailed && !errors.Is(s.Err, ErrDependencyFailed) {
			failures = append(failures, &StepError{Step: id, Err: s.Err})
		}
	}
	if len(failures) > 0 {
		err := &RunError{RunID: run.ID, Failures: failures}
		logger.Warn("workflow run failed", "steps", err.Steps())
		return run, err
	}
	logger.Debug("workflow run completed")
	return run, nil
}

func (g *Graph) runStep(ctx context.Context, run *Run, s *Step) {
	for _, dep := range s.deps() {
		switch run.Status(dep) {
		case StatusFailed:
			run.set(s.ID, func(st *StepState) {
				st.Status = StatusFailed
				st.Err = fmt.Errorf("%w: %s", ErrDependencyFailed, dep)
			})
			return
		case StatusSkipped:
			if s.required(dep) {
				run.set(s.ID, func(st *StepState) { st.Status = StatusSkipped })
				return
			}
		}
	}

	if s.Gate != nil {
		v, _ := g.resolve(run, s.Gate.Ref)
		if !s.Gate.eval(v) {
			run.set(s.ID, func(st *StepState) { st.Status = StatusSkipped })
			return
		}
	}

	in := make(Values, len(s.Inputs)+2)
	for name, b := range s.Inputs {
		if v, ok := g.resolve(run, b); ok {
			in[name] = v
		}
	}

	run.set(s.ID, func(st *StepState) {
		st.Status = StatusRunning
		st.StartedAt = time.Now()
	})

	var (
		out Values
		err error
	)
	if s.Mode == FanOut {
		out, err = g.fanOut(ctx, s, in)
	} else {
		out, err = call(ctx, s.Run, in)
	}

	run.set(s.ID, func(st *StepState) {
		st.FinishedAt = time.Now()
		if err != nil {
			st.Status = StatusFailed
			st.Err = err
			return
		}
		st.Status = StatusCompleted
		st.Output = out
	})
	if err != nil {
		g.logger.Warn("workflow step failed", "workflow", g.name, "run_id", run.ID, "step", s.ID, "error", err)
	}
}

func (g *Graph) fanOut(ctx context.Context, s *Step, in Values) (Values, error) {
	items, ok := toSlice(in[s.Over])
	if !ok {
		return nil, fmt.Errorf("input %q is not a list", s.Over)
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = g.limit
	}
	outs, err := MapJoin(ctx, items, limit, func(ctx context.Context, i int, item any) (Values, error) {
		elem := make(Values, len(in)+2)
		for k, v := range in {
			elem[k] = v
		}
		elem["item"] = item
		elem["index"] = i
		out, err := call(ctx, s.Run, elem)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return Values{"items": outs}, nil
}

func (g *Graph) resolve(run *Run, b Binding) (any, bool) {
	var src any
	if b.Step == TriggerID {
		src = map[string]any(run.Trigger)
	} else {
		out, ok := run.Output(b.Step)
		if !ok {
			return nil, false
		}
		src = map[string]any(out)
	}
	return lookup(src, b.Path)
}

func call(ctx context.Context, fn StepFunc, in Values) (out Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, in)
}
