package orchestrator

import (
	"context"

	"loom/internal/logging"
)

// StepState is a step's position in the scheduler's state machine.
type StepState int

const (
	Pending StepState = iota
	Running
	Complete
	Failed
	Skipped
)

// EventKind names the four events the scheduler can emit (spec §4.4).
type EventKind string

const (
	// EventReady announces a step whose dependencies are all Complete;
	// the driver is expected to run it and report a StepResult back.
	EventReady EventKind = "ready"
	// EventSkipped announces a step that will never run because a
	// dependency Failed or was itself Skipped (failure propagation).
	EventSkipped EventKind = "skipped"
	// EventWaiting means nothing new could be dispatched this turn and
	// the driver should simply wait for an in-flight step to finish.
	EventWaiting EventKind = "waiting"
	// EventComplete means every scoped step reached a terminal state.
	EventComplete EventKind = "complete"
)

// Event is one message from the scheduler to its driver.
type Event struct {
	Kind   EventKind
	Step   string // set for Ready/Skipped
	Reason string // set for Skipped
}

// StepResult reports the outcome of a dispatched step back to the
// scheduler. Err nil means success.
type StepResult struct {
	Step string
	Err  error
}

// Orchestrator drives the pure scheduling coroutine described in spec
// §4.4/§9: a suspendable function that yields events and consumes
// results, never touching a process table itself.
type Orchestrator struct {
	graph *DependencyGraph
	order []string // scope, in pipeline declaration order
	state map[string]StepState

	events  chan Event
	results chan StepResult
}

// New builds an Orchestrator scoped to scope (as returned by
// GetStepsToRun), ready to Run.
func New(graph *DependencyGraph, scope []string) *Orchestrator {
	state := make(map[string]StepState, len(scope))
	for _, name := range scope {
		state[name] = Pending
	}
	// results holds one slot per scoped step: each step reports at most
	// one result, so a driver's send never blocks while the scheduler is
	// itself blocked emitting the next event.
	return &Orchestrator{
		graph:   graph,
		order:   append([]string(nil), scope...),
		state:   state,
		events:  make(chan Event),
		results: make(chan StepResult, len(scope)),
	}
}

// Events returns the channel the driver reads scheduler events from.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// Results returns the channel the driver reports step outcomes on.
func (o *Orchestrator) Results() chan<- StepResult { return o.results }

// Start runs the scheduler coroutine in its own goroutine.
func (o *Orchestrator) Start(ctx context.Context) { go o.Run(ctx) }

// Run drives the coroutine until every scoped step reaches a terminal
// state (or ctx is cancelled), then closes the events channel.
func (o *Orchestrator) Run(ctx context.Context) {
	defer close(o.events)

	o.dispatch()
	for {
		if o.pendingCount() == 0 && !o.anyRunning() {
			o.events <- Event{Kind: EventComplete}
			return
		}
		select {
		case <-ctx.Done():
			return
		case res := <-o.results:
			if res.Err != nil {
				o.state[res.Step] = Failed
			} else {
				o.state[res.Step] = Complete
			}
			o.dispatch()
		}
	}
}

// dispatch advances every step whose dependencies just became decided:
// Ready for steps whose deps are all Complete, Skipped (cascading) for
// steps blocked on a Failed or Skipped dependency. It loops to a
// fixpoint within one turn since a skip can itself unblock a further
// skip. If nothing changed but steps remain pending, it emits exactly
// one Waiting event.
func (o *Orchestrator) dispatch() {
	anyEvent := false
	for {
		progressed := false
		for _, name := range o.order {
			if o.state[name] != Pending {
				continue
			}
			ready, blocked := o.depsDecided(name)
			switch {
			case blocked:
				o.state[name] = Skipped
				logging.Default.Info().Str("step", name).Str("transition", "skipped").Msg("step skipped")
				o.events <- Event{Kind: EventSkipped, Step: name, Reason: "a dependency failed or was skipped"}
				progressed, anyEvent = true, true
			case ready:
				o.state[name] = Running
				logging.Default.Info().Str("step", name).Str("transition", "ready").Msg("step ready")
				o.events <- Event{Kind: EventReady, Step: name}
				progressed, anyEvent = true, true
			}
		}
		if !progressed {
			break
		}
	}
	if !anyEvent && o.pendingCount() > 0 {
		o.events <- Event{Kind: EventWaiting}
	}
}

// depsDecided reports whether name's dependencies are all Complete
// (ready), or at least one is Failed/Skipped (blocked). A dependency
// outside this run's scope (e.g. produced by an earlier `--from` run) is
// treated as already satisfied.
func (o *Orchestrator) depsDecided(name string) (ready bool, blocked bool) {
	for _, dep := range o.graph.Deps[name] {
		st, known := o.state[dep]
		if !known {
			continue
		}
		switch st {
		case Complete:
			continue
		case Skipped, Failed:
			return false, true
		default:
			return false, false
		}
	}
	return true, false
}

func (o *Orchestrator) pendingCount() int {
	n := 0
	for _, name := range o.order {
		if o.state[name] == Pending {
			n++
		}
	}
	return n
}

func (o *Orchestrator) anyRunning() bool {
	for _, name := range o.order {
		if o.state[name] == Running {
			return true
		}
	}
	return false
}

// State returns the current state of a scoped step, for result reporting.
func (o *Orchestrator) State(name string) StepState { return o.state[name] }
