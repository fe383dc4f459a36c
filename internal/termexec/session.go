package termexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"loom/internal/analysis"
	"loom/internal/batchexec"
	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/resolve"
)

// Session wraps one terminal-protocol connection (spec §6.3) and the
// process-wide registry it contends for. ID is a uuid, assigned per
// connection, carried on every structured log line so concurrent
// sessions' output can be told apart.
type Session struct {
	ID       string
	conn     *websocket.Conn
	registry *Registry
	writeMu  sync.Mutex
}

// NewSession wraps conn for one terminal-protocol exchange.
func NewSession(conn *websocket.Conn, reg *Registry) *Session {
	id := uuid.New().String()
	logging.Default.Info().Str("session", id).Msg("terminal session opened")
	return &Session{ID: id, conn: conn, registry: reg}
}

// ReadOpenFrame reads and decodes the client's opening JSON object (spec
// §6.3).
func (s *Session) ReadOpenFrame(ctx context.Context) (OpenFrame, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		return OpenFrame{}, err
	}
	if typ != websocket.MessageText {
		return OpenFrame{}, fmt.Errorf("opening frame must be text")
	}
	var of OpenFrame
	if err := json.Unmarshal(data, &of); err != nil {
		return OpenFrame{}, fmt.Errorf("opening frame: %w", err)
	}
	return of, nil
}

func (s *Session) writeText(ctx context.Context, msg string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.Write(ctx, websocket.MessageText, []byte(msg))
}

func (s *Session) writeStatus(ctx context.Context, step string, status StepRunStatus) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.Write(ctx, websocket.MessageText, newStatusFrame(step, status))
}

func (s *Session) writeBinary(ctx context.Context, data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.Write(ctx, websocket.MessageBinary, data)
}

// listen reads client->server text frames for the lifetime of ctx,
// dispatching cancel frames (spec §6.3: "__CANCEL__" / "__CANCEL__:<step>")
// to onCancelStep/onCancelAll. A read error — including client
// disconnect — is treated as an implicit cancel-all and ends the loop.
func (s *Session) listen(ctx context.Context, onCancelStep func(string), onCancelAll func()) {
	go func() {
		for {
			typ, data, err := s.conn.Read(ctx)
			if err != nil {
				onCancelAll()
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			step, isCancel := parseCancelFrame(string(data))
			if !isCancel {
				continue
			}
			if step == "" {
				onCancelAll()
			} else {
				onCancelStep(step)
			}
		}
	}()
}

// relay copies a pty master's output to the client as binary frames,
// prefixed with an "[OUTPUT:<tag>]" marker when tag is non-empty (spec
// §6.3's parallel-mode per-step tagging). Returns once the pty is closed.
func (s *Session) relay(ctx context.Context, master readCloser, tag string) {
	buf := make([]byte, 32*1024)
	for {
		n, err := master.Read(buf)
		if n > 0 {
			data := buf[:n]
			if tag != "" {
				framed := append(append([]byte(nil), outputTag(tag)...), data...)
				s.writeBinary(ctx, framed)
			} else {
				s.writeBinary(ctx, append([]byte(nil), data...))
			}
		}
		if err != nil {
			return
		}
	}
}

// readCloser is the slice of *os.File that relay needs: just Read.
type readCloser interface {
	Read(p []byte) (int, error)
}

// RunIndependentStep implements spec §4.6's first mode: reject if the
// step is already running globally, otherwise run it to completion.
func (s *Session) RunIndependentStep(ctx context.Context, step config.Step, r *resolve.Resolver) error {
	if !s.registry.Reserve(step.Name) {
		s.writeText(ctx, string(BannerError))
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return fmt.Errorf("step %q is already running", step.Name)
	}

	cmd, err := batchexec.BuildCommand(step, r)
	if err != nil {
		s.registry.Finish(step.Name)
		s.writeText(ctx, string(BannerError))
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return err
	}

	s.writeText(ctx, string(BannerRunning))
	s.writeStatus(ctx, step.Name, RunStatusRunning)

	c, master, err := spawnPTY(cmd)
	if err != nil {
		s.registry.Finish(step.Name)
		s.writeText(ctx, string(BannerError))
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return err
	}
	s.registry.SetPID(step.Name, c.Process.Pid)
	defer master.Close()

	s.listen(ctx,
		func(name string) {
			if name == step.Name {
				_ = s.registry.Cancel(step.Name)
			}
		},
		func() { _ = s.registry.Cancel(step.Name) },
	)

	s.relay(ctx, master, "")
	waitErr := c.Wait()
	cancelled := s.registry.Finish(step.Name)

	status, banner := RunStatusCompleted, BannerSuccess
	switch {
	case cancelled:
		status, banner = RunStatusCancelled, BannerCancelled
	case waitErr != nil:
		status, banner = RunStatusFailed, BannerFailed
	}
	logging.Default.Info().Str("session", s.ID).Str("step", step.Name).Str("status", string(status)).Msg("terminal step finished")
	s.writeText(ctx, string(banner))
	s.writeStatus(ctx, step.Name, status)
	s.writeText(ctx, string(BannerCompleted))
	return waitErr
}

// RunParallelSet implements spec §4.6's second mode: an ad-hoc set of
// steps run concurrently, each in its own pty, output tagged
// "[OUTPUT:<name>]". Pre-validated against §4.7's parallel-conflict
// check.
func (s *Session) RunParallelSet(ctx context.Context, p *config.Pipeline, names []string, r *resolve.Resolver) error {
	if ok, diag := analysis.CheckParallelConflict(p, names); !ok {
		s.writeText(ctx, string(BannerError)+" "+diag)
		return fmt.Errorf("parallel conflict: %s", diag)
	}

	s.listen(ctx,
		func(name string) { _ = s.registry.Cancel(name) },
		func() { s.registry.CancelAll() },
	)

	var wg sync.WaitGroup
	for _, name := range names {
		step, found := p.StepByName(name)
		if !found {
			continue
		}
		wg.Add(1)
		go func(step config.Step) {
			defer wg.Done()
			s.runParallelMember(ctx, step, r)
		}(step)
	}
	wg.Wait()

	s.writeText(ctx, string(BannerCompleted))
	return nil
}

func (s *Session) runParallelMember(ctx context.Context, step config.Step, r *resolve.Resolver) {
	if !s.registry.Reserve(step.Name) {
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return
	}
	cmd, err := batchexec.BuildCommand(step, r)
	if err != nil {
		s.registry.Finish(step.Name)
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return
	}
	s.writeStatus(ctx, step.Name, RunStatusRunning)

	c, master, err := spawnPTY(cmd)
	if err != nil {
		s.registry.Finish(step.Name)
		s.writeStatus(ctx, step.Name, RunStatusFailed)
		return
	}
	s.registry.SetPID(step.Name, c.Process.Pid)
	defer master.Close()

	s.relay(ctx, master, step.Name)
	waitErr := c.Wait()
	cancelled := s.registry.Finish(step.Name)

	status := RunStatusCompleted
	switch {
	case cancelled:
		status = RunStatusCancelled
	case waitErr != nil:
		status = RunStatusFailed
	}
	s.writeStatus(ctx, step.Name, status)
}

// RunSequential implements spec §4.6's third mode: like §4.5's sequential
// batch executor, but one pty-attached child at a time over the channel;
// a cancel frame terminates whichever child is currently active.
func (s *Session) RunSequential(ctx context.Context, o *orchestrator.Orchestrator, p *config.Pipeline, r *resolve.Resolver) {
	var mu sync.Mutex
	var current string

	s.listen(ctx,
		func(name string) {
			mu.Lock()
			active := current
			mu.Unlock()
			if name == active {
				_ = s.registry.Cancel(active)
			}
		},
		func() {
			mu.Lock()
			active := current
			mu.Unlock()
			if active != "" {
				_ = s.registry.Cancel(active)
			}
		},
	)

	o.Start(ctx)
	for ev := range o.Events() {
		switch ev.Kind {
		case orchestrator.EventSkipped:
			s.writeText(ctx, string(BannerSkipped)+" "+ev.Step)

		case orchestrator.EventReady:
			step, _ := p.StepByName(ev.Step)
			mu.Lock()
			current = step.Name
			mu.Unlock()

			if !s.registry.Reserve(step.Name) {
				s.writeText(ctx, string(BannerError)+" "+step.Name)
				o.Results() <- orchestrator.StepResult{Step: step.Name, Err: fmt.Errorf("already running")}
				continue
			}

			cmd, err := batchexec.BuildCommand(step, r)
			if err != nil {
				s.registry.Finish(step.Name)
				s.writeText(ctx, string(BannerFailed)+" "+step.Name)
				s.writeStatus(ctx, step.Name, RunStatusFailed)
				o.Results() <- orchestrator.StepResult{Step: step.Name, Err: err}
				continue
			}

			s.writeText(ctx, string(BannerRunning)+" "+step.Name)
			s.writeStatus(ctx, step.Name, RunStatusRunning)

			c, master, err := spawnPTY(cmd)
			if err != nil {
				s.registry.Finish(step.Name)
				s.writeText(ctx, string(BannerFailed)+" "+step.Name)
				s.writeStatus(ctx, step.Name, RunStatusFailed)
				o.Results() <- orchestrator.StepResult{Step: step.Name, Err: err}
				continue
			}
			s.registry.SetPID(step.Name, c.Process.Pid)

			s.relay(ctx, master, "")
			master.Close()
			waitErr := c.Wait()
			cancelled := s.registry.Finish(step.Name)
			mu.Lock()
			current = ""
			mu.Unlock()

			status, banner := RunStatusCompleted, BannerSuccess
			switch {
			case cancelled:
				status, banner = RunStatusCancelled, BannerCancelled
			case waitErr != nil:
				status, banner = RunStatusFailed, BannerFailed
			}
			s.writeText(ctx, string(banner)+" "+step.Name)
			s.writeStatus(ctx, step.Name, status)
			o.Results() <- orchestrator.StepResult{Step: step.Name, Err: waitErr}

		case orchestrator.EventWaiting, orchestrator.EventComplete:
		}
	}
	s.writeText(ctx, string(BannerCompleted))
}
