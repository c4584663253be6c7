package memsup

import (
	"fmt"
	"os"
	"sync"

	"github.com/KatanaGraph/katana-sub004/pkg/logger"
	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
	"github.com/KatanaGraph/katana-sub004/pkg/tracer"
)

// Manager is implemented by any subsystem that owns reclaimable standby
// memory (see internal/manager.PropertyCache). The supervisor calls
// FreeStandby on registered managers when a policy demands reclamation.
type Manager interface {
	Name() string
	FreeStandby(goal int64) int64
}

// counterPair is one registered manager's share of the supervisor's
// active/standby totals.
type counterPair struct {
	active  int64
	standby int64
}

// Supervisor tracks active (in-use) and standby (reclaimable) memory per
// registered manager, consulting a Policy to decide when to reclaim standby
// bytes or terminate the process outright.
type Supervisor struct {
	policy    Policy
	log       logger.Logger
	tr        *tracer.Tracer
	terminate func(code int)

	mu       sync.Mutex
	managers map[string]Manager
	counters map[string]*counterPair
	active   int64
	standby  int64
}

// Option configures a Supervisor at construction.
type Option func(*Supervisor)

// WithLogger overrides the supervisor's logger (defaults to the global logger).
func WithLogger(l logger.Logger) Option { return func(s *Supervisor) { s.log = l } }

// WithTracer overrides the supervisor's tracer (defaults to a noop tracer).
func WithTracer(t *tracer.Tracer) Option { return func(s *Supervisor) { s.tr = t } }

// WithTerminate overrides the process-exit hook that KillSelfForLackOfMemory
// invokes when the policy's KillNow trips, so
// tests can observe a kill decision without actually exiting.
func WithTerminate(fn func(code int)) Option { return func(s *Supervisor) { s.terminate = fn } }

// New creates a Supervisor governed by policy.
func New(policy Policy, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy:    policy,
		log:       logger.OrGlobal(nil),
		tr:        tracer.NewNoop(),
		terminate: os.Exit,
		managers:  make(map[string]Manager),
		counters:  make(map[string]*counterPair),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPolicy swaps the active policy (e.g. switching from performance to
// meek under sustained pressure).
func (s *Supervisor) SetPolicy(p Policy) { s.policy = p }

// Policy returns the currently active policy.
func (s *Supervisor) Policy() Policy { return s.policy }

// Register adds a manager to the registry with a fresh, zeroed counter
// pair. Registering the same name twice is a contract violation.
func (s *Supervisor) Register(m Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.managers[m.Name()]; exists {
		return perrors.Wrap(perrors.CodeAlreadyExists, fmt.Sprintf("manager %q already registered", m.Name()), nil)
	}
	s.managers[m.Name()] = m
	s.counters[m.Name()] = &counterPair{}
	return nil
}

// Unregister removes a manager, requiring its active and standby counters
// to both be zero. If they are not, the mismatch is logged by name and
// subtracted from the running totals so the registry never leaves a
// dangling manager's share uncounted.
func (s *Supervisor) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.counters[name]
	if !exists {
		return perrors.Wrap(perrors.CodeNotRegistered, fmt.Sprintf("manager %q not registered", name), nil)
	}
	if c.active != 0 || c.standby != 0 {
		s.log.Warn("memsup: unregistering manager %q with nonzero counters: active=%d standby=%d", name, c.active, c.standby)
		s.active -= c.active
		s.standby -= c.standby
		if s.active < 0 {
			s.active = 0
		}
		if s.standby < 0 {
			s.standby = 0
		}
	}
	delete(s.managers, name)
	delete(s.counters, name)
	return nil
}

func (s *Supervisor) counterFor(name string) (*counterPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		return nil, perrors.Wrap(perrors.CodeNotRegistered, fmt.Sprintf("manager %q not registered", name), nil)
	}
	return c, nil
}

// BorrowActive accounts for n bytes newly held as active (in-use, not
// reclaimable) memory by the manager named name, then evaluates the
// policy's reclaim goal (reclaiming if positive) and kill decision
// (terminating the process if true).
func (s *Supervisor) BorrowActive(name string, n int64) error {
	c, err := s.counterFor(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	c.active += n
	s.active += n
	s.mu.Unlock()

	s.ReclaimForMemoryPressure()
	s.KillSelfForLackOfMemory()
	return nil
}

// BorrowStandby reclaims first if the policy asks for it, then refuses the
// whole request (returning 0) if the process is still under high memory
// pressure afterward. Otherwise it grants the request and returns
// min(goal, bytes left in the policy's physical budget).
func (s *Supervisor) BorrowStandby(name string, goal int64) (int64, error) {
	c, err := s.counterFor(name)
	if err != nil {
		return 0, err
	}
	s.ReclaimForMemoryPressure()

	s.mu.Lock()
	active, standby := s.active, s.standby
	s.mu.Unlock()
	if s.policy.PressureHigh(active, standby) {
		return 0, nil
	}

	s.mu.Lock()
	c.standby += goal
	s.standby += goal
	used := s.active + s.standby
	s.mu.Unlock()

	remaining := s.policy.Budget() - used
	if remaining < 0 {
		remaining = 0
	}
	if goal < remaining {
		return goal, nil
	}
	return remaining, nil
}

// ReturnActive releases n bytes previously borrowed as active by name, then
// sanity-checks the counters and re-evaluates the kill decision.
func (s *Supervisor) ReturnActive(name string, n int64) error {
	c, err := s.counterFor(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if n > c.active {
		n = c.active
	}
	c.active -= n
	s.active -= n
	if s.active < 0 {
		s.active = 0
	}
	s.mu.Unlock()

	s.Sanity()
	s.KillSelfForLackOfMemory()
	return nil
}

// ReturnStandby releases n bytes previously borrowed as standby by name,
// then sanity-checks the counters and re-evaluates the kill decision.
func (s *Supervisor) ReturnStandby(name string, n int64) error {
	c, err := s.counterFor(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if n > c.standby {
		n = c.standby
	}
	c.standby -= n
	s.standby -= n
	if s.standby < 0 {
		s.standby = 0
	}
	s.mu.Unlock()

	s.Sanity()
	s.KillSelfForLackOfMemory()
	return nil
}

// ActiveToStandby reclassifies n bytes (capped at name's active count) from
// active to standby (e.g. a property column finishes being read and
// becomes cache-evictable), reclaims if the policy now asks for it given
// the new counters, and reports whether pressure remains high afterward: 0
// if so — the move is still recorded, only the return value signals
// refusal — otherwise n.
func (s *Supervisor) ActiveToStandby(name string, n int64) (int64, error) {
	c, err := s.counterFor(name)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if n > c.active {
		n = c.active
	}
	c.active -= n
	c.standby += n
	s.active -= n
	s.standby += n
	s.mu.Unlock()

	s.ReclaimForMemoryPressure()

	s.mu.Lock()
	active, standby := s.active, s.standby
	s.mu.Unlock()
	if s.policy.PressureHigh(active, standby) {
		return 0, nil
	}
	return n, nil
}

// StandbyToActive reclassifies n bytes (capped at name's standby count)
// from standby to active (e.g. a cached column is read again). Always
// succeeds; may itself trigger reclamation since the moved bytes can no
// longer be reclaimed from this manager.
func (s *Supervisor) StandbyToActive(name string, n int64) (int64, error) {
	c, err := s.counterFor(name)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if n > c.standby {
		n = c.standby
	}
	c.standby -= n
	c.active += n
	s.standby -= n
	s.active += n
	s.mu.Unlock()

	s.ReclaimForMemoryPressure()
	return n, nil
}

// ActiveBytes returns the current active byte counter.
func (s *Supervisor) ActiveBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StandbyBytes returns the current standby byte counter.
func (s *Supervisor) StandbyBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standby
}

// Sanity recomputes active/standby totals from the per-manager counters and
// compares them against the tracked totals, logging a warning naming both
// numbers on mismatch and on any negative counter. Returns whether the
// counters were found consistent.
func (s *Supervisor) Sanity() bool {
	s.mu.Lock()
	var sumActive, sumStandby int64
	for _, c := range s.counters {
		sumActive += c.active
		sumStandby += c.standby
	}
	active, standby := s.active, s.standby
	s.mu.Unlock()

	ok := sumActive == active && sumStandby == standby
	if !ok {
		s.log.Warn("memsup: counters mismatch: tracked active=%d standby=%d, summed over managers active=%d standby=%d",
			active, standby, sumActive, sumStandby)
	}
	if active < 0 || standby < 0 {
		s.log.Warn("memsup: negative counters: active=%d standby=%d", active, standby)
		ok = false
	}
	return ok
}

// ReclaimForMemoryPressure asks the active policy for a reclaim goal and,
// if positive, walks the registered managers (map iteration, no ordering
// guarantee) asking each to free standby bytes until the goal is met or
// every manager has been asked once. Per-manager counters are adjusted
// here, at the point the supervisor learns which manager gave up how much.
func (s *Supervisor) ReclaimForMemoryPressure() int64 {
	s.mu.Lock()
	active, standby := s.active, s.standby
	s.mu.Unlock()

	goal := s.policy.ReclaimGoal(active, standby)
	if goal <= 0 {
		return 0
	}
	scope := s.tr.StartActiveSpan("reclaim_for_memory_pressure")
	defer scope.Close()
	scope.Span().SetTag("goal_bytes", goal)

	s.mu.Lock()
	managers := make([]Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	var freed int64
	for _, m := range managers {
		if freed >= goal {
			break
		}
		f := m.FreeStandby(goal - freed)
		if f <= 0 {
			continue
		}

		s.mu.Lock()
		if c, ok := s.counters[m.Name()]; ok {
			if f > c.standby {
				f = c.standby
			}
			c.standby -= f
		}
		s.standby -= f
		if s.standby < 0 {
			s.standby = 0
		}
		s.mu.Unlock()

		freed += f
		scope.Span().Log("freed_from_manager", tracer.Tags{"manager": m.Name(), "bytes": f})
	}
	if freed < goal {
		s.log.Warn("reclaim fell short of goal: freed %d of %d bytes", freed, goal)
	}
	return freed
}

// IsMemoryPressureHigh reports whether the active policy considers the
// process under high memory pressure right now.
func (s *Supervisor) IsMemoryPressureHigh() bool {
	s.mu.Lock()
	active, standby := s.active, s.standby
	s.mu.Unlock()
	return s.policy.PressureHigh(active, standby)
}

// KillSelfForLackOfMemory checks the active policy's KillNow predicate and,
// if it trips, logs the decision and invokes the terminate hook (os.Exit by
// default). Returns whether it decided to terminate: false when KillNow does
// not trip; with the default os.Exit hook a kill decision never returns,
// while a test's injected Terminate hook lets it return true.
func (s *Supervisor) KillSelfForLackOfMemory() bool {
	s.mu.Lock()
	active, standby := s.active, s.standby
	s.mu.Unlock()
	if !s.policy.KillNow(active, standby) {
		return false
	}
	scope := s.tr.StartActiveSpan("kill_self_for_lack_of_memory")
	scope.Span().SetTag("active_bytes", active)
	scope.Span().SetTag("standby_bytes", standby)
	scope.Span().LogError(perrors.New(perrors.CodeOOMKill, "memory budget exceeded, self-terminating"))
	scope.Close()
	s.log.Error("killing self for lack of memory: active=%d standby=%d", active, standby)
	s.terminate(137) // matches the conventional SIGKILL exit code an OOM-killed process would report
	return true
}
