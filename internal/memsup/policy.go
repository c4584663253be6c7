// Package memsup implements the memory-budget controller: MemoryPolicy
// predicates (C2) and the MemorySupervisor that consults them (C3). It is
// the Go port of katana's MemoryPolicy.h/MemorySupervisor.h.
package memsup

import (
	"fmt"
	"math"

	"github.com/KatanaGraph/katana-sub004/pkg/memprobe"
)

// Thresholds parameterizes a Policy's pressure/kill decisions. All ratios
// are fractions of the physical budget; OOM fields compare directly against
// the Linux oom_score (0-1000 on most kernels, though some report higher).
type Thresholds struct {
	HighUsedRatio   float64 // used/budget ratio at which PressureHigh trips
	KillUsedRatio   float64 // used/budget ratio at which KillNow trips
	KillOOM         int64   // oom_score at/above which KillNow trips regardless of ratio
	HighPressureOOM int64   // oom_score at/above which PressureHigh trips regardless of ratio
}

// Named default threshold sets, preserved exactly from the original's
// four built-in policies.
var (
	PerformanceThresholds = Thresholds{HighUsedRatio: 0.85, KillUsedRatio: 0.95, KillOOM: 1280, HighPressureOOM: 1100}
	MinimalThresholds     = Thresholds{HighUsedRatio: 0.60, KillUsedRatio: 0.80, KillOOM: 900, HighPressureOOM: 700}
	MeekThresholds        = Thresholds{HighUsedRatio: 0.40, KillUsedRatio: 0.60, KillOOM: 600, HighPressureOOM: 400}
)

// Policy decides how aggressively the supervisor reclaims standby memory
// and when it must kill the process outright. Implementations read live
// signals from a memprobe.Source rather than caching them, so a policy
// reflects the current process state on every call.
type Policy interface {
	// Name identifies the policy for logging (e.g. "performance").
	Name() string
	// ReclaimGoal returns how many bytes of standby memory should be freed
	// given the current active/standby counters. A goal of 0 means no
	// reclamation is needed right now.
	ReclaimGoal(active, standby int64) int64
	// PressureHigh reports whether the process is under high memory
	// pressure and callers should shed load (e.g. deny new borrows).
	PressureHigh(active, standby int64) bool
	// KillNow reports whether the process is so close to OOM that it
	// should terminate itself rather than risk the kernel OOM-killer
	// picking an unrelated victim.
	KillNow(active, standby int64) bool
	// Budget reports the physical memory budget this policy reclaims
	// against, so the supervisor can compute "bytes left in the budget"
	// without duplicating threshold state.
	Budget() int64
}

// basePolicy carries the live signal source, thresholds, and budget every
// threshold-driven policy needs; it is not itself a Policy, since
// performance/minimal/meek each give PressureHigh/KillNow/ReclaimGoal a
// genuinely different shape rather than sharing one formula.
type basePolicy struct {
	name   string
	t      Thresholds
	src    memprobe.Source
	budget int64
}

func (p *basePolicy) Name() string  { return p.name }
func (p *basePolicy) Budget() int64 { return p.budget }

func (p *basePolicy) usedRatio(active, standby int64) float64 {
	if p.budget <= 0 {
		return 0
	}
	return float64(active+standby) / float64(p.budget)
}

// scarceStrict reports available_bytes < 10% of budget, the clause
// pressure_high/kill_now AND against (performance, meek).
func (p *basePolicy) scarceStrict() bool {
	return p.src.AvailableBytes() < int64(0.10*float64(p.budget))
}

// scarceOrEqual reports available_bytes <= 10% of budget, the looser
// clause performance's reclaim_goal gates on.
func (p *basePolicy) scarceOrEqual() bool {
	return p.src.AvailableBytes() <= int64(0.10*float64(p.budget))
}

// performancePolicy favors throughput: pressure/kill only trip once the
// host is also genuinely low on free memory (available_bytes scarce), and
// reclaim is gated on a high oom_score rather than the used ratio alone —
// a used-ratio spike on an otherwise memory-rich host does not reclaim.
type performancePolicy struct{ basePolicy }

// NewPerformancePolicy favors throughput: it only reclaims and kills close
// to the budget limit. This is the default for batch analytics jobs.
func NewPerformancePolicy(src memprobe.Source, physicalBudget int64) Policy {
	return &performancePolicy{basePolicy{name: "performance", t: PerformanceThresholds, src: src, budget: physicalBudget}}
}

func (p *performancePolicy) PressureHigh(active, standby int64) bool {
	tripped := p.src.OOMScore() >= p.t.HighPressureOOM || p.usedRatio(active, standby) >= p.t.HighUsedRatio
	return tripped && p.scarceStrict()
}

func (p *performancePolicy) KillNow(active, standby int64) bool {
	tripped := p.src.OOMScore() >= p.t.KillOOM || p.usedRatio(active, standby) >= p.t.KillUsedRatio
	return tripped && p.scarceStrict()
}

// Below this oom_score, ReclaimGoal never fires; at or above it but below
// reclaimGoalOOMSplit, it frees a quarter of standby, otherwise half.
const (
	reclaimGoalMinOOMScore = 1000
	reclaimGoalOOMSplit    = 1200
)

func (p *performancePolicy) ReclaimGoal(active, standby int64) int64 {
	if standby <= 0 {
		return 0
	}
	if p.src.OOMScore() < reclaimGoalMinOOMScore {
		return 0
	}
	if p.usedRatio(active, standby) <= p.t.HighUsedRatio {
		return 0
	}
	if !p.scarceOrEqual() {
		return 0
	}
	if p.src.OOMScore() < reclaimGoalOOMSplit {
		return standby / 4
	}
	return standby / 2
}

// minimalPolicy drops the available_bytes clause from pressure/kill (either
// signal alone is enough) and, once under pressure, reclaims every byte of
// standby rather than a fraction — appropriate for a shared host where
// standby memory should never be held "just in case".
type minimalPolicy struct{ basePolicy }

// NewMinimalPolicy reclaims earlier and kills earlier, for shared or
// memory-constrained hosts.
func NewMinimalPolicy(src memprobe.Source, physicalBudget int64) Policy {
	return &minimalPolicy{basePolicy{name: "minimal", t: MinimalThresholds, src: src, budget: physicalBudget}}
}

func (p *minimalPolicy) PressureHigh(active, standby int64) bool {
	return p.src.OOMScore() >= p.t.HighPressureOOM || p.usedRatio(active, standby) >= p.t.HighUsedRatio
}

func (p *minimalPolicy) KillNow(active, standby int64) bool {
	return p.src.OOMScore() >= p.t.KillOOM || p.usedRatio(active, standby) >= p.t.KillUsedRatio
}

func (p *minimalPolicy) ReclaimGoal(active, standby int64) int64 {
	if standby <= 0 || !p.PressureHigh(active, standby) {
		return 0
	}
	return standby
}

// meekPolicy keeps performance's pressure/kill shape (with its own, much
// lower thresholds) but makes reclaim depend only on free-memory scarcity —
// used_ratio and oom_score never enter the reclaim decision, since meek's
// whole point is to shed standby ahead of the budget regardless of how the
// process itself is using memory.
type meekPolicy struct{ basePolicy }

// NewMeekPolicy is the most conservative named policy: it sheds standby
// memory long before the budget is exhausted.
func NewMeekPolicy(src memprobe.Source, physicalBudget int64) Policy {
	return &meekPolicy{basePolicy{name: "meek", t: MeekThresholds, src: src, budget: physicalBudget}}
}

func (p *meekPolicy) PressureHigh(active, standby int64) bool {
	tripped := p.src.OOMScore() >= p.t.HighPressureOOM || p.usedRatio(active, standby) >= p.t.HighUsedRatio
	return tripped && p.scarceStrict()
}

func (p *meekPolicy) KillNow(active, standby int64) bool {
	tripped := p.src.OOMScore() >= p.t.KillOOM || p.usedRatio(active, standby) >= p.t.KillUsedRatio
	return tripped && p.scarceStrict()
}

func (p *meekPolicy) ReclaimGoal(active, standby int64) int64 {
	if standby <= 0 || !p.scarceStrict() {
		return 0
	}
	return standby
}

// nullPolicy never asks for reclamation and never kills; it is used to
// disable the budget controller entirely (e.g. under an external cgroup
// limiter that already enforces memory bounds).
type nullPolicy struct{}

func (nullPolicy) Name() string                             { return "null" }
func (nullPolicy) ReclaimGoal(active, standby int64) int64  { return 0 }
func (nullPolicy) PressureHigh(active, standby int64) bool  { return false }
func (nullPolicy) KillNow(active, standby int64) bool       { return false }
func (nullPolicy) Budget() int64                            { return math.MaxInt64 }

// NewNullPolicy returns the no-op policy.
func NewNullPolicy() Policy { return nullPolicy{} }

// NewPolicyByName resolves a policy by its config-file name
// ("performance"|"minimal"|"meek"|"null"), the vocabulary pkg/config's
// RuntimeConfig.Policy field uses.
func NewPolicyByName(name string, src memprobe.Source, physicalBudget int64) (Policy, error) {
	switch name {
	case "performance", "":
		return NewPerformancePolicy(src, physicalBudget), nil
	case "minimal":
		return NewMinimalPolicy(src, physicalBudget), nil
	case "meek":
		return NewMeekPolicy(src, physicalBudget), nil
	case "null":
		return NewNullPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown memory policy %q", name)
	}
}
