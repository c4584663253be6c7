package memsup

import (
	"testing"

	"github.com/KatanaGraph/katana-sub004/pkg/memprobe"
)

func TestPerformancePolicy_DefaultsPreserved(t *testing.T) {
	if PerformanceThresholds.HighUsedRatio != 0.85 {
		t.Errorf("HighUsedRatio = %v, want 0.85", PerformanceThresholds.HighUsedRatio)
	}
	if PerformanceThresholds.KillUsedRatio != 0.95 {
		t.Errorf("KillUsedRatio = %v, want 0.95", PerformanceThresholds.KillUsedRatio)
	}
	if PerformanceThresholds.KillOOM != 1280 {
		t.Errorf("KillOOM = %v, want 1280", PerformanceThresholds.KillOOM)
	}
	if PerformanceThresholds.HighPressureOOM != 1100 {
		t.Errorf("HighPressureOOM = %v, want 1100", PerformanceThresholds.HighPressureOOM)
	}
}

func TestReclaimGoal_ZeroUnderOOMThreshold(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{} // oom_score 0, well under reclaimGoalMinOOMScore
	p := NewPerformancePolicy(src, budget)
	if got := p.ReclaimGoal(940, 50); got != 0 {
		t.Errorf("ReclaimGoal(940,50) = %d, want 0 (oom_score under 1000 gates reclaim off regardless of ratio)", got)
	}
}

func TestReclaimGoal_QuarterStandbyBelowOOMSplit(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1050} // >= 1000, < reclaimGoalOOMSplit (1200)
	p := NewPerformancePolicy(src, budget)
	// active+standby = 1140, over the 0.85 ratio; available_bytes is the
	// StaticSource zero value, which is scarce for any positive budget.
	got := p.ReclaimGoal(940, 200)
	if got != 50 {
		t.Errorf("ReclaimGoal(940,200) = %d, want 50 (standby/4 below the oom split)", got)
	}
}

// TestReclaimGoal_HalfStandbyAtOOMSplit matches spec scenario S5: an
// oom_score at or above reclaimGoalOOMSplit halves standby instead of
// quartering it.
func TestReclaimGoal_HalfStandbyAtOOMSplit(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1200}
	p := NewPerformancePolicy(src, budget)
	got := p.ReclaimGoal(940, 200)
	if got != 100 {
		t.Errorf("ReclaimGoal(940,200) = %d, want 100 (standby/2 at/above the oom split)", got)
	}
}

func TestReclaimGoal_ZeroWhenAvailableBytesNotScarce(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1200, Available: 500} // 50% free, not scarce
	p := NewPerformancePolicy(src, budget)
	if got := p.ReclaimGoal(940, 200); got != 0 {
		t.Errorf("ReclaimGoal(940,200) = %d, want 0 (available_bytes is not scarce)", got)
	}
}

func TestMinimalPolicy_ReclaimGoalTakesAllStandbyUnderPressure(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{Available: 1 << 30} // memory-rich host, no scarcity
	p := NewMinimalPolicy(src, budget)
	// 700/1000 = 0.7 trips minimal's 0.60 threshold with no available_bytes
	// gate at all.
	if got := p.ReclaimGoal(500, 200); got != 200 {
		t.Errorf("ReclaimGoal(500,200) = %d, want 200 (minimal reclaims all standby on pressure)", got)
	}
	if got := p.ReclaimGoal(100, 50); got != 0 {
		t.Errorf("ReclaimGoal(100,50) = %d, want 0 (150/1000 is under the 0.60 threshold)", got)
	}
}

func TestMeekPolicy_ReclaimGoalIgnoresUsedRatioAndOOMScore(t *testing.T) {
	budget := int64(1000)
	// used_ratio is 0 and oom_score is 0, but available_bytes is scarce:
	// meek must still reclaim, since its reclaim decision never looks at
	// used_ratio or oom_score.
	src := memprobe.StaticSource{Available: 50}
	p := NewMeekPolicy(src, budget)
	if got := p.ReclaimGoal(0, 300); got != 300 {
		t.Errorf("ReclaimGoal(0,300) = %d, want 300 (scarce available_bytes alone must trigger meek reclaim)", got)
	}

	rich := memprobe.StaticSource{Available: 900}
	p = NewMeekPolicy(rich, budget)
	if got := p.ReclaimGoal(0, 300); got != 0 {
		t.Errorf("ReclaimGoal(0,300) = %d, want 0 (available_bytes is not scarce)", got)
	}
}

func TestKillNow_TripsOnOOMScore(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1300}
	p := NewPerformancePolicy(src, budget)
	if !p.KillNow(0, 0) {
		t.Error("expected KillNow to trip on oom_score >= KillOOM even with empty counters")
	}
}

func TestPressureHigh_TripsOnRatio(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{}
	p := NewPerformancePolicy(src, budget)
	if p.PressureHigh(500, 300) {
		t.Error("800/1000 = 0.8 should be under the 0.85 performance threshold")
	}
	if !p.PressureHigh(600, 300) {
		t.Error("900/1000 = 0.9 should trip the 0.85 performance threshold")
	}
}

func TestNullPolicy_NeverActs(t *testing.T) {
	p := NewNullPolicy()
	if p.ReclaimGoal(1<<60, 1<<60) != 0 {
		t.Error("null policy must never request reclamation")
	}
	if p.PressureHigh(1<<60, 1<<60) {
		t.Error("null policy must never report pressure")
	}
	if p.KillNow(1<<60, 1<<60) {
		t.Error("null policy must never request a kill")
	}
}

func TestMinimalAndMeekPolicies_AreProgressivelyStricter(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{}
	perf := NewPerformancePolicy(src, budget)
	minimal := NewMinimalPolicy(src, budget)
	meek := NewMeekPolicy(src, budget)

	// At 500/1000 used, meek should already flag pressure while performance
	// should not.
	if perf.PressureHigh(500, 0) {
		t.Error("performance should not flag pressure at 0.5 ratio")
	}
	if !meek.PressureHigh(500, 0) {
		t.Error("meek should flag pressure at 0.5 ratio (threshold 0.40)")
	}
	if minimal.PressureHigh(500, 0) {
		t.Error("minimal should not flag pressure at 0.5 ratio (threshold 0.60)")
	}
}

func TestNewPolicyByName_ResolvesNamedPolicies(t *testing.T) {
	src := memprobe.StaticSource{}
	cases := map[string]string{
		"performance": "performance",
		"":            "performance",
		"minimal":     "minimal",
		"meek":        "meek",
		"null":        "null",
	}
	for name, wantName := range cases {
		p, err := NewPolicyByName(name, src, 1000)
		if err != nil {
			t.Fatalf("NewPolicyByName(%q): %v", name, err)
		}
		if p.Name() != wantName {
			t.Errorf("NewPolicyByName(%q).Name() = %q, want %q", name, p.Name(), wantName)
		}
	}
}

func TestNewPolicyByName_RejectsUnknownName(t *testing.T) {
	src := memprobe.StaticSource{}
	if _, err := NewPolicyByName("aggressive", src, 1000); err == nil {
		t.Error("expected an error for an unknown policy name")
	}
}
