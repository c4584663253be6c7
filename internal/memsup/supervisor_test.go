package memsup

import (
	"testing"

	"github.com/KatanaGraph/katana-sub004/pkg/memprobe"
)

type fakeManager struct {
	name      string
	available int64
	freed     int64
}

func (m *fakeManager) Name() string { return m.name }
func (m *fakeManager) FreeStandby(goal int64) int64 {
	f := goal
	if f > m.available {
		f = m.available
	}
	m.available -= f
	m.freed += f
	return f
}

func TestSupervisor_RegisterUnregister(t *testing.T) {
	s := New(NewNullPolicy())
	m := &fakeManager{name: "property_cache"}
	if err := s.Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(m); err == nil {
		t.Error("expected error re-registering the same name")
	}
	if err := s.Unregister("property_cache"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := s.Unregister("property_cache"); err == nil {
		t.Error("expected error unregistering an unknown name")
	}
}

func TestSupervisor_ActiveStandbyAccounting(t *testing.T) {
	s := New(NewNullPolicy())
	m := &fakeManager{name: "property_cache"}
	if err := s.Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.BorrowActive("property_cache", 100); err != nil {
		t.Fatalf("BorrowActive: %v", err)
	}
	if _, err := s.BorrowStandby("property_cache", 50); err != nil {
		t.Fatalf("BorrowStandby: %v", err)
	}
	if s.ActiveBytes() != 100 || s.StandbyBytes() != 50 {
		t.Fatalf("got active=%d standby=%d", s.ActiveBytes(), s.StandbyBytes())
	}

	moved, err := s.ActiveToStandby("property_cache", 30)
	if err != nil {
		t.Fatalf("ActiveToStandby: %v", err)
	}
	if moved != 30 {
		t.Errorf("ActiveToStandby moved %d, want 30 (null policy never reports pressure, so the move is never refused)", moved)
	}
	if s.ActiveBytes() != 70 || s.StandbyBytes() != 80 {
		t.Fatalf("after move: active=%d standby=%d", s.ActiveBytes(), s.StandbyBytes())
	}

	moved, err = s.StandbyToActive("property_cache", 1000) // capped at what's available
	if err != nil {
		t.Fatalf("StandbyToActive: %v", err)
	}
	if moved != 80 {
		t.Errorf("StandbyToActive moved %d, want 80 (capped)", moved)
	}
	if s.StandbyBytes() != 0 || s.ActiveBytes() != 150 {
		t.Fatalf("after second move: active=%d standby=%d", s.ActiveBytes(), s.StandbyBytes())
	}
	if !s.Sanity() {
		t.Error("expected per-manager counters to stay consistent with totals")
	}
}

func TestSupervisor_BorrowActive_UnregisteredManagerFails(t *testing.T) {
	s := New(NewNullPolicy())
	if err := s.BorrowActive("nobody", 10); err == nil {
		t.Error("expected an error borrowing active bytes for an unregistered manager")
	}
}

func TestSupervisor_ReclaimForMemoryPressure(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1050} // >= 1000 so reclaim can fire; below the pressure/kill oom thresholds
	s := New(NewPerformancePolicy(src, budget))
	m := &fakeManager{name: "cache", available: 500}
	_ = s.Register(m)

	if err := s.BorrowActive("cache", 800); err != nil {
		t.Fatalf("BorrowActive: %v", err)
	}
	if _, err := s.BorrowStandby("cache", 200); err != nil { // used ratio 1.0, well over 0.85
		t.Fatalf("BorrowStandby: %v", err)
	}

	freed := s.ReclaimForMemoryPressure()
	if freed <= 0 {
		t.Fatal("expected nonzero reclamation under pressure")
	}
	if s.StandbyBytes() != 200-freed {
		t.Errorf("standby counter not updated: got %d want %d", s.StandbyBytes(), 200-freed)
	}
	if !s.Sanity() {
		t.Error("expected per-manager counters to stay consistent with totals after reclaim")
	}
}

func TestSupervisor_BorrowStandby_RefusedUnderPressure(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1300} // trips both pressure and kill
	s := New(NewPerformancePolicy(src, budget), WithTerminate(func(int) {}))
	m := &fakeManager{name: "cache"}
	_ = s.Register(m)

	got, err := s.BorrowStandby("cache", 100)
	if err != nil {
		t.Fatalf("BorrowStandby: %v", err)
	}
	if got != 0 {
		t.Errorf("BorrowStandby = %d, want 0 under high pressure", got)
	}
}

func TestSupervisor_Unregister_LeftoverCountersAreSubtracted(t *testing.T) {
	s := New(NewNullPolicy())
	m := &fakeManager{name: "leaky"}
	_ = s.Register(m)
	_ = s.BorrowActive("leaky", 40)
	if _, err := s.BorrowStandby("leaky", 10); err != nil {
		t.Fatalf("BorrowStandby: %v", err)
	}

	if err := s.Unregister("leaky"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if s.ActiveBytes() != 0 || s.StandbyBytes() != 0 {
		t.Errorf("expected totals to fall back to 0 after unregistering a manager with leftover counters, got active=%d standby=%d", s.ActiveBytes(), s.StandbyBytes())
	}
}

func TestSupervisor_KillSelfForLackOfMemory_InvokesHook(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{OOM: 1300} // above PerformanceThresholds.KillOOM
	var killed bool
	var exitCode int
	s := New(NewPerformancePolicy(src, budget), WithTerminate(func(code int) {
		killed = true
		exitCode = code
	}))

	if !s.KillSelfForLackOfMemory() {
		t.Fatal("expected KillSelfForLackOfMemory to trip on oom_score")
	}
	if !killed {
		t.Fatal("expected terminate hook to be invoked")
	}
	if exitCode != 137 {
		t.Errorf("exit code = %d, want 137", exitCode)
	}
}

func TestSupervisor_KillSelfForLackOfMemory_NoOpUnderBudget(t *testing.T) {
	budget := int64(1000)
	src := memprobe.StaticSource{}
	var killed bool
	s := New(NewPerformancePolicy(src, budget), WithTerminate(func(int) { killed = true }))
	m := &fakeManager{name: "cache"}
	_ = s.Register(m)
	if err := s.BorrowActive("cache", 100); err != nil {
		t.Fatalf("BorrowActive: %v", err)
	}

	if s.KillSelfForLackOfMemory() {
		t.Error("did not expect a kill decision well under budget")
	}
	if killed {
		t.Error("terminate hook must not fire when KillNow is false")
	}
}

func TestSupervisor_InitGetShutdown(t *testing.T) {
	Shutdown() // ensure a clean slate regardless of test order
	defer Shutdown()

	if _, err := Get(); err == nil {
		t.Fatal("expected error getting an uninitialized supervisor")
	}
	s := New(NewNullPolicy())
	if err := Init(s); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(New(NewNullPolicy())); err == nil {
		t.Error("expected error on double Init")
	}
	got, err := Get()
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v; want %v, nil", got, err, s)
	}
}
