package manager

import (
	"testing"

	"github.com/KatanaGraph/katana-sub004/internal/memsup"
	"github.com/KatanaGraph/katana-sub004/pkg/memprobe"
)

func TestPropertyCache_InsertAndGet(t *testing.T) {
	c := NewPropertyCache(1000)
	key := CacheKey{Role: "reader", GraphIdentity: "g1", PropertyName: "weight"}
	if err := c.Insert(key, []float64{1, 2, 3}, 100); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok := c.GetAndEvict(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got := v.([]float64); len(got) != 3 {
		t.Errorf("got %v", got)
	}
	if c.UsedBytes() != 100 {
		t.Errorf("UsedBytes = %d, want 100", c.UsedBytes())
	}
}

func TestPropertyCache_EvictsLRUOnOverflow(t *testing.T) {
	c := NewPropertyCache(150)
	k1 := CacheKey{Role: "r", GraphIdentity: "g", PropertyName: "a"}
	k2 := CacheKey{Role: "r", GraphIdentity: "g", PropertyName: "b"}
	k3 := CacheKey{Role: "r", GraphIdentity: "g", PropertyName: "c"}

	_ = c.Insert(k1, "a", 100)
	_ = c.Insert(k2, "b", 100) // evicts k1 to make room

	if _, ok := c.GetAndEvict(k1); ok {
		t.Error("expected k1 to be evicted")
	}
	if _, ok := c.GetAndEvict(k2); !ok {
		t.Error("expected k2 to remain")
	}

	// touch k2 to make it MRU, then insert k3 which should evict... k2 is
	// MRU so nothing else remains to evict except k2 itself since capacity
	// only fits one 100-byte entry at a time.
	_ = c.Insert(k3, "c", 100)
	if _, ok := c.GetAndEvict(k2); ok {
		t.Error("expected k2 to be evicted to make room for k3")
	}
	if _, ok := c.GetAndEvict(k3); !ok {
		t.Error("expected k3 to remain")
	}
}

func TestPropertyCache_InsertTooLargeFails(t *testing.T) {
	c := NewPropertyCache(100)
	key := CacheKey{Role: "r", GraphIdentity: "g", PropertyName: "huge"}
	if err := c.Insert(key, nil, 200); err == nil {
		t.Error("expected error inserting an entry larger than capacity")
	}
}

func TestPropertyCache_Reclaim(t *testing.T) {
	c := NewPropertyCache(1000)
	_ = c.Insert(CacheKey{PropertyName: "a"}, "a", 100)
	_ = c.Insert(CacheKey{PropertyName: "b"}, "b", 100)
	_ = c.Insert(CacheKey{PropertyName: "c"}, "c", 100)

	freed := c.Reclaim(150)
	if freed < 150 {
		t.Errorf("Reclaim(150) freed %d, want >= 150", freed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1 after reclaiming 2 of 3 entries", c.Size())
	}
}

func newTestPropertyManager(t *testing.T, capacityBytes int64) (*PropertyManager, *memsup.Supervisor) {
	t.Helper()
	sup := memsup.New(memsup.NewNullPolicy())
	cache := NewPropertyCache(capacityBytes)
	pm := NewPropertyManager("property_cache", cache, sup)
	if err := sup.Register(pm); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return pm, sup
}

func TestPropertyManager_FreeStandbyDelegatesToCache(t *testing.T) {
	pm, _ := newTestPropertyManager(t, 1000)
	_ = pm.Cache().Insert(CacheKey{PropertyName: "a"}, "a", 500)

	if pm.Name() != "property_cache" {
		t.Errorf("Name() = %q", pm.Name())
	}
	freed := pm.FreeStandby(300)
	if freed != 500 {
		t.Errorf("FreeStandby(300) = %d, want 500 (only one entry, evicted whole)", freed)
	}
}

func TestPropertyManager_FreeStandbyClearsWholeCacheWhenGoalCoversIt(t *testing.T) {
	pm, _ := newTestPropertyManager(t, 1000)
	_ = pm.Cache().Insert(CacheKey{PropertyName: "a"}, "a", 100)
	_ = pm.Cache().Insert(CacheKey{PropertyName: "b"}, "b", 100)

	freed := pm.FreeStandby(200) // goal == total used bytes
	if freed != 200 {
		t.Errorf("FreeStandby(200) = %d, want 200", freed)
	}
	if pm.Cache().Size() != 0 {
		t.Errorf("Size() = %d, want 0 after a goal that covers the whole cache", pm.Cache().Size())
	}
}

func TestPropertyManager_OnPropertyLoaded_BorrowsActive(t *testing.T) {
	pm, sup := newTestPropertyManager(t, 1000)
	if err := pm.OnPropertyLoaded(250); err != nil {
		t.Fatalf("OnPropertyLoaded: %v", err)
	}
	if sup.ActiveBytes() != 250 {
		t.Errorf("ActiveBytes() = %d, want 250", sup.ActiveBytes())
	}
	if sup.StandbyBytes() != 0 {
		t.Errorf("StandbyBytes() = %d, want 0 (newly loaded columns are active, not standby)", sup.StandbyBytes())
	}
}

func TestPropertyManager_UnloadProperty_MovesActiveToStandbyAndCaches(t *testing.T) {
	pm, sup := newTestPropertyManager(t, 1000)
	key := CacheKey{PropertyName: "weight"}
	if err := pm.OnPropertyLoaded(200); err != nil {
		t.Fatalf("OnPropertyLoaded: %v", err)
	}

	if err := pm.UnloadProperty(key, "weight-column", 200); err != nil {
		t.Fatalf("UnloadProperty: %v", err)
	}
	if sup.ActiveBytes() != 0 {
		t.Errorf("ActiveBytes() = %d, want 0 after unload", sup.ActiveBytes())
	}
	if sup.StandbyBytes() != 200 {
		t.Errorf("StandbyBytes() = %d, want 200 after unload", sup.StandbyBytes())
	}
	if pm.Cache().UsedBytes() != 200 {
		t.Errorf("cache UsedBytes() = %d, want 200 (unloaded column inserted into the LRU)", pm.Cache().UsedBytes())
	}
}

func TestPropertyManager_AddProperty_MovesStandbyToActiveOnHit(t *testing.T) {
	pm, sup := newTestPropertyManager(t, 1000)
	key := CacheKey{PropertyName: "weight"}
	if err := pm.OnPropertyLoaded(150); err != nil {
		t.Fatalf("OnPropertyLoaded: %v", err)
	}
	if err := pm.UnloadProperty(key, "weight-column", 150); err != nil {
		t.Fatalf("UnloadProperty: %v", err)
	}

	value, ok := pm.AddProperty(key)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if value.(string) != "weight-column" {
		t.Errorf("AddProperty value = %v, want weight-column", value)
	}
	if sup.ActiveBytes() != 150 || sup.StandbyBytes() != 0 {
		t.Errorf("after AddProperty: active=%d standby=%d, want active=150 standby=0", sup.ActiveBytes(), sup.StandbyBytes())
	}
	if pm.Cache().Size() != 0 {
		t.Errorf("cache Size() = %d, want 0 (value taken out of the LRU on a hit)", pm.Cache().Size())
	}
}

func TestPropertyManager_AddProperty_MissReturnsFalse(t *testing.T) {
	pm, _ := newTestPropertyManager(t, 1000)
	if _, ok := pm.AddProperty(CacheKey{PropertyName: "nope"}); ok {
		t.Error("expected a cache miss for a key never loaded")
	}
}

// TestPropertyManager_UnloadProperty_RefusedUnderPressure matches the
// scenario where the supervisor's policy still reports high pressure after
// the active-to-standby reclassification: the column must not land in the
// cache, and its claim on memory is released outright.
func TestPropertyManager_UnloadProperty_RefusedUnderPressure(t *testing.T) {
	src := memprobe.StaticSource{OOM: 1300}
	sup := memsup.New(memsup.NewPerformancePolicy(src, 1000), memsup.WithTerminate(func(int) {}))
	cache := NewPropertyCache(1000)
	pm := NewPropertyManager("property_cache", cache, sup)
	if err := sup.Register(pm); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := pm.OnPropertyLoaded(100); err != nil {
		t.Fatalf("OnPropertyLoaded: %v", err)
	}
	key := CacheKey{PropertyName: "weight"}
	if err := pm.UnloadProperty(key, "weight-column", 100); err != nil {
		t.Fatalf("UnloadProperty: %v", err)
	}
	if pm.Cache().Size() != 0 {
		t.Error("expected the column to be dropped rather than cached under sustained pressure")
	}
	if sup.ActiveBytes() != 0 || sup.StandbyBytes() != 0 {
		t.Errorf("after refused unload: active=%d standby=%d, want both 0", sup.ActiveBytes(), sup.StandbyBytes())
	}
}
