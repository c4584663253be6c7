// Package memprobe collects the OS-level signals MemoryPolicy predicates
// consult: resident set size, machine-wide available memory, and (on Linux)
// an OOM score. It is the Go analog of katana's OSMemoryNotify — polling
// rather than netlink-driven, since Go programs do not get OOM pressure
// notifications for free.
package memprobe

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Source supplies the signals a MemoryPolicy needs on demand.
type Source interface {
	// RSSBytes returns this process's resident set size.
	RSSBytes() int64
	// AvailableBytes returns machine-wide available memory.
	AvailableBytes() int64
	// OOMScore returns the Linux oom_score for this process, or 0 on other
	// platforms.
	OOMScore() int64
}

// ProcessSource is the default Source, backed by gopsutil.
type ProcessSource struct {
	pid int32

	mu      sync.Mutex
	proc    *process.Process
}

// NewProcessSource creates a Source for the current process.
func NewProcessSource() *ProcessSource {
	return &ProcessSource{pid: int32(os.Getpid())}
}

func (s *ProcessSource) self() (*process.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != nil {
		return s.proc, nil
	}
	p, err := process.NewProcess(s.pid)
	if err != nil {
		return nil, err
	}
	s.proc = p
	return p, nil
}

// RSSBytes returns the process RSS, or 0 if it cannot be determined.
func (s *ProcessSource) RSSBytes() int64 {
	p, err := s.self()
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return int64(info.RSS)
}

// AvailableBytes returns machine-wide available memory, or 0 if it cannot be
// determined.
func (s *ProcessSource) AvailableBytes() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return int64(vm.Available)
}

// OOMScore reads /proc/<pid>/oom_score on Linux; returns 0 elsewhere or on
// any error, matching the spec's "0 on non-Linux" contract.
func (s *ProcessSource) OOMScore() int64 {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(int(s.pid)) + "/oom_score")
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// StaticSource is a fixed-value Source, used by tests to synthesize memory
// pressure scenarios (see spec.md S5).
type StaticSource struct {
	RSS       int64
	Available int64
	OOM       int64
}

func (s StaticSource) RSSBytes() int64       { return s.RSS }
func (s StaticSource) AvailableBytes() int64 { return s.Available }
func (s StaticSource) OOMScore() int64       { return s.OOM }

// Watch polls Source at interval and invokes callback with the latest
// snapshot until ctx is cancelled. It does not read PSI
// (/proc/pressure/memory); PSIAvailable only reports whether that file
// exists.
func Watch(ctx context.Context, src Source, interval time.Duration, callback func(rss, available, oom int64)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callback(src.RSSBytes(), src.AvailableBytes(), src.OOMScore())
		}
	}
}

// PSIAvailable reports whether /proc/pressure/memory exists on this host.
func PSIAvailable() bool {
	_, err := os.Stat("/proc/pressure/memory")
	return err == nil
}
