package tracer

import (
	"os"
	"runtime"
)

// HostStats is the fixed metadata bundle attached to every emitted record,
// mirroring ProgressTracer's per-log host/process identification.
type HostStats struct {
	Hostname string `json:"hostname"`
	PID      int    `json:"pid"`
	NumCPU   int    `json:"num_cpu"`
}

func currentHostStats() HostStats {
	host, _ := os.Hostname()
	return HostStats{
		Hostname: host,
		PID:      os.Getpid(),
		NumCPU:   runtime.NumCPU(),
	}
}
