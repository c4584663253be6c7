package memsup

import (
	"sync"

	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

var (
	globalMu   sync.Mutex
	globalInst *Supervisor
)

// Init installs the process-wide Supervisor. Calling Init twice without an
// intervening Shutdown is a contract violation — the original restricts
// itself to one supervisor per process for the lifetime of that process.
func Init(s *Supervisor) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalInst != nil {
		return perrors.Wrap(perrors.CodeAlreadyExists, "memsup: supervisor already initialized", nil)
	}
	globalInst = s
	return nil
}

// Get returns the process-wide Supervisor installed by Init. Every internal
// consumer should prefer an explicitly injected *Supervisor over this
// accessor; Get exists for call sites with no natural injection point
// (e.g. a signal handler).
func Get() (*Supervisor, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalInst == nil {
		return nil, perrors.Wrap(perrors.CodeNotRegistered, "memsup: supervisor not initialized", nil)
	}
	return globalInst, nil
}

// Shutdown clears the process-wide Supervisor so a later Init can install a
// new one (mainly useful in tests that run multiple scenarios in one
// process).
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalInst = nil
}
