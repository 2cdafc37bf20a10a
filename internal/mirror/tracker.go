package mirror

import (
	"sync"
	"sync/atomic"
)

// Tracker records in-flight operations and the last failure of a
// controller. The zero value is ready to use.
type Tracker struct {
	inflight atomic.Int32

	mu  sync.RWMutex
	err error
}

// Begin marks an operation in flight; call the returned func when it ends.
func (t *Tracker) Begin() (done func()) {
	t.inflight.Add(1)
	var once sync.Once
	return func() { once.Do(func() { t.inflight.Add(-1) }) }
}

func (t *Tracker) Loading() bool {
	return t.inflight.Load() > 0
}

// Fail records err as the last failure and returns it.
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	return err
}

func (t *Tracker) LastError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

func (t *Tracker) ClearError() {
	t.mu.Lock()
	t.err = nil
	t.mu.Unlock()
}
