package event

import "sync"

// plateLocks serializes the mutating operations per license plate so two
// concurrent deliveries cannot both read the same last event and both be
// accepted as its successor. Entries are reference counted and removed
// when idle.
type plateLocks struct {
	mu    sync.Mutex
	inUse map[string]*plateLock
}

type plateLock struct {
	mu   sync.Mutex
	refs int
}

func newPlateLocks() *plateLocks {
	return &plateLocks{inUse: make(map[string]*plateLock)}
}

// acquire blocks until the plate's lock is held and returns the release func.
func (p *plateLocks) acquire(plate string) func() {
	p.mu.Lock()
	l, ok := p.inUse[plate]
	if !ok {
		l = &plateLock{}
		p.inUse[plate] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.inUse, plate)
		}
		p.mu.Unlock()
	}
}
