package memory

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"cybergrid/internal/domain"
	"cybergrid/internal/ports"
)

var ErrNotFound = ports.ErrNotFound

type slotKey struct {
	session string
	kind    domain.CheckKind
}

// Checks keeps at most one check request per session and kind. Submitted
// content lives only as long as the request does.
type Checks struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	byID  map[string]*domain.CheckRequest
	slots map[slotKey]string
	gone  map[string]chan struct{}
}

func NewChecks(clock clockwork.Clock) *Checks {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Checks{
		clock: clock,
		byID:  make(map[string]*domain.CheckRequest),
		slots: make(map[slotKey]string),
		gone:  make(map[string]chan struct{}),
	}
}

func (c *Checks) Replace(_ context.Context, sessionID string, req domain.CheckRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := slotKey{session: sessionID, kind: req.Kind}
	if prev, ok := c.slots[key]; ok {
		c.discardLocked(prev)
	}
	r := req
	c.byID[req.ID] = &r
	c.gone[req.ID] = make(chan struct{})
	c.slots[key] = req.ID
	return nil
}

func (c *Checks) Get(_ context.Context, checkID string) (domain.CheckRequest, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byID[checkID]
	if !ok {
		return domain.CheckRequest{}, ErrNotFound
	}
	return *r, nil
}

func (c *Checks) Current(_ context.Context, sessionID string, kind domain.CheckKind) (domain.CheckRequest, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.slots[slotKey{session: sessionID, kind: kind}]
	if !ok {
		return domain.CheckRequest{}, false, nil
	}
	return *c.byID[id], true, nil
}

func (c *Checks) Complete(_ context.Context, checkID string, verdict domain.Verdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.byID[checkID]
	if !ok {
		return ErrNotFound
	}
	return r.Complete(verdict, c.clock.Now())
}

func (c *Checks) DropSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range []domain.CheckKind{domain.KindURL, domain.KindEmail} {
		key := slotKey{session: sessionID, kind: kind}
		if id, ok := c.slots[key]; ok {
			c.discardLocked(id)
			delete(c.slots, key)
		}
	}
	return nil
}

func (c *Checks) Discarded(_ context.Context, checkID string) (<-chan struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.gone[checkID]
	if !ok {
		return nil, ErrNotFound
	}
	return ch, nil
}

func (c *Checks) discardLocked(id string) {
	delete(c.byID, id)
	if ch, ok := c.gone[id]; ok {
		close(ch)
		delete(c.gone, id)
	}
}

// Len reports how many requests are held.
func (c *Checks) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
