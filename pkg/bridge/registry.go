package bridge

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pHequals7/humanlink/pkg/logger"
)

type pendingState int

const (
	stateWaiting pendingState = iota
	stateResolved
	stateCancelled
)

// pendingRequest is the in-memory record of one suspended Ask call. The
// state and response fields are written under the registry lock before done
// is closed and never after, so a waiter may read them without the lock
// once done fires.
type pendingRequest struct {
	id        string
	createdAt time.Time
	state     pendingState
	response  string
	done      chan struct{}
}

// correlationID derives the registry key from the Telegram message ID of
// the outbound question.
func correlationID(messageID int) string {
	return "response_" + strconv.Itoa(messageID)
}

// registry maps correlation IDs to pending requests. All mutations are
// serialized under one mutex, so a find-and-resolve is atomic with respect
// to concurrent inserts and removals.
type registry struct {
	mu      sync.Mutex
	entries map[string]*pendingRequest
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*pendingRequest)}
}

// insert registers a new waiting entry. A duplicate key means the channel
// reused a message ID within this process lifetime, which breaks the
// correlation invariant; it is reported as an error rather than silently
// replacing the suspended caller.
func (r *registry) insert(id string) (*pendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return nil, fmt.Errorf("pending request %q already registered", id)
	}

	p := &pendingRequest{
		id:        id,
		createdAt: time.Now(),
		state:     stateWaiting,
		done:      make(chan struct{}),
	}
	r.entries[id] = p
	return p, nil
}

// resolve transitions the entry with the given ID from Waiting to Resolved
// and wakes its waiter. A missing ID is a stale resolution (the reply
// arrived after timeout or shutdown already evicted the entry) and is a
// logged no-op.
func (r *registry) resolve(id, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[id]
	if !ok {
		logger.WarnCF("bridge", "Stale resolution for unknown pending request", map[string]interface{}{
			"id": id,
		})
		return false
	}
	if p.state != stateWaiting {
		return false
	}

	p.state = stateResolved
	p.response = text
	close(p.done)
	return true
}

// resolveLatest resolves the most recently created Waiting entry with the
// given text. Latest-pending-wins: when several questions are outstanding
// the newest one claims the reply.
func (r *registry) resolveLatest(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *pendingRequest
	for _, p := range r.entries {
		if p.state != stateWaiting {
			continue
		}
		if latest == nil || p.createdAt.After(latest.createdAt) {
			latest = p
		}
	}
	if latest == nil {
		return false
	}

	latest.state = stateResolved
	latest.response = text
	close(latest.done)
	return true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// cancelAll force-wakes every Waiting entry exactly once and returns how
// many were cancelled. Entries already resolved are left alone; their
// waiters are about to consume the resolution anyway.
func (r *registry) cancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := 0
	for _, p := range r.entries {
		if p.state != stateWaiting {
			continue
		}
		p.state = stateCancelled
		close(p.done)
		cancelled++
	}
	return cancelled
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
