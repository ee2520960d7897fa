package match

import "sync"

// Pool is the waiting pool of searchers.
//
// Candidates are collected FIFO within an affinity bucket, and a successful
// match removes the searcher and all candidates under one lock so no
// connection can be claimed by two concurrent matches.
type Pool struct {
	mu    sync.Mutex
	queue []*poolEntry
	byID  map[string]*poolEntry
}

type poolEntry struct {
	conn     *Connection
	affinity string
	removed  bool
}

func NewPool() *Pool {
	return &Pool{
		byID: make(map[string]*poolEntry),
	}
}

// Enqueue adds the connection to the waiting pool. Re-enqueueing an already
// waiting connection is a no-op.
func (p *Pool) Enqueue(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byID[conn.ID()]; ok {
		return
	}
	entry := &poolEntry{conn: conn, affinity: conn.Affinity()}
	p.queue = append(p.queue, entry)
	p.byID[conn.ID()] = entry
}

// TryMatch attempts to build a room for the given searcher.
//
// It collects up to maxRoomSize-1 other waiting connections with the same
// affinity, oldest first. On success all matched connections (searcher
// included) leave the pool atomically and are returned in FIFO order. It
// returns nil when the searcher is not waiting or no candidate is available.
func (p *Pool) TryMatch(connID string, maxRoomSize int) []*Connection {
	p.mu.Lock()
	defer p.mu.Unlock()

	self, ok := p.byID[connID]
	if !ok {
		return nil
	}

	// The searcher is always part of its own match, wherever it sits in the
	// queue; candidates are capped separately so a long run of compatible
	// entries ahead of it can never crowd it out.
	matched := make([]*poolEntry, 0, maxRoomSize)
	others := 0
	selfSeen := false
	for _, entry := range p.queue {
		if entry.removed {
			continue
		}
		if entry == self {
			matched = append(matched, entry)
			selfSeen = true
		} else if entry.affinity == self.affinity && others < maxRoomSize-1 {
			matched = append(matched, entry)
			others++
		}
		if selfSeen && others == maxRoomSize-1 {
			break
		}
	}

	// The searcher alone is not a match.
	if others == 0 {
		return nil
	}

	conns := make([]*Connection, 0, len(matched))
	for _, entry := range matched {
		entry.removed = true
		delete(p.byID, entry.conn.ID())
		conns = append(conns, entry.conn)
	}
	p.compactLocked()
	return conns
}

// Remove takes the connection out of the pool, reporting whether it was
// waiting.
func (p *Pool) Remove(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.byID[connID]
	if !ok {
		return false
	}
	entry.removed = true
	delete(p.byID, connID)
	p.compactLocked()
	return true
}

func (p *Pool) Contains(connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.byID[connID]
	return ok
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// compactLocked drops removed entries once they pile up, keeping Enqueue and
// TryMatch amortized cheap.
func (p *Pool) compactLocked() {
	if len(p.queue) < 32 || len(p.byID)*2 > len(p.queue) {
		return
	}
	live := p.queue[:0]
	for _, entry := range p.queue {
		if !entry.removed {
			live = append(live, entry)
		}
	}
	p.queue = live
}
