package enrich

import (
	"sync"
	"time"
)

type position struct {
	count     int
	firstSeen time.Time
}

// PositionTracker remembers which (wallet, mint) pairs have been seen and
// how many records touched each.
type PositionTracker struct {
	mu        sync.Mutex
	positions map[string]*position
}

// NewPositionTracker creates an empty tracker.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{positions: make(map[string]*position)}
}

func positionKey(wallet, mint string) string {
	return wallet + "-" + mint
}

// Touch records an occurrence of mint for wallet and returns how many
// occurrences were recorded before it. Zero means a new position.
func (p *PositionTracker) Touch(wallet, mint string, at time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := positionKey(wallet, mint)
	pos, ok := p.positions[key]
	if !ok {
		p.positions[key] = &position{count: 1, firstSeen: at}
		return 0
	}
	prior := pos.count
	pos.count++
	return prior
}

// FirstSeen returns when wallet first held mint.
func (p *PositionTracker) FirstSeen(wallet, mint string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[positionKey(wallet, mint)]
	if !ok {
		return time.Time{}, false
	}
	return pos.firstSeen, true
}

// Len returns the number of tracked positions.
func (p *PositionTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.positions)
}
