package scan

import (
	"errors"
	"time"
)

const DefaultCooldown = 2000 * time.Millisecond

var (
	ErrEmptyScan  = errors.New("scan carried no ticket id")
	ErrGateLocked = errors.New("gate is locked")
	ErrCooldown   = errors.New("same ticket scanned within cooldown")
)

// Gate decides whether a decoded scan starts a new badge request.
//
// Gate is not safe for concurrent use: the owner must serialize Admit,
// Release and Reset so that the lock check and the lock acquisition
// happen as one step.
type Gate struct {
	cooldown time.Duration

	locked bool
	lastID string
	lastAt time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Gate{cooldown: cooldown}
}

// Admit returns the ticket id carried by raw and locks the gate, or one of
// ErrEmptyScan, ErrGateLocked, ErrCooldown.
func (g *Gate) Admit(raw string, now time.Time) (string, error) {
	id := ExtractTicketID(raw)
	if id == "" {
		return "", ErrEmptyScan
	}

	// the lock wins over the cooldown
	if g.locked {
		return "", ErrGateLocked
	}

	if id == g.lastID && now.Sub(g.lastAt) < g.cooldown {
		return "", ErrCooldown
	}

	g.locked = true
	g.lastID = id
	g.lastAt = now

	return id, nil
}

// Release unlocks the gate. The last admitted id keeps its cooldown.
func (g *Gate) Release() {
	g.locked = false
}

// Reset unlocks the gate and forgets the last admitted id.
func (g *Gate) Reset() {
	g.locked = false
	g.lastID = ""
	g.lastAt = time.Time{}
}

func (g *Gate) Locked() bool {
	return g.locked
}

func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}
