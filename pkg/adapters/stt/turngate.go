package stt

import "sync"

// TurnGate suppresses repeated finals for the same turn. One gate belongs to
// one provider connection.
//
// An id equal to the last admitted id is a duplicate. A greater id is a new
// turn. A smaller id means the provider restarted its counter; the final is
// admitted and the gate re-bases on it.
type TurnGate struct {
	mu   sync.Mutex
	last int64
	seen bool
}

// Verdict is the outcome of TurnGate.Admit.
type Verdict int

const (
	Admitted Verdict = iota
	Duplicate
	Reset
)

func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

func (g *TurnGate) Admit(turnID int64) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case !g.seen || turnID > g.last:
		g.seen = true
		g.last = turnID
		return Admitted
	case turnID == g.last:
		return Duplicate
	default:
		g.last = turnID
		return Reset
	}
}

// Fires reports whether a final with this verdict should reach generation.
func (v Verdict) Fires() bool { return v != Duplicate }
