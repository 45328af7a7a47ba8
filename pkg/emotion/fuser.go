package emotion

import "sync"

// Snapshot is the latest known estimate per modality.
type Snapshot struct {
	Face  *Estimate
	Vocal *Estimate
}

// FuseSnapshot fuses the latest estimates, substituting Neutral for a missing
// side. When only one side has ever reported, that side is returned unchanged.
func FuseSnapshot(s Snapshot) Estimate {
	switch {
	case s.Face == nil && s.Vocal == nil:
		return Neutral
	case s.Face == nil:
		return roundAll(*s.Vocal)
	case s.Vocal == nil:
		return roundAll(*s.Face)
	default:
		return Fuse(*s.Face, *s.Vocal)
	}
}

func roundAll(e Estimate) Estimate {
	return Estimate{Anxiety: Round3(e.Anxiety), Confidence: Round3(e.Confidence), Engagement: Round3(e.Engagement)}
}

// Fuser remembers the most recent estimate of each modality for one session.
// Face and vocal updates arrive from different goroutines.
type Fuser struct {
	mu    sync.Mutex
	face  *Estimate
	vocal *Estimate
}

func NewFuser() *Fuser {
	return &Fuser{}
}

// UpdateFace records a face estimate and returns the new fused value.
func (f *Fuser) UpdateFace(e Estimate) Estimate {
	e = e.Clamp()
	f.mu.Lock()
	f.face = &e
	snap := f.snapshotLocked()
	f.mu.Unlock()
	return FuseSnapshot(snap)
}

// UpdateVocal records a vocal estimate and returns the new fused value.
func (f *Fuser) UpdateVocal(e Estimate) Estimate {
	e = e.Clamp()
	f.mu.Lock()
	f.vocal = &e
	snap := f.snapshotLocked()
	f.mu.Unlock()
	return FuseSnapshot(snap)
}

// Snapshot returns a copy of the latest estimates.
func (f *Fuser) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Fuser) snapshotLocked() Snapshot {
	var s Snapshot
	if f.face != nil {
		face := *f.face
		s.Face = &face
	}
	if f.vocal != nil {
		vocal := *f.vocal
		s.Vocal = &vocal
	}
	return s
}
