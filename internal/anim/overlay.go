package anim

// OverlayKind identifies a transient element drawn over the track.
type OverlayKind int

const (
	OverlayProgress OverlayKind = iota
	OverlayCheckMark
)

// Overlay is a transient element created by a sequence and destroyed when
// the sequence no longer needs it.
type Overlay struct {
	Kind OverlayKind

	Text     string
	Progress float64 // fill fraction for progress overlays
	Color    string  // fill colour, hex
	Track    string  // unfilled colour, hex
	Alpha    float64
	Offset   int // column offset for the check mark

	// Tappable overlays route taps here instead of to the button.
	OnTap func()
}

// AddOverlay creates and registers an overlay.
func (s *Supervisor) AddOverlay(kind OverlayKind) *Overlay {
	o := &Overlay{Kind: kind, Alpha: 1}
	s.overlays = append(s.overlays, o)
	return o
}

// RemoveOverlay destroys a single overlay handle.
func (s *Supervisor) RemoveOverlay(o *Overlay) {
	for i, other := range s.overlays {
		if other == o {
			s.overlays = append(s.overlays[:i:i], s.overlays[i+1:]...)
			return
		}
	}
}

// DismissOverlays destroys every overlay of the given kinds.
func (s *Supervisor) DismissOverlays(kinds ...OverlayKind) {
	keep := s.overlays[:0:0]
	for _, o := range s.overlays {
		drop := false
		for _, k := range kinds {
			if o.Kind == k {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, o)
		}
	}
	s.overlays = keep
}

// Overlays returns the live overlays, oldest first.
func (s *Supervisor) Overlays() []*Overlay {
	return s.overlays
}

// TopOverlay returns the most recently created overlay of kind, or nil.
func (s *Supervisor) TopOverlay(kind OverlayKind) *Overlay {
	for i := len(s.overlays) - 1; i >= 0; i-- {
		if s.overlays[i].Kind == kind {
			return s.overlays[i]
		}
	}
	return nil
}
