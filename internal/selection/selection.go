// Package selection tracks the active line of a map view.
package selection

import "cabview.railmap.org/internal/railway"

// State holds zero or one active line key. The zero value has no active line.
// State is not safe for concurrent use; the owning map session serializes access.
type State struct {
	key    railway.LineKey
	active bool
}

// Select makes key the active line. Selecting the active line again is a no-op.
func (s *State) Select(key railway.LineKey) {
	s.key = key
	s.active = true
}

// Clear deselects the active line.
func (s *State) Clear() {
	s.key = railway.LineKey{}
	s.active = false
}

// IsActive reports whether key is the active line.
func (s *State) IsActive(key railway.LineKey) bool {
	return s.active && s.key == key
}

// Key returns the selected key, whether or not it still resolves to a line.
func (s *State) Key() (railway.LineKey, bool) {
	return s.key, s.active
}

// LineLookup resolves a key against the currently loaded lines.
type LineLookup interface {
	Line(key railway.LineKey) (railway.Line, bool)
}

// Active returns the selected line if it is still present in lines.
// A key left dangling by a reload counts as no selection.
func (s *State) Active(lines LineLookup) (railway.Line, bool) {
	if !s.active || lines == nil {
		return railway.Line{}, false
	}
	return lines.Line(s.key)
}
