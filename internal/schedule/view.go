package schedule

import (
	"sync/atomic"

	"github.com/cwarden/skuld/internal/calendar"
)

// Token identifies one range load. Later loads get larger tokens.
type Token uint64

// Tokens hands out load tokens; only the latest one is current.
type Tokens struct {
	n atomic.Uint64
}

// Begin starts a new load, making every earlier token stale.
func (t *Tokens) Begin() Token {
	return Token(t.n.Add(1))
}

// Current reports whether tok belongs to the latest load.
func (t *Tokens) Current(tok Token) bool {
	return uint64(tok) == t.n.Load()
}

// View holds what is on screen: the last snapshot that loaded
// successfully and the error of the latest failed load, if any.
type View struct {
	Tokens

	snap   Snapshot
	loaded bool
	err    error
}

// Apply records the result of the load started with tok. Results of
// stale loads are dropped and Apply returns false. A failed load keeps the
// previous instances on screen.
func (v *View) Apply(tok Token, snap Snapshot, err error) bool {
	if !v.Current(tok) {
		return false
	}
	if err != nil {
		v.err = err
		return true
	}
	v.snap, v.loaded, v.err = snap, true, nil
	return true
}

func (v *View) Snapshot() Snapshot { return v.snap }

func (v *View) Instances() []calendar.Instance { return v.snap.Instances }

// Loaded reports whether any load has succeeded.
func (v *View) Loaded() bool { return v.loaded }

func (v *View) Err() error { return v.err }
