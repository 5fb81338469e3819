package resolver

// liveness is the explicit generation token behind the mutual weak
// ownership between a coordinator and the objects it hands out. Both sides
// hold the same token; whichever is torn down first revokes it, and every
// cross-reference checks it before touching the other side.
type liveness struct {
	alive bool
}

func newLiveness() *liveness { return &liveness{alive: true} }

func (l *liveness) revoke() { l.alive = false }

func (l *liveness) ok() bool { return l != nil && l.alive }
