package testutil

// CallbackRecorder captures completion callbacks for assertions.
//
// Tests hand Capture to Request.Start and later assert on Calls/LastErr.
// Single-goroutine use only, matching the coordinator's ownership rule.
type CallbackRecorder struct {
	Calls   int
	LastErr error
}

// Capture is the completion callback to register.
func (r *CallbackRecorder) Capture(err error) {
	r.Calls++
	r.LastErr = err
}
