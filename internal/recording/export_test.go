package recording

// Export internals for testing.
// This file is only compiled during tests (suffix _test.go).

// WithFileSystem exports withFileSystem for testing.
var WithFileSystem = withFileSystem

// SessionStats is a test-visible alias of sessionStats.
type SessionStats = sessionStats

// Tick runs one status tick synchronously, as the ticker goroutine would.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickLocked()
}

// ActiveStats returns the write-path counters of the active session.
func (c *Controller) ActiveStats() SessionStats {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	if c.active == nil {
		return SessionStats{}
	}
	return c.active.stats
}
