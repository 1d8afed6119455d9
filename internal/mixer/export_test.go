package mixer

// Pump exports pump for testing, so tests drive emission with a fake clock.
func (m *Mixer) Pump() { m.pump() }

// Buffered returns the number of buffered samples per source.
func (m *Mixer) Buffered() (system, mic int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.system.samples), len(m.mic.samples)
}
