package engine

// History is a fixed-capacity tick buffer indexed by the execution counter.
// Writing at an index does not advance anything; the caller owns the counter.
type History struct {
	samples []Sensor
}

// NewHistory allocates a buffer holding capacity samples
func NewHistory(capacity int) *History {
	return &History{samples: make([]Sensor, capacity)}
}

// Cap returns the number of samples the buffer can hold
func (h *History) Cap() int {
	if h == nil {
		return 0
	}
	return len(h.samples)
}

// Write stores a sample at index i. It returns false when i is outside the
// buffer or the buffer has been released.
func (h *History) Write(i int, s Sensor) bool {
	if h == nil || i < 0 || i >= len(h.samples) {
		return false
	}
	h.samples[i] = s
	return true
}

// Samples returns a copy of the first n samples
func (h *History) Samples(n int) []Sensor {
	if h == nil {
		return nil
	}
	if n > len(h.samples) {
		n = len(h.samples)
	}
	if n < 0 {
		n = 0
	}
	out := make([]Sensor, n)
	copy(out, h.samples[:n])
	return out
}

// MeanBattery averages the battery level over the first n samples
func (h *History) MeanBattery(n int) float64 {
	if h == nil || n <= 0 {
		return 0
	}
	if n > len(h.samples) {
		n = len(h.samples)
	}
	var sum float64
	for _, s := range h.samples[:n] {
		sum += s.Battery
	}
	return sum / float64(n)
}

// Release drops the buffer
func (h *History) Release() {
	if h != nil {
		h.samples = nil
	}
}
