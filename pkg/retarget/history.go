package retarget

// DefaultHistorySize is the number of arm-length samples kept per arm.
const DefaultHistorySize = 10

// ArmHistory is a bounded FIFO of recent total arm lengths.
type ArmHistory struct {
	samples []float64
	next    int
	full    bool
}

// NewArmHistory creates a history holding up to size samples.
func NewArmHistory(size int) *ArmHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &ArmHistory{samples: make([]float64, size)}
}

// Push records a sample, evicting the oldest when full.
func (h *ArmHistory) Push(length float64) {
	h.samples[h.next] = length
	h.next = (h.next + 1) % len(h.samples)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns the number of samples held.
func (h *ArmHistory) Len() int {
	if h.full {
		return len(h.samples)
	}
	return h.next
}

// Max returns the longest sample held, or 0 when empty.
func (h *ArmHistory) Max() float64 {
	m := 0.0
	for i := 0; i < h.Len(); i++ {
		if h.samples[i] > m {
			m = h.samples[i]
		}
	}
	return m
}

// Reset forgets every sample.
func (h *ArmHistory) Reset() {
	h.next = 0
	h.full = false
}
