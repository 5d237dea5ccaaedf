package reconcile

import "github.com/aristath/sentimentedge/internal/domain"

// DefaultBufferSize is the signal buffer capacity when none is configured
const DefaultBufferSize = 50

// SignalBuffer is a fixed-capacity newest-first list of signals.
// It is not safe for concurrent use; the Core guards it.
type SignalBuffer struct {
	capacity int
	items    []domain.Signal
}

// NewSignalBuffer creates a buffer; capacity <= 0 selects DefaultBufferSize
func NewSignalBuffer(capacity int) *SignalBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &SignalBuffer{
		capacity: capacity,
		items:    make([]domain.Signal, 0, capacity+1),
	}
}

// Push prepends s and evicts the oldest entry beyond capacity
func (b *SignalBuffer) Push(s domain.Signal) {
	b.items = append(b.items, domain.Signal{})
	copy(b.items[1:], b.items)
	b.items[0] = s
	if len(b.items) > b.capacity {
		b.items = b.items[:b.capacity]
	}
}

func (b *SignalBuffer) Len() int { return len(b.items) }

func (b *SignalBuffer) Cap() int { return b.capacity }

// Snapshot returns a copy, newest first
func (b *SignalBuffer) Snapshot() []domain.Signal {
	out := make([]domain.Signal, len(b.items))
	copy(out, b.items)
	return out
}
