// Package meter tracks the compute budget of a single transaction.
package meter

import (
	"github.com/pkg/errors"
)

// ErrOutOfCompute is returned once a transaction exceeds its compute limit
var ErrOutOfCompute = errors.New("out of compute units")

// Meter counts compute units against a fixed limit. It is not safe for
// concurrent use; every transaction gets its own.
type Meter struct {
	limit uint64
	used  uint64
}

// New creates a meter with the given limit
func New(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Consume charges amount units. On exhaustion the meter is drained and
// ErrOutOfCompute is returned.
func (m *Meter) Consume(amount uint64) error {
	if amount == 0 {
		return nil
	}
	if m.Remaining() < amount {
		need := amount
		m.used = m.limit
		return errors.Wrapf(ErrOutOfCompute, "limit=%d, need=%d", m.limit, need)
	}
	m.used += amount
	return nil
}

// Used returns the units consumed so far
func (m *Meter) Used() uint64 {
	return m.used
}

// Remaining returns the units left
func (m *Meter) Remaining() uint64 {
	return m.limit - m.used
}

// Limit returns the budget the meter was created with
func (m *Meter) Limit() uint64 {
	return m.limit
}
