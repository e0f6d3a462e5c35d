// Package collective provides the in-process fallback implementation of the
// collective backend handle for single-participant runs. Real multi-device
// backends live outside the execution core and are injected through the
// execution parameters.
package collective

import (
	"context"
	"fmt"
)

// Loopback is the single-participant collective backend: every collective
// degenerates to a local copy.
type Loopback struct{}

// NewLoopback returns the single-participant backend.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// AllReduce implements unit.Collectives for a single participant: the
// reduction of one contribution is the contribution itself.
func (l *Loopback) AllReduce(_ context.Context, _ string, src, dst []byte) error {
	if len(src) != len(dst) {
		return fmt.Errorf("all-reduce: src %d bytes, dst %d bytes", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
