// Package registry provides a static host-kernel registry implementing the
// kernel-lookup capability. In a full runtime the lookup is backed by a JIT
// compiling kernels on demand; the replay tool and tests use this registry
// with a handful of builtin kernels.
package registry

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/vk/runcore/internal/unit"
)

// Registry maps kernel names to host kernel implementations.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]unit.HostKernel
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{kernels: make(map[string]unit.HostKernel)}
}

// Register adds a kernel under the given name. Registering the same name
// twice is an error.
func (r *Registry) Register(name string, k unit.HostKernel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kernels[name]; exists {
		return fmt.Errorf("kernel '%s' already registered", name)
	}
	r.kernels[name] = k
	return nil
}

// Find implements unit.HostKernels.
func (r *Registry) Find(name string) (unit.HostKernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("kernel '%s' not registered", name)
	}
	return k, nil
}

// Builtin returns a registry pre-populated with the kernels the replay tool
// ships: zero, iota32 and add32. Views are little-endian int32 lanes.
func Builtin() *Registry {
	r := New()
	// Registration of builtins cannot collide on a fresh registry.
	_ = r.Register("zero", kernelZero)
	_ = r.Register("iota32", kernelIota32)
	_ = r.Register("add32", kernelAdd32)
	return r
}

// kernelZero zeroes every view.
func kernelZero(views [][]byte) error {
	for _, v := range views {
		clear(v)
	}
	return nil
}

// kernelIota32 fills every view with consecutive int32 values starting at 0.
func kernelIota32(views [][]byte) error {
	for _, v := range views {
		if len(v)%4 != 0 {
			return fmt.Errorf("iota32: view of %d bytes is not int32-aligned", len(v))
		}
		for i := 0; i < len(v)/4; i++ {
			binary.LittleEndian.PutUint32(v[i*4:], uint32(i))
		}
	}
	return nil
}

// kernelAdd32 computes views[2] = views[0] + views[1] lane-wise.
func kernelAdd32(views [][]byte) error {
	if len(views) != 3 {
		return fmt.Errorf("add32: want 3 views, got %d", len(views))
	}
	a, b, out := views[0], views[1], views[2]
	if len(a) != len(b) || len(a) != len(out) {
		return fmt.Errorf("add32: view sizes differ (%d, %d, %d)", len(a), len(b), len(out))
	}
	if len(a)%4 != 0 {
		return fmt.Errorf("add32: view of %d bytes is not int32-aligned", len(a))
	}
	for i := 0; i < len(a); i += 4 {
		sum := binary.LittleEndian.Uint32(a[i:]) + binary.LittleEndian.Uint32(b[i:])
		binary.LittleEndian.PutUint32(out[i:], sum)
	}
	return nil
}
