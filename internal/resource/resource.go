// Package resource models side effects that are not expressible as buffer
// slices: RNG state advancement, infeed/outfeed channel consumption, shared
// collective communicators. Resources participate in dependency construction
// exactly like buffers: same identity plus at least one write is a conflict.
package resource

import "fmt"

// Kind classifies a shared resource.
type Kind int

const (
	// Token is an opaque ordering token.
	Token Kind = iota
	// RngState is a replica's random number generator state.
	RngState
	// Channel is an infeed or outfeed channel.
	Channel
	// Communicator is a shared collective communicator.
	Communicator
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case Token:
		return "token"
	case RngState:
		return "rng-state"
	case Channel:
		return "channel"
	case Communicator:
		return "communicator"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Access is the declared access mode of a resource use.
type Access int

const (
	// Read declares shared, non-mutating use of the resource.
	Read Access = iota
	// Write declares exclusive, mutating use of the resource.
	Write
)

// String returns a human-readable access mode name.
func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("access(%d)", int(a))
	}
}

// Resource is a shared-resource identity. Identity is pointer identity:
// units touching the same *Resource value touch the same resource. Resources
// are shared between units via the pointer and never copied.
type Resource struct {
	kind Kind
	name string
}

// New returns a fresh resource identity of the given kind.
func New(kind Kind, name string) *Resource {
	return &Resource{kind: kind, name: name}
}

// Kind returns the resource's kind.
func (r *Resource) Kind() Kind {
	return r.kind
}

// Name returns the resource's diagnostic name.
func (r *Resource) Name() string {
	return r.name
}

// String renders the resource as "<kind> '<name>'".
func (r *Resource) String() string {
	return fmt.Sprintf("%s '%s'", r.kind, r.name)
}

// Use pairs a resource with its declared access mode.
type Use struct {
	Resource *Resource
	Access   Access
}

// ReadUse declares a read of the given resource.
func ReadUse(r *Resource) Use {
	return Use{Resource: r, Access: Read}
}

// WriteUse declares a write of the given resource.
func WriteUse(r *Resource) Use {
	return Use{Resource: r, Access: Write}
}

// String renders the use as "write channel 'infeed'".
func (u Use) String() string {
	return fmt.Sprintf("%s %s", u.Access, u.Resource)
}

// Conflicts reports whether two resource uses must be ordered relative to
// each other: same resource identity and at least one write. Symmetric.
func Conflicts(a, b Use) bool {
	if a.Resource != b.Resource {
		return false
	}
	return a.Access == Write || b.Access == Write
}
