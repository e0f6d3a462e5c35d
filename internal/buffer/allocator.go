package buffer

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// ErrOutOfMemory is returned by an Allocator when a request cannot be
// satisfied within its byte limit.
var ErrOutOfMemory = errors.New("out of memory")

// Stats is a snapshot of an allocator's usage counters.
type Stats struct {
	NumAllocs        int64
	NumFrees         int64
	BytesInUse       int64
	PeakBytesInUse   int64
	LargestAllocSize int64
	BytesLimit       int64
}

// Allocator is the memory capability the execution core consumes. Pool
// creation and peer-access configuration live behind it; the core only
// allocates, frees and reads usage statistics.
type Allocator interface {
	// Allocate returns a zeroed buffer of exactly size bytes, or
	// ErrOutOfMemory when the request cannot be satisfied.
	Allocate(size int64) ([]byte, error)
	// Free returns a buffer obtained from Allocate back to the allocator.
	Free(buf []byte) error
	// Stats returns a snapshot of the allocator's usage counters.
	Stats() Stats
}

// minBucket is the smallest pooled size class in bytes.
const minBucket = 64

// Pool is a size-bucketed pooling Allocator for host memory. Freed buffers
// are retained on per-class free lists and handed back to later requests of
// the same class, so steady-state execution does not go back to the Go heap.
type Pool struct {
	mu    sync.Mutex
	limit int64
	free  map[int64][][]byte
	inUse map[*byte][]byte
	stats Stats
}

// NewPool returns a pooling allocator with the given byte limit. A limit of
// zero means unlimited.
func NewPool(limit int64) *Pool {
	return &Pool{
		limit: limit,
		free:  make(map[int64][][]byte),
		inUse: make(map[*byte][]byte),
		stats: Stats{BytesLimit: limit},
	}
}

// bucketFor rounds a request up to its size class: the next power of two,
// with a floor of minBucket.
func bucketFor(size int64) int64 {
	if size <= minBucket {
		return minBucket
	}
	return int64(1) << bits.Len64(uint64(size-1))
}

// Allocate implements Allocator.
func (p *Pool) Allocate(size int64) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}
	if size == 0 {
		return []byte{}, nil
	}

	bucket := bucketFor(size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.stats.BytesInUse+bucket > p.limit {
		return nil, fmt.Errorf("allocating %d bytes (%d in use, limit %d): %w",
			size, p.stats.BytesInUse, p.limit, ErrOutOfMemory)
	}

	var backing []byte
	if list := p.free[bucket]; len(list) > 0 {
		backing = list[len(list)-1]
		p.free[bucket] = list[:len(list)-1]
		clear(backing)
	} else {
		backing = make([]byte, bucket)
	}

	p.inUse[&backing[0]] = backing
	p.stats.NumAllocs++
	p.stats.BytesInUse += bucket
	if p.stats.BytesInUse > p.stats.PeakBytesInUse {
		p.stats.PeakBytesInUse = p.stats.BytesInUse
	}
	if size > p.stats.LargestAllocSize {
		p.stats.LargestAllocSize = size
	}

	return backing[:size:size], nil
}

// Free implements Allocator.
func (p *Pool) Free(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := &buf[0]
	backing, ok := p.inUse[key]
	if !ok {
		return errors.New("free of a buffer not owned by this allocator")
	}
	delete(p.inUse, key)

	bucket := int64(len(backing))
	p.free[bucket] = append(p.free[bucket], backing)
	p.stats.NumFrees++
	p.stats.BytesInUse -= bucket
	return nil
}

// Stats implements Allocator.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
