// Package arena provides the shared volume buffer used as rotation scratch
// space. A Buffer is allocated once per reconstruction and handed back and
// forth between one owner and a set of workers:
//
//	owner:   Load -> Share ----------------> Reclaim -> AddTo -> Load ...
//	workers:             Handle.Data (bands)
//
// Every transition is checked, so a worker can never observe a buffer the
// owner is still writing and the owner can never overwrite a generation the
// workers are still rotating.
package arena

import (
	"errors"
	"fmt"
	"sync"
)

// Real is the set of working precisions a buffer can hold.
type Real interface {
	~float32 | ~float64
}

var (
	// ErrAllocation is returned when the backing memory cannot be obtained.
	ErrAllocation = errors.New("arena: allocation failed")

	// ErrState is returned when a hand-off happens out of order.
	ErrState = errors.New("arena: invalid buffer state")

	// ErrClosed is returned when a released buffer is used.
	ErrClosed = errors.New("arena: buffer closed")
)

type state int

const (
	owned state = iota
	shared
	released
)

func (s state) String() string {
	switch s {
	case owned:
		return "owned"
	case shared:
		return "shared"
	default:
		return "released"
	}
}

// Buffer is a contiguous depth×height×width volume of T.
type Buffer[T Real] struct {
	data    []T
	release func() error
	mapped  bool

	depth, height, width int

	mu         sync.Mutex
	state      state
	generation uint64
}

// New allocates a zeroed buffer. Where the platform supports anonymous
// memory maps the buffer lives outside the Go heap and is returned to the
// system by Close; elsewhere it is an ordinary slice.
func New[T Real](depth, height, width int) (*Buffer[T], error) {
	if depth <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: invalid shape (%d,%d,%d)", ErrAllocation, depth, height, width)
	}

	n := depth * height * width
	data, release, mapped, err := allocate[T](n)
	if err != nil {
		return nil, fmt.Errorf("%w: %d voxels: %v", ErrAllocation, n, err)
	}

	return &Buffer[T]{
		data:    data,
		release: release,
		mapped:  mapped,
		depth:   depth,
		height:  height,
		width:   width,
	}, nil
}

// Shape returns the buffer dimensions (depth, height, width).
func (b *Buffer[T]) Shape() (depth, height, width int) {
	return b.depth, b.height, b.width
}

// Len returns the number of elements in the buffer.
func (b *Buffer[T]) Len() int {
	return b.depth * b.height * b.width
}

// Mapped reports whether the buffer is backed by a memory map.
func (b *Buffer[T]) Mapped() bool {
	return b.mapped
}

// Load overwrites the buffer with src. The owner must hold the buffer.
func (b *Buffer[T]) Load(src []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.expect(owned); err != nil {
		return err
	}
	if len(src) != len(b.data) {
		return fmt.Errorf("arena: load of %d values into buffer of %d", len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

// Share hands the buffer to the workers and opens a new generation. The
// returned handle is the only way workers may reach the data.
func (b *Buffer[T]) Share() (Handle[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.expect(owned); err != nil {
		return Handle[T]{}, err
	}
	b.state = shared
	b.generation++
	return Handle[T]{buf: b, generation: b.generation}, nil
}

// Reclaim returns the buffer to the owner once every worker holding h has
// finished.
func (b *Buffer[T]) Reclaim(h Handle[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.expect(shared); err != nil {
		return err
	}
	if h.buf != b || h.generation != b.generation {
		return fmt.Errorf("%w: reclaim with stale handle (generation %d, current %d)",
			ErrState, h.generation, b.generation)
	}
	b.state = owned
	return nil
}

// AddTo accumulates the buffer contents into dst.
func (b *Buffer[T]) AddTo(dst []T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.expect(owned); err != nil {
		return err
	}
	if len(dst) != len(b.data) {
		return fmt.Errorf("arena: accumulate %d values into %d", len(b.data), len(dst))
	}
	for i, v := range b.data {
		dst[i] += v
	}
	return nil
}

// Close releases the memory. It is safe to call more than once.
func (b *Buffer[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == released {
		return nil
	}
	b.state = released
	b.data = nil
	if b.release != nil {
		return b.release()
	}
	return nil
}

func (b *Buffer[T]) expect(want state) error {
	if b.state == released {
		return ErrClosed
	}
	if b.state != want {
		return fmt.Errorf("%w: buffer is %s, want %s", ErrState, b.state, want)
	}
	return nil
}

// Handle grants workers access to one shared generation of a buffer.
type Handle[T Real] struct {
	buf        *Buffer[T]
	generation uint64
}

// Data returns the whole volume. Workers only touch the band they were
// given. It panics when the handle's generation is no longer shared.
func (h Handle[T]) Data() []T {
	b := h.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != shared || b.generation != h.generation {
		panic(fmt.Sprintf("arena: stale handle for generation %d (buffer %s, generation %d)",
			h.generation, b.state, b.generation))
	}
	return b.data
}

// Shape returns the dimensions of the shared volume.
func (h Handle[T]) Shape() (depth, height, width int) {
	return h.buf.Shape()
}
