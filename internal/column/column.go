// Package column implements struct-of-arrays storage with an optional GPU
// mirror per column.
package column

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/glass/gpucore"
)

// Errors returned by GPU-mirrored columns.
var (
	// ErrNoBuffer is returned when a mirror operation runs before InitBuffer.
	ErrNoBuffer = errors.New("column: gpu buffer not initialized")

	// ErrHasBuffer is returned by a second InitBuffer call.
	ErrHasBuffer = errors.New("column: gpu buffer already initialized")
)

// minBufferSize is the smallest buffer created for a column.
// Storage bindings cannot be zero-sized, so empty columns still get one.
const minBufferSize = 16

// MaxLen is the most records a column holds. Indices are u32 on the GPU
// and stay below MaxLen.
const MaxLen = math.MaxUint32

var maxLen uint64 = MaxLen

// Record is a fixed-size value with a std430 byte encoding.
type Record interface {
	// Size returns the encoded size in bytes. It must be the same for every
	// value of the type.
	Size() int

	// Put encodes the value into b, which has length Size().
	Put(b []byte)
}

// Column is a growable array of records.
type Column[T Record] struct {
	items []T
}

// Insert appends item and returns its index.
// It panics when the column already holds MaxLen records.
func (c *Column[T]) Insert(item T) uint32 {
	index := uint64(len(c.items))
	if index >= maxLen {
		panic(fmt.Sprintf("column: index %d overflows u32 index space", index))
	}
	c.items = append(c.items, item)
	return uint32(index)
}

// Len returns the number of records.
func (c *Column[T]) Len() int { return len(c.items) }

// Full reports whether Insert would panic.
func (c *Column[T]) Full() bool { return uint64(len(c.items)) >= maxLen }

// Get returns the record at index i.
func (c *Column[T]) Get(i uint32) (T, bool) {
	if uint64(i) >= uint64(len(c.items)) {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Set replaces the record at index i. It reports false if i is out of range.
func (c *Column[T]) Set(i uint32, item T) bool {
	if uint64(i) >= uint64(len(c.items)) {
		return false
	}
	c.items[i] = item
	return true
}

// All returns the records in index order. The slice must not be modified.
func (c *Column[T]) All() []T { return c.items }

// recordSize returns the encoded record size of T.
func (c *Column[T]) recordSize() int {
	var zero T
	return zero.Size()
}

// Bytes encodes every record, in index order.
func (c *Column[T]) Bytes() []byte {
	size := c.recordSize()
	buf := make([]byte, size*len(c.items))
	for i := range c.items {
		c.items[i].Put(buf[i*size : (i+1)*size])
	}
	return buf
}

// GpuColumn is a Column mirrored into a storage buffer.
//
// Inserts before InitBuffer only touch the CPU array. After InitBuffer every
// mutation must be followed by an explicit UpdateRecord or UpdateBuffer call.
type GpuColumn[T Record] struct {
	Column[T]

	label   string
	adapter gpucore.GPUAdapter
	buffer  gpucore.BufferID
}

// NewGpuColumn returns an empty column whose buffer will carry label.
func NewGpuColumn[T Record](label string) *GpuColumn[T] {
	return &GpuColumn[T]{label: label}
}

// Buffer returns the mirror buffer, or InvalidID before InitBuffer.
func (c *GpuColumn[T]) Buffer() gpucore.BufferID { return c.buffer }

// HasBuffer reports whether InitBuffer has completed.
func (c *GpuColumn[T]) HasBuffer() bool { return c.buffer != gpucore.InvalidID }

// InitBuffer creates the mirror buffer from the current contents.
func (c *GpuColumn[T]) InitBuffer(adapter gpucore.GPUAdapter, usage gpucore.BufferUsage) error {
	if c.HasBuffer() {
		return fmt.Errorf("%s: %w", c.label, ErrHasBuffer)
	}
	data := c.Bytes()
	size := uint64(len(data))
	if size < minBufferSize {
		size = minBufferSize
	}
	id, err := adapter.CreateBuffer(&gpucore.BufferDesc{
		Label: c.label,
		Size:  size,
		Usage: usage | gpucore.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("column: create %s buffer: %w", c.label, err)
	}
	if len(data) > 0 {
		if err := adapter.WriteBuffer(id, 0, data); err != nil {
			adapter.DestroyBuffer(id)
			return fmt.Errorf("column: upload %s: %w", c.label, err)
		}
	}
	c.adapter = adapter
	c.buffer = id
	return nil
}

// UpdateRecord writes the single record at index i to the mirror.
func (c *GpuColumn[T]) UpdateRecord(i uint32) error {
	if !c.HasBuffer() {
		return fmt.Errorf("%s: %w", c.label, ErrNoBuffer)
	}
	item, ok := c.Get(i)
	if !ok {
		return fmt.Errorf("column: %s: record %d out of range", c.label, i)
	}
	size := item.Size()
	b := make([]byte, size)
	item.Put(b)
	if err := c.adapter.WriteBuffer(c.buffer, uint64(i)*uint64(size), b); err != nil {
		return fmt.Errorf("column: write %s[%d]: %w", c.label, i, err)
	}
	return nil
}

// UpdateBuffer rewrites the whole column into the existing mirror buffer.
func (c *GpuColumn[T]) UpdateBuffer() error {
	if !c.HasBuffer() {
		return fmt.Errorf("%s: %w", c.label, ErrNoBuffer)
	}
	data := c.Bytes()
	if len(data) == 0 {
		return nil
	}
	if err := c.adapter.WriteBuffer(c.buffer, 0, data); err != nil {
		return fmt.Errorf("column: write %s: %w", c.label, err)
	}
	return nil
}

// BindGroupEntry returns an entry binding the whole mirror buffer.
func (c *GpuColumn[T]) BindGroupEntry(binding uint32) gpucore.BindGroupEntry {
	return gpucore.BindGroupEntry{Binding: binding, Buffer: c.buffer}
}

// Destroy releases the mirror buffer. The CPU array is kept.
func (c *GpuColumn[T]) Destroy() {
	if c.HasBuffer() {
		c.adapter.DestroyBuffer(c.buffer)
		c.buffer = gpucore.InvalidID
	}
}
