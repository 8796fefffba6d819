package column

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/glass/gpucore"
	"github.com/gogpu/glass/internal/software"
)

type pair struct{ a, b uint32 }

func (pair) Size() int { return 8 }

func (p pair) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], p.a)
	binary.LittleEndian.PutUint32(b[4:], p.b)
}

func TestColumn_InsertAssignsDenseIndices(t *testing.T) {
	var c Column[pair]
	for i := range 5 {
		if got := c.Insert(pair{a: uint32(i)}); got != uint32(i) {
			t.Fatalf("Insert() = %d, want %d", got, i)
		}
	}
	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
	if v, ok := c.Get(3); !ok || v.a != 3 {
		t.Errorf("Get(3) = %v, %v", v, ok)
	}
	if _, ok := c.Get(5); ok {
		t.Error("Get(5) should report false")
	}
	if c.Set(9, pair{}) {
		t.Error("Set(9) should report false")
	}
}

func TestColumn_InsertOverflowPanics(t *testing.T) {
	saved := maxLen
	maxLen = 2
	defer func() { maxLen = saved }()

	var c Column[pair]
	c.Insert(pair{})
	if c.Full() {
		t.Fatal("Full() = true with one free slot")
	}
	if got := c.Insert(pair{}); got != 1 {
		t.Fatalf("Insert() = %d, want 1", got)
	}
	if !c.Full() {
		t.Fatal("Full() = false at the limit")
	}
	defer func() {
		if c.Len() != 2 {
			t.Errorf("Len() after overflow = %d, want 2", c.Len())
		}
		if recover() == nil {
			t.Error("Insert past max index should panic")
		}
	}()
	c.Insert(pair{})
}

func TestColumn_Bytes(t *testing.T) {
	var c Column[pair]
	c.Insert(pair{1, 2})
	c.Insert(pair{3, 4})
	got := c.Bytes()
	want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	if string(got) != string(want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestGpuColumn_InitBuffer(t *testing.T) {
	a := software.New(software.WithWorkers(1))
	defer a.Destroy()

	c := NewGpuColumn[pair]("pairs")
	c.Insert(pair{7, 8})
	if c.HasBuffer() {
		t.Fatal("HasBuffer() before InitBuffer")
	}
	if err := c.UpdateBuffer(); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("UpdateBuffer() error = %v, want ErrNoBuffer", err)
	}
	if err := c.InitBuffer(a, gpucore.BufferUsageStorage); err != nil {
		t.Fatalf("InitBuffer: %v", err)
	}
	if err := c.InitBuffer(a, gpucore.BufferUsageStorage); !errors.Is(err, ErrHasBuffer) {
		t.Errorf("second InitBuffer() error = %v, want ErrHasBuffer", err)
	}

	got, err := a.ReadBuffer(c.Buffer(), 0, 8)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if binary.LittleEndian.Uint32(got) != 7 || binary.LittleEndian.Uint32(got[4:]) != 8 {
		t.Errorf("buffer = %v, want record {7 8}", got)
	}
	if e := c.BindGroupEntry(3); e.Binding != 3 || e.Buffer != c.Buffer() {
		t.Errorf("BindGroupEntry(3) = %+v", e)
	}
}

func TestGpuColumn_EmptyColumnGetsMinimumBuffer(t *testing.T) {
	a := software.New(software.WithWorkers(1))
	defer a.Destroy()

	c := NewGpuColumn[pair]("empty")
	if err := c.InitBuffer(a, gpucore.BufferUsageStorage); err != nil {
		t.Fatalf("InitBuffer: %v", err)
	}
	if _, err := a.ReadBuffer(c.Buffer(), 0, minBufferSize); err != nil {
		t.Errorf("ReadBuffer(min size): %v", err)
	}
}

func TestGpuColumn_UpdateRecordWritesOneRecord(t *testing.T) {
	a := software.New(software.WithWorkers(1))
	defer a.Destroy()

	c := NewGpuColumn[pair]("pairs")
	for i := range 4 {
		c.Insert(pair{uint32(i), 0})
	}
	if err := c.InitBuffer(a, gpucore.BufferUsageStorage); err != nil {
		t.Fatalf("InitBuffer: %v", err)
	}
	before := a.Stats()

	c.Set(2, pair{42, 43})
	if err := c.UpdateRecord(2); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	after := a.Stats()
	if n := after.BufferBytes - before.BufferBytes; n != 8 {
		t.Errorf("UpdateRecord wrote %d bytes, want 8", n)
	}

	got, _ := a.ReadBuffer(c.Buffer(), 16, 8)
	if binary.LittleEndian.Uint32(got) != 42 {
		t.Errorf("record 2 = %v, want a=42", got)
	}
	if err := c.UpdateRecord(4); err == nil {
		t.Error("UpdateRecord(4) should fail")
	}
}

func TestGpuColumn_Destroy(t *testing.T) {
	a := software.New(software.WithWorkers(1))
	defer a.Destroy()

	c := NewGpuColumn[pair]("pairs")
	c.Insert(pair{})
	if err := c.InitBuffer(a, gpucore.BufferUsageStorage); err != nil {
		t.Fatalf("InitBuffer: %v", err)
	}
	id := c.Buffer()
	c.Destroy()
	if c.HasBuffer() {
		t.Error("HasBuffer() after Destroy")
	}
	if _, err := a.ReadBuffer(id, 0, 8); !errors.Is(err, gpucore.ErrInvalidID) {
		t.Errorf("ReadBuffer(destroyed) error = %v, want ErrInvalidID", err)
	}
	c.Destroy()
}
