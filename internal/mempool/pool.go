// Package mempool recycles the large scratch slices used by preprocessing
// and detector postprocessing (normalized tensors, binary masks, contour
// label planes).
package mempool

import "sync"

const step = 1024

// sizeClass rounds n up to a multiple of 1024 so nearby sizes share a pool.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// Pool hands out zeroed slices of T bucketed by size class.
type Pool[T any] struct {
	classes sync.Map // int -> *sync.Pool
}

func (p *Pool[T]) class(cls int) *sync.Pool {
	if v, ok := p.classes.Load(cls); ok {
		return v.(*sync.Pool)
	}
	v, _ := p.classes.LoadOrStore(cls, &sync.Pool{New: func() any {
		s := make([]T, cls)
		return &s
	}})
	return v.(*sync.Pool)
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	sp := p.class(cls).Get().(*[]T)
	buf := *sp
	if cap(buf) < n {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns buf to its pool. Nil and foreign-sized slices are dropped.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) < step || cap(buf)%step != 0 {
		return
	}
	buf = buf[:cap(buf)]
	p.class(cap(buf)).Put(&buf)
}

var (
	float32s Pool[float32]
	bools    Pool[bool]
	int32s   Pool[int32]
)

// GetFloat32 returns a zeroed []float32 of length n.
func GetFloat32(n int) []float32 { return float32s.Get(n) }

// PutFloat32 recycles a slice obtained from GetFloat32.
func PutFloat32(buf []float32) { float32s.Put(buf) }

// GetBool returns a zeroed []bool of length n.
func GetBool(n int) []bool { return bools.Get(n) }

// PutBool recycles a slice obtained from GetBool.
func PutBool(buf []bool) { bools.Put(buf) }

// GetInt32 returns a zeroed []int32 of length n.
func GetInt32(n int) []int32 { return int32s.Get(n) }

// PutInt32 recycles a slice obtained from GetInt32.
func PutInt32(buf []int32) { int32s.Put(buf) }
