package mempool

import (
	"sync"
)

// Sized pools for []uint8 pixel planes and []uint64 integral-image rows to
// reduce allocations on preprocessing hot paths.

var (
	bytePools sync.Map // key: size class (int), value: *sync.Pool
	sumPools  sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple-of-1024 bucket to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// GetBytes retrieves a []uint8 buffer of at least n elements from the pool.
// The returned slice has length n but may have larger capacity. Contents are
// not zeroed. The caller must return it via PutBytes when done.
func GetBytes(n int) []uint8 {
	cls := sizeClass(n)
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		buf := make([]uint8, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]uint8)
	if !ok || cap(buf) < cls {
		buf = make([]uint8, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	return buf[:n]
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []uint8) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint8, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetSums retrieves a []uint64 buffer of at least n elements, zeroed.
// Integral-image accumulators rely on a clean initial state.
func GetSums(n int) []uint64 {
	cls := sizeClass(n)
	pAny, _ := sumPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		buf := make([]uint64, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]uint64)
	if !ok || cap(buf) < cls {
		buf = make([]uint64, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	for i := range buf[:n] {
		buf[i] = 0
	}
	return buf[:n]
}

// PutSums returns a buffer to the pool. It is safe to pass a nil slice.
func PutSums(buf []uint64) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := sumPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]uint64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
