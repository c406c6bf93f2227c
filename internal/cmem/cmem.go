// Package cmem allocates result buffers on the C heap so that foreign callers
// hold plain malloc'd memory that the Go garbage collector never moves or
// reclaims. Buffers must come back through Free on the same allocator.
package cmem

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"sync/atomic"
	"unsafe"

	"github.com/samcharles93/tokbridge/internal/bridge"
)

// Allocator is a bridge.Allocator backed by malloc and free.
type Allocator struct {
	live atomic.Int64
}

var _ bridge.Allocator = (*Allocator)(nil)

func New() *Allocator { return &Allocator{} }

// Alloc copies payload into a fresh len(payload)+1 byte block and terminates
// it with NUL.
func (a *Allocator) Alloc(payload []byte) (unsafe.Pointer, error) {
	n := len(payload)
	p := C.malloc(C.size_t(n + 1))
	if p == nil {
		return nil, bridge.ErrOutOfMemory
	}
	dst := unsafe.Slice((*byte)(p), n+1)
	copy(dst, payload)
	dst[n] = 0
	a.live.Add(1)
	return p, nil
}

func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	C.free(p)
	a.live.Add(-1)
}

// Live reports buffers handed out and not yet freed.
func (a *Allocator) Live() int64 { return a.live.Load() }

// GoString copies the NUL-terminated string at p into Go memory.
func GoString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	return C.GoString((*C.char)(p))
}

// Len returns strlen of the buffer at p.
func Len(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	return int(C.strlen((*C.char)(p)))
}
