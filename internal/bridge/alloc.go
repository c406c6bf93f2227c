package bridge

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/samcharles93/tokbridge/internal/logger"
)

// ErrOutOfMemory is returned by allocators that cannot satisfy a request.
var ErrOutOfMemory = errors.New("out of memory")

// Allocator owns result buffers. Alloc copies payload and appends a NUL
// byte; Free releases a pointer previously returned by Alloc on the same
// allocator. Freeing anything else is undefined.
type Allocator interface {
	Alloc(payload []byte) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

// HeapAllocator hands out Go-heap buffers to in-process Go callers. Buffers
// stay reachable until freed.
type HeapAllocator struct {
	mu   sync.Mutex
	live map[unsafe.Pointer][]byte
}

func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{live: make(map[unsafe.Pointer][]byte)}
}

func (h *HeapAllocator) Alloc(payload []byte) (unsafe.Pointer, error) {
	buf := make([]byte, len(payload)+1)
	copy(buf, payload)
	p := unsafe.Pointer(&buf[0])
	h.mu.Lock()
	h.live[p] = buf
	h.mu.Unlock()
	return p, nil
}

func (h *HeapAllocator) Free(p unsafe.Pointer) {
	h.mu.Lock()
	delete(h.live, p)
	h.mu.Unlock()
}

// TrackingAllocator wraps another allocator and refuses releases of
// pointers it does not consider live, reporting them instead.
type TrackingAllocator struct {
	inner Allocator
	log   logger.Logger
	// OnMisuse, when set, is called for every refused release.
	OnMisuse func(kind Misuse, p unsafe.Pointer)

	mu    sync.Mutex
	live  map[uintptr]struct{}
	freed map[uintptr]struct{}
}

func NewTrackingAllocator(inner Allocator, log logger.Logger) *TrackingAllocator {
	if log == nil {
		log = logger.Discard()
	}
	return &TrackingAllocator{
		inner: inner,
		log:   log,
		live:  make(map[uintptr]struct{}),
		freed: make(map[uintptr]struct{}),
	}
}

func (t *TrackingAllocator) Alloc(payload []byte) (unsafe.Pointer, error) {
	p, err := t.inner.Alloc(payload)
	if err != nil {
		return nil, err
	}
	addr := uintptr(p)
	t.mu.Lock()
	t.live[addr] = struct{}{}
	delete(t.freed, addr)
	t.mu.Unlock()
	return p, nil
}

func (t *TrackingAllocator) Free(p unsafe.Pointer) {
	addr := uintptr(p)
	t.mu.Lock()
	_, live := t.live[addr]
	_, freed := t.freed[addr]
	if live {
		delete(t.live, addr)
		t.freed[addr] = struct{}{}
	}
	t.mu.Unlock()

	if live {
		t.inner.Free(p)
		return
	}
	kind := MisuseForeignFree
	if freed {
		kind = MisuseDoubleFree
	}
	t.log.Error("refused buffer release", "misuse", kind.String(), "addr", addr)
	if t.OnMisuse != nil {
		t.OnMisuse(kind, p)
	}
}

// Live returns the number of buffers allocated and not yet released.
func (t *TrackingAllocator) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
