package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"unsafe"

	"github.com/samcharles93/tokbridge/internal/bridge"
	"github.com/samcharles93/tokbridge/internal/cmem"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "libtokbridge")
	if err != nil {
		panic(err)
	}
	cfg := filepath.Join(dir, "config.yaml")
	body := "offline: true\ncache_dir: " + filepath.Join(dir, "hub") + "\ntrack_allocations: true\nlog_level: error\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		panic(err)
	}
	os.Setenv("TOKBRIDGE_CONFIG", cfg)
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func cstr(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

func TestCallDefaultModel(t *testing.T) {
	p, status := call(cstr("hello world"), cstr("default"), nil)
	if status != bridge.StatusOK || p == nil {
		t.Fatalf("call() = %v, %s", p, status)
	}
	if got, want := cmem.GoString(p), `{"tokens":["hello"," world"],"ids":[15339,1917]}`; got != want {
		t.Fatalf("buffer = %s, want %s", got, want)
	}
	release(p)
}

func TestCallNonexistentModel(t *testing.T) {
	p, status := call(cstr("hello world"), cstr("nonexistent-model"), cstr(""))
	if p != nil || status != bridge.StatusModelNotFound {
		t.Fatalf("call() = %v, %s", p, status)
	}
}

func TestCallNullArguments(t *testing.T) {
	for _, args := range [][2]unsafe.Pointer{{nil, cstr("default")}, {cstr("x"), nil}, {nil, nil}} {
		if p, status := call(args[0], args[1], nil); p != nil || status != bridge.StatusInvalidInput {
			t.Fatalf("call(%v) = %v, %s", args, p, status)
		}
	}
}

func TestReleaseSentinelAndDoubleFree(t *testing.T) {
	release(nil)

	p, status := call(cstr("hi"), cstr("default"), nil)
	if status != bridge.StatusOK {
		t.Fatalf("status = %s", status)
	}
	release(p)
	release(p)

	tracked, ok := instance().Allocator().(*bridge.TrackingAllocator)
	if !ok {
		t.Fatalf("allocator = %T, want tracking", instance().Allocator())
	}
	if tracked.Live() != 0 {
		t.Fatalf("live = %d", tracked.Live())
	}
}

func TestRepeatedCallsConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, status := call(cstr("hello world"), cstr("default"), nil)
			if status != bridge.StatusOK {
				t.Errorf("status = %s", status)
				return
			}
			release(p)
		}()
	}
	wg.Wait()
}

func TestStatusStrings(t *testing.T) {
	cases := map[int]string{
		0:  "ok",
		1:  "invalid input",
		2:  "model not found",
		3:  "engine failure",
		4:  "unknown status",
		-1: "unknown status",
	}
	for code, want := range cases {
		if got := cmem.GoString(unsafe.Pointer(statusString(code))); got != want {
			t.Fatalf("statusString(%d) = %q, want %q", code, got, want)
		}
	}
	if statusString(2) != statusString(2) {
		t.Fatalf("status strings must be stable")
	}
}
