package hub

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ReadMapped maps path read-only. If mmap is unavailable it falls back to
// reading the file. data is only valid until release is called.
func ReadMapped(path string) (data []byte, release func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return nil, nil, fmt.Errorf("%s: too large to map", path)
	}
	size := int(size64)
	if size == 0 {
		return []byte{}, noRelease, nil
	}

	data, err = unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return data, func() error { return unix.Munmap(data) }, nil
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, noRelease, nil
}

func noRelease() error { return nil }
