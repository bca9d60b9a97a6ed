package perfmon

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// MemoryReader reports current memory use in bytes. A nil MemoryReader
// disables the high-memory check.
type MemoryReader interface {
	UsedBytes() (uint64, error)
}

// MemoryReaderFunc adapts a function to MemoryReader.
type MemoryReaderFunc func() (uint64, error)

// UsedBytes calls f.
func (f MemoryReaderFunc) UsedBytes() (uint64, error) { return f() }

// HeapReader reports the Go heap in use (HeapAlloc).
type HeapReader struct{}

// UsedBytes reads runtime memory statistics.
func (HeapReader) UsedBytes() (uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, nil
}

// ProcessReader reports the resident set size of this process via gopsutil.
type ProcessReader struct {
	once sync.Once
	proc *process.Process
	err  error
}

// UsedBytes returns the process RSS.
func (r *ProcessReader) UsedBytes() (uint64, error) {
	r.once.Do(func() {
		r.proc, r.err = process.NewProcess(int32(os.Getpid()))
	})
	if r.err != nil {
		return 0, fmt.Errorf("perfmon: open process: %w", r.err)
	}
	info, err := r.proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("perfmon: read rss: %w", err)
	}
	return info.RSS, nil
}

// NewMemoryReader returns the reader for a config source name: "heap",
// "rss" or "none".
func NewMemoryReader(source string) (MemoryReader, error) {
	switch source {
	case "", "heap":
		return HeapReader{}, nil
	case "rss":
		return &ProcessReader{}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("perfmon: unknown memory source %q", source)
	}
}
