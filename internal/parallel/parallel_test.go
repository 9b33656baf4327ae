package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForSequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var count int
	For(100, func(i int) { count++ }, cfg)

	if count != 100 {
		t.Errorf("count = %d, want 100", count)
	}
}

func TestForParallel(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	var count int64
	For(1000, func(i int) { atomic.AddInt64(&count, 1) }, cfg)

	if count != 1000 {
		t.Errorf("count = %d, want 1000", count)
	}
}

func TestForCoversAllIndices(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 2}

	seen := make([]int64, 97) // not divisible by workers or chunk size
	For(len(seen), func(i int) { atomic.AddInt64(&seen[i], 1) }, cfg)

	for i, v := range seen {
		if v != 1 {
			t.Errorf("index %d visited %d times, want 1", i, v)
		}
	}
}

func TestForZeroItems(t *testing.T) {
	For(0, func(i int) { t.Error("callback invoked for n=0") }, DefaultConfig())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if cfg.MinChunkSize < 1 {
		t.Errorf("MinChunkSize = %d, want >= 1", cfg.MinChunkSize)
	}
}
