package pool_test

import (
	"sync"
	"testing"

	"github.com/momentics/hioload-dcp/pool"
)

func TestBytePoolSize(t *testing.T) {
	bp := pool.NewBytePool(4096)
	buf := bp.GetBuffer()
	if len(buf) != 4096 {
		t.Fatalf("len = %d", len(buf))
	}
	bp.PutBuffer(buf[:10])
	again := bp.GetBuffer()
	if len(again) != 4096 {
		t.Fatalf("len after put = %d", len(again))
	}
}

func TestBytePoolRejectsForeignBuffers(t *testing.T) {
	bp := pool.NewBytePool(64)
	bp.PutBuffer(make([]byte, 8))
	for i := 0; i < 4; i++ {
		if got := len(bp.GetBuffer()); got != 64 {
			t.Fatalf("foreign buffer leaked out, len %d", got)
		}
	}
}

func TestBytePoolMinimumSize(t *testing.T) {
	if pool.NewBytePool(0).Size() != 1 {
		t.Fatal("size not clamped")
	}
}

func TestBytePoolConcurrent(t *testing.T) {
	bp := pool.NewBytePool(128)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(mark byte) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				buf := bp.GetBuffer()
				if len(buf) != 128 || cap(buf) != 128 {
					t.Errorf("buffer %d/%d", len(buf), cap(buf))
					return
				}
				buf[0] = mark
				bp.PutBuffer(buf)
			}
		}(byte(g))
	}
	wg.Wait()
}
