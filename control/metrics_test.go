package control_test

import (
	"sync"
	"testing"

	"github.com/momentics/hioload-dcp/control"
)

func TestMetricsCounters(t *testing.T) {
	m := control.NewMetricsRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Add("reactor.events", 1)
			}
		}()
	}
	wg.Wait()
	if got := m.Counter("reactor.events"); got != 800 {
		t.Fatalf("expected 800, got %d", got)
	}
	m.Set("reactor.backend", "epoll")
	snap := m.GetSnapshot()
	if snap["reactor.backend"] != "epoll" || snap["reactor.events"] != int64(800) {
		t.Fatalf("snapshot %+v", snap)
	}
	if m.Updated().IsZero() {
		t.Fatal("update time not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("stream.count", func() any { return 3 })
	state := dp.DumpState()
	if state["stream.count"] != 3 || state["platform.cpus"] == nil {
		t.Fatalf("state %+v", state)
	}
	dp.UnregisterProbe("stream.count")
	if _, ok := dp.DumpState()["stream.count"]; ok {
		t.Fatal("probe not removed")
	}
}
