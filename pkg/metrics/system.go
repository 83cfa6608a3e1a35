package metrics

import (
	"context"
	"runtime"
	"time"
)

const nanosecondsPerMillisecond = 1e6

// CollectSystem samples runtime memory, goroutine and GC statistics.
func CollectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		RecordSystemGCPauseTime(float64(ms.PauseTotalNs) / float64(ms.NumGC) / nanosecondsPerMillisecond)
	}
}

// RunSystemCollector samples system metrics every interval until ctx is done.
// A non-positive interval falls back to the manager's refresh interval.
func RunSystemCollector(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = globalManager.RefreshInterval()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	CollectSystem()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			CollectSystem()
		}
	}
}
