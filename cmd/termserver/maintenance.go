package main

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/gofhir/termserver/pkg/expcache"
	"github.com/gofhir/termserver/service"
)

// startMaintenance runs the cache upkeep loop: every interval it prunes
// resource-cache entries unused for longer than resourceMaxAge, and
// when heap usage crosses memThreshold it drops the oldest half of the
// expansion cache. Returns a stop function for shutdown.
func startMaintenance(interval time.Duration, memThreshold uint64, resourceMaxAge time.Duration,
	expCache *expcache.Cache, disp *service.Dispatcher, log zerolog.Logger) (stop func()) {

	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if resourceMaxAge > 0 {
					if n := disp.PruneResources(resourceMaxAge); n > 0 {
						log.Debug().Int("removed", n).Msg("pruned resource cache")
					}
				}
				if memThreshold > 0 {
					var ms runtime.MemStats
					runtime.ReadMemStats(&ms)
					if ms.HeapAlloc > memThreshold {
						n := expCache.PurgeOldestHalf()
						log.Info().
							Uint64("heapAlloc", ms.HeapAlloc).
							Int("dropped", n).
							Msg("memory pressure: dropped oldest expansion cache entries")
					}
				}
			}
		}
	}()
	return func() { close(done) }
}
