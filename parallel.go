package hdredit

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minRowsPerChunk keeps tiny images on a single goroutine.
const minRowsPerChunk = 16

// forEachRow splits [0, height) into contiguous row ranges and runs fn on them in parallel.
// Blocks until all ranges are done. Ranges never overlap, so fn may write rows it owns.
func forEachRow(height int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if limit := (height + minRowsPerChunk - 1) / minRowsPerChunk; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	chunk := (height + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for y0 := 0; y0 < height; y0 += chunk {
		y0, y1 := y0, min(y0+chunk, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}
