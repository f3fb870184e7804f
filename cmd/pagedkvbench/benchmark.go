package main

import (
	"encoding/csv"
	"runtime"
	"strconv"
)

// BenchResult is one timed sample, in the shape of the teacher's own
// BenchResult: one row per operation, with a memory snapshot alongside
// the latency so GC pressure can be correlated with operation cost.
type BenchResult struct {
	Name      string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type memoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
}

func readMemStats() memoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memoryStats{AllocMB: m.Alloc / 1024 / 1024, HeapObjects: m.HeapObjects}
}

// record writes one BenchResult as a CSV row, mirroring the teacher's
// Record helper.
func record(w *csv.Writer, res BenchResult) {
	w.Write([]string{
		res.Name,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}
