package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/btree-query-bench/pagedkv/cowbtree"
)

func main() {
	n := flag.Int("n", 10000, "number of keys to insert")
	dataDir := flag.String("data-dir", "bench-data", "directory for the on-disk files")
	withPebble := flag.Bool("with-pebble", true, "also run the Pebble comparison backend")
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0755); err != nil {
		log.Fatalf("mkdir %s: %v", *dataDir, err)
	}

	resultsFile, err := os.Create("results.csv")
	if err != nil {
		log.Fatalf("create results.csv: %v", err)
	}
	defer resultsFile.Close()
	w := csv.NewWriter(resultsFile)
	defer w.Flush()

	keys := shuffledKeys(*n)

	pagedkvLatencies := runPagedkv(*dataDir, keys, w)

	series := map[string][]int64{"pagedkv": pagedkvLatencies}

	if *withPebble {
		series["pebble"] = runPebble(*dataDir, keys, w)
	}

	if err := renderLatencyChart("latency.png", series); err != nil {
		log.Fatalf("render chart: %v", err)
	}

	fmt.Println("done: results.csv, latency.png")
}

func shuffledKeys(n int) [][]byte {
	idx := rand.Perm(n)
	keys := make([][]byte, n)
	for i, v := range idx {
		keys[i] = []byte(fmt.Sprintf("n%d", v*1000))
	}
	return keys
}

func runPagedkv(dataDir string, keys [][]byte, w *csv.Writer) []int64 {
	path := dataDir + "/bench.pagedkv"
	os.Remove(path)

	tree, err := cowbtree.Open(path)
	if err != nil {
		log.Fatalf("pagedkv: open: %v", err)
	}
	defer tree.Close()

	latencies := make([]int64, 0, len(keys))

	for i, key := range keys {
		start := time.Now()
		if err := tree.Insert(key, uint64(i)); err != nil {
			log.Fatalf("pagedkv: insert %s: %v", key, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		latencies = append(latencies, elapsed)

		mem := readMemStats()
		record(w, BenchResult{Name: "pagedkv", Operation: "insert", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	depth, err := tree.Depth()
	if err != nil {
		log.Fatalf("pagedkv: depth: %v", err)
	}
	count, err := tree.NodeCount()
	if err != nil {
		log.Fatalf("pagedkv: node count: %v", err)
	}
	size, err := tree.FileSize()
	if err != nil {
		log.Fatalf("pagedkv: file size: %v", err)
	}
	log.Printf("pagedkv: depth=%d nodes=%d file_size=%d", depth, count, size)

	for _, key := range keys {
		start := time.Now()
		if _, found, err := tree.Search(key); err != nil || !found {
			log.Fatalf("pagedkv: search %s: found=%v err=%v", key, found, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		mem := readMemStats()
		record(w, BenchResult{Name: "pagedkv", Operation: "search", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	for _, key := range keys {
		start := time.Now()
		if _, _, err := tree.Delete(key); err != nil {
			log.Fatalf("pagedkv: delete %s: %v", key, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		mem := readMemStats()
		record(w, BenchResult{Name: "pagedkv", Operation: "delete", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	return latencies
}

func runPebble(dataDir string, keys [][]byte, w *csv.Writer) []int64 {
	path := dataDir + "/bench.pebble"
	os.RemoveAll(path)

	pc, err := openPebbleCompare(path)
	if err != nil {
		log.Fatalf("pebble: open: %v", err)
	}
	defer pc.Close()

	latencies := make([]int64, 0, len(keys))

	for i, key := range keys {
		start := time.Now()
		if err := pc.Insert(key, uint64(i)); err != nil {
			log.Fatalf("pebble: insert %s: %v", key, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		latencies = append(latencies, elapsed)

		mem := readMemStats()
		record(w, BenchResult{Name: "pebble", Operation: "insert", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	for _, key := range keys {
		start := time.Now()
		if _, found, err := pc.Search(key); err != nil || !found {
			log.Fatalf("pebble: search %s: found=%v err=%v", key, found, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		mem := readMemStats()
		record(w, BenchResult{Name: "pebble", Operation: "search", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	for _, key := range keys {
		start := time.Now()
		if err := pc.Delete(key); err != nil {
			log.Fatalf("pebble: delete %s: %v", key, err)
		}
		elapsed := time.Since(start).Nanoseconds()
		mem := readMemStats()
		record(w, BenchResult{Name: "pebble", Operation: "delete", LatencyNs: elapsed, MemMB: mem.AllocMB, Objects: mem.HeapObjects})
	}

	return latencies
}
