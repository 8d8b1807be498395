// Bench is a benchmarking tool for measuring route table build time, query
// throughput, and memory usage, and for checking the binary search against
// the linear reference scan.
//
// Usage:
//
//	go run ./cmd/bench -routes 1000000 -workers 8
//
// Flags:
//
//	-routes    Number of synthetic routes to generate (default: 1,000,000)
//	-queries   Number of query addresses (default: 10,000,000)
//	-workers   Number of parallel query workers (default: GOMAXPROCS)
//	-disjoint  Drop routes overlapping an earlier one (default: true)
//	-verify    Addresses checked against the linear scan and a bart
//	           routing table (default: 20,000)
//	-seed      Generator seed (default: 0x1234)
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gaissmai/bart"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/prefixtable"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// generateRoutes derives n routes from seed. Mask lengths fall in 8..32 and
// the host bits of each prefix are cleared. With disjoint set, routes that
// overlap an earlier one in address order are dropped, so the result never
// nests and the binary search must agree with the linear scan.
func generateRoutes(n int, seed uint32, disjoint bool) []prefixtable.Record {
	routes := make([]prefixtable.Record, 0, n)
	var buf [8]byte
	for i := range n {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		h := murmur3.Sum32WithSeed(buf[:], seed)
		maskLen := uint8(8 + murmur3.Sum32WithSeed(buf[:], ^seed)%25)
		prefix := h &^ (uint32(0xFFFFFFFF) >> maskLen)
		routes = append(routes, prefixtable.Record{Prefix: prefix, MaskLen: maskLen})
	}
	if !disjoint {
		return routes
	}

	slices.SortFunc(routes, func(a, b prefixtable.Record) int {
		if a.Prefix != b.Prefix {
			if a.Prefix < b.Prefix {
				return -1
			}
			return 1
		}
		return int(a.MaskLen) - int(b.MaskLen)
	})
	kept := routes[:0]
	var next uint64 // first address not covered by the kept routes
	for _, r := range routes {
		if uint64(r.Prefix) < next {
			continue
		}
		kept = append(kept, r)
		next = uint64(r.Prefix) + 1<<(32-r.MaskLen)
	}
	return kept
}

// queryAddr derives the i-th query address.
func queryAddr(i int, seed uint32) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i)^uint64(seed)<<32)
	return uint32(xxh3.Hash(buf[:]))
}

func toAddr(ip uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ip)
	return netip.AddrFrom4(b)
}

func writeRoutes(path string, routes []prefixtable.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, r := range routes {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func main() {
	routesFlag := flag.Int("routes", 1_000_000, "number of synthetic routes")
	queriesFlag := flag.Int("queries", 10_000_000, "number of query addresses")
	workersFlag := flag.Int("workers", runtime.GOMAXPROCS(0), "number of parallel query workers")
	disjointFlag := flag.Bool("disjoint", true, "drop routes overlapping an earlier one")
	verifyFlag := flag.Int("verify", 20_000, "addresses checked against the linear scan")
	seedFlag := flag.Uint("seed", 0x1234, "generator seed")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (build phase only)")
	flag.Parse()

	seed := uint32(*seedFlag)
	numQueries := *queriesFlag
	workers := max(*workersFlag, 1)

	fmt.Println("Generating routes...")
	genStart := time.Now()
	routes := generateRoutes(*routesFlag, seed, *disjointFlag)
	genDuration := time.Since(genStart)

	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	routesPath := filepath.Join(tmpDir, "rl.txt")
	tablePath := filepath.Join(tmpDir, "table.bin")

	if err := writeRoutes(routesPath, routes); err != nil {
		fmt.Printf("Failed to write routes: %v\n", err)
		return
	}

	runtime.GC()
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms heap sampling through runtime/metrics, which avoids the
	// stop-the-world pause of ReadMemStats.
	var peakAlloc atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
			}
		}
	}()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Building table...")
	buildStart := time.Now()
	builder, err := prefixtable.NewBuilder()
	if err != nil {
		fmt.Printf("NewBuilder failed: %v\n", err)
		return
	}
	if _, err := builder.ReadFile(context.Background(), routesPath); err != nil {
		fmt.Printf("ReadFile failed: %v\n", err)
		return
	}
	tbl, err := builder.Finish()
	if err == nil {
		err = tbl.WriteFile(tablePath)
	}
	buildDuration := time.Since(buildStart)

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Printf("could not create memory profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Printf("could not write memory profile: %v\n", err)
			}
			_ = f.Close()
		}
	}

	close(done)
	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := getMaxRSS() - baselineRSS

	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	builtDigest := tbl.Digest()
	_ = tbl.Close()

	openStart := time.Now()
	tbl, err = prefixtable.Open(tablePath)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer func() { _ = tbl.Close() }()
	openDuration := time.Since(openStart)
	stats := tbl.Stats()
	if stats.Digest != builtDigest {
		fmt.Printf("Digest mismatch: built %016x, opened %016x\n", builtDigest, stats.Digest)
		return
	}

	fmt.Println("Benchmarking queries...")
	var hits atomic.Int64
	queryStart := time.Now()
	g := new(errgroup.Group)
	per := (numQueries + workers - 1) / workers
	for w := range workers {
		lo, hi := w*per, min((w+1)*per, numQueries)
		g.Go(func() error {
			var n int64
			for i := lo; i < hi; i++ {
				if tbl.Contains(queryAddr(i, seed)) {
					n++
				}
			}
			hits.Add(n)
			return nil
		})
	}
	_ = g.Wait() // workers never fail
	queryDuration := time.Since(queryStart)
	avgLatency := float64(queryDuration.Nanoseconds()) * float64(workers) / float64(max(numQueries, 1))

	fmt.Println("Verifying against linear scan...")
	// Reference for the linear scan: a routing table answering true
	// containment, built from the records as read back from the file.
	ref := new(bart.Lite)
	for r := range tbl.All() {
		ref.Insert(r.NetipPrefix().Masked())
	}

	var misses atomic.Int64
	vg, ctx := errgroup.WithContext(context.Background())
	vper := (*verifyFlag + workers - 1) / workers
	for w := range workers {
		lo, hi := w*vper, min((w+1)*vper, *verifyFlag)
		vg.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%1024 == 0 && ctx.Err() != nil {
					return ctx.Err()
				}
				ip := queryAddr(i, seed)
				fast, slow := tbl.Contains(ip), tbl.ContainsLinear(ip)
				if want := ref.Contains(toAddr(ip)); slow != want {
					return fmt.Errorf("address %08x: linear scan %v, routing table %v", ip, slow, want)
				}
				if fast == slow {
					continue
				}
				if *disjointFlag || fast {
					return fmt.Errorf("address %08x: binary search %v, linear scan %v", ip, fast, slow)
				}
				// Nested routes can hide a covering prefix from the search.
				misses.Add(1)
			}
			return nil
		})
	}
	verifyErr := vg.Wait()

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════════╗\n")
	fmt.Printf("║ Metric              ║ Value              ║\n")
	fmt.Printf("╠═════════════════════╬════════════════════╣\n")
	fmt.Printf("║ Routes              ║ %10d         ║\n", stats.NumRecords)
	fmt.Printf("║ Distinct masks      ║ %10d         ║\n", stats.MaskLengths)
	fmt.Printf("║ Table size          ║ %8.1f MB        ║\n", float64(stats.TableSize)/1_000_000)
	fmt.Printf("║ Digest              ║ %016x   ║\n", stats.Digest)
	fmt.Printf("║ Generate time       ║ %6.2f sec         ║\n", genDuration.Seconds())
	fmt.Printf("║ Build time          ║ %6.2f sec         ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %6.2f M/sec       ║\n", float64(stats.NumRecords)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Open time           ║ %6.2f ms          ║\n", float64(openDuration.Microseconds())/1000)
	fmt.Printf("║ Query latency       ║ %6.1f ns          ║\n", avgLatency)
	fmt.Printf("║ Query throughput    ║ %6.2f M/sec       ║\n", float64(numQueries)/queryDuration.Seconds()/1_000_000)
	fmt.Printf("║ Hit rate            ║ %6.2f %%           ║\n", 100*float64(hits.Load())/float64(max(numQueries, 1)))
	fmt.Printf("║ Search misses       ║ %10d         ║\n", misses.Load())
	fmt.Printf("║ Peak heap memory    ║ %6.1f MB          ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %6.1f MB          ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════════╝\n")

	if verifyErr != nil {
		fmt.Printf("Verification failed: %v\n", verifyErr)
		os.Exit(1)
	}
}
