package prefixtable

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tamirms/prefixtable/internal/bits"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG generator seeded from the test name, so every test
// draws its own reproducible stream.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// abbreviation
var mpa = netip.MustParseAddr

// mustIP parses a dotted quad into its uint32 form.
func mustIP(t testing.TB, s string) uint32 {
	t.Helper()
	v, err := ParseAddr(s)
	if err != nil {
		t.Fatalf("ParseAddr(%q): %v", s, err)
	}
	return v
}

// mustRecord parses a route line into a Record.
func mustRecord(t testing.TB, s string) Record {
	t.Helper()
	r, err := ParseRecord(s)
	if err != nil {
		t.Fatalf("ParseRecord(%q): %v", s, err)
	}
	return r
}

// buildTable builds a heap-backed table from route lines, failing on any reject.
func buildTable(t testing.TB, lines ...string) *Table {
	t.Helper()
	b, err := NewBuilder()
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range lines {
		if err := b.AddLine(line); err != nil {
			t.Fatalf("AddLine(%q): %v", line, err)
		}
	}
	tbl, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// buildRecords builds a table from records, in the order given.
func buildRecords(t testing.TB, records []Record, opts ...BuildOption) *Table {
	t.Helper()
	b, err := NewBuilder(opts...)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if err := b.AddRecord(r); err != nil {
			t.Fatalf("AddRecord(%v): %v", r, err)
		}
	}
	tbl, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// randomRecords returns n records with random prefixes and mask lengths.
// Host bits are left set, as in real route dumps.
func randomRecords(rng *rand.Rand, n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{Prefix: rng.Uint32(), MaskLen: uint8(rng.UintN(maxMaskLen + 1))}
	}
	return records
}

// disjointRecords returns up to n non-overlapping, host-bit-free records.
// On such tables the binary search is exact.
func disjointRecords(rng *rand.Rand, n int) []Record {
	records := make([]Record, 0, n)
	for len(records) < n {
		r := Record{MaskLen: uint8(8 + rng.UintN(25))}
		r.Prefix = rng.Uint32() & bits.Mask(r.MaskLen)

		overlaps := false
		for _, o := range records {
			m := min(r.MaskLen, o.MaskLen)
			if bits.SamePrefix(r.Prefix, o.Prefix, m) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			records = append(records, r)
		}
	}
	return records
}

// writeTable writes tbl to a fresh file under t.TempDir and returns its path.
func writeTable(t testing.TB, tbl *Table) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.bin")
	if err := tbl.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// recordsOf collects a table's records.
func recordsOf(tbl *Table) []Record {
	var out []Record
	for r := range tbl.All() {
		out = append(out, r)
	}
	return out
}

// routeText joins lines into a newline-terminated route dump.
func routeText(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
