package prefixtable

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/gaissmai/bart"
	tableerrors "github.com/tamirms/prefixtable/errors"
)

func TestContainsMask32(t *testing.T) {
	tbl := buildTable(t, "192.0.2.7/32")
	if !tbl.Contains(mustIP(t, "192.0.2.7")) {
		t.Error("exact address not matched")
	}
	for _, s := range []string{"192.0.2.6", "192.0.2.8", "192.0.3.7", "255.255.255.255", "0.0.0.0"} {
		if tbl.Contains(mustIP(t, s)) {
			t.Errorf("%s matched a /32 for 192.0.2.7", s)
		}
	}
}

func TestContainsMask0(t *testing.T) {
	rng := newTestRNG(t)
	tbl := buildRecords(t, []Record{{Prefix: rng.Uint32(), MaskLen: 0}})
	for i := 0; i < 1000; i++ {
		if v := rng.Uint32(); !tbl.Contains(v) {
			t.Fatalf("/0 table did not match 0x%08X", v)
		}
	}
}

// TestContainsFullWordShift exercises the 32-bit shift edge: a lone default
// route must match the all-ones address.
func TestContainsFullWordShift(t *testing.T) {
	tbl := buildTable(t, "0.0.0.0/0")
	if !tbl.Contains(mustIP(t, "255.255.255.255")) {
		t.Fatal("0.0.0.0/0 did not match 255.255.255.255")
	}
}

func TestContainsEmptyTable(t *testing.T) {
	tbl := buildTable(t)
	if tbl.Contains(mustIP(t, "10.0.0.1")) {
		t.Error("empty table matched")
	}
	if tbl.ContainsLinear(mustIP(t, "10.0.0.1")) {
		t.Error("empty table matched in linear scan")
	}
}

func TestContainsScenario(t *testing.T) {
	tbl := buildTable(t,
		"10.0.0.0/8",
		"128.8.0.0/16",
		"192.168.1.0/24",
		"203.0.113.9/32",
	)
	tests := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"11.0.0.0", false},
		{"9.255.255.255", false},
		{"128.8.5.2", true},
		{"128.9.0.0", false},
		{"192.168.1.255", true},
		{"192.168.2.0", false},
		{"203.0.113.9", true},
		{"203.0.113.10", false},
		{"127.0.0.1", false},
	}
	for _, tt := range tests {
		if got := tbl.Contains(mustIP(t, tt.addr)); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

// TestContainsMatchesLinearOnDisjointTables checks the binary search against
// the exhaustive scan where it is exact: non-overlapping, masked prefixes.
func TestContainsMatchesLinearOnDisjointTables(t *testing.T) {
	rng := newTestRNG(t)
	for _, n := range []int{1, 2, 3, 7, 64, 500} {
		tbl := buildRecords(t, disjointRecords(rng, n))

		// Probe every record's own boundaries plus random addresses.
		var probes []uint32
		for r := range tbl.All() {
			lo := r.Prefix
			hi := lo | ^uint32(0)>>r.MaskLen
			probes = append(probes, lo, hi, lo-1, hi+1)
		}
		for i := 0; i < 2000; i++ {
			probes = append(probes, rng.Uint32())
		}

		for _, p := range probes {
			if got, want := tbl.Contains(p), tbl.ContainsLinear(p); got != want {
				t.Fatalf("n=%d: Contains(0x%08X) = %v, linear scan = %v", n, p, got, want)
			}
		}
	}
}

// TestContainsNeverFalsePositive holds for any table: a reported match is
// always a real one.
func TestContainsNeverFalsePositive(t *testing.T) {
	rng := newTestRNG(t)
	tbl := buildRecords(t, randomRecords(rng, 300))
	for i := 0; i < 20000; i++ {
		v := rng.Uint32()
		if tbl.Contains(v) && !tbl.ContainsLinear(v) {
			t.Fatalf("Contains(0x%08X) matched but no record contains it", v)
		}
	}
}

// TestContainsLinearMatchesRoutingTable checks the reference scan against an
// independent routing table over random, overlapping records.
func TestContainsLinearMatchesRoutingTable(t *testing.T) {
	rng := newTestRNG(t)
	tbl := buildRecords(t, randomRecords(rng, 200))

	ref := new(bart.Lite)
	for r := range tbl.All() {
		ref.Insert(r.NetipPrefix().Masked())
	}
	for i := 0; i < 20000; i++ {
		v := rng.Uint32()
		if got, want := tbl.ContainsLinear(v), ref.Contains(uint32ToAddr(v)); got != want {
			t.Fatalf("ContainsLinear(0x%08X) = %v, routing table = %v", v, got, want)
		}
	}
}

// TestContainsNestedPrefixLimitation pins the documented search order: with
// nested prefixes the narrowing can step past the covering record.
func TestContainsNestedPrefixLimitation(t *testing.T) {
	tbl := buildTable(t, "10.0.0.0/8", "10.1.0.0/16", "10.2.0.0/16")
	probe := mustIP(t, "10.3.0.0")

	if !tbl.ContainsLinear(probe) {
		t.Fatal("linear scan missed 10.0.0.0/8")
	}
	if tbl.Contains(probe) {
		t.Fatal("binary search found 10.3.0.0; the probe order has changed")
	}
	// Addresses at or below the probed records are still found.
	if !tbl.Contains(mustIP(t, "10.0.0.5")) || !tbl.Contains(mustIP(t, "10.2.3.4")) {
		t.Error("nested table lost a reachable match")
	}
}

func TestContainsAddr(t *testing.T) {
	tbl := buildTable(t, "10.0.0.0/8")

	ok, err := tbl.ContainsAddr(mpa("10.9.9.9"))
	if err != nil || !ok {
		t.Errorf("ContainsAddr(10.9.9.9) = %v, %v", ok, err)
	}
	ok, err = tbl.ContainsAddr(mpa("::ffff:10.9.9.9"))
	if err != nil || !ok {
		t.Errorf("ContainsAddr(4in6) = %v, %v", ok, err)
	}
	if _, err := tbl.ContainsAddr(mpa("2001:db8::1")); !errors.Is(err, tableerrors.ErrNotIPv4) {
		t.Errorf("ContainsAddr(IPv6) error = %v, want ErrNotIPv4", err)
	}
	if _, err := tbl.ContainsAddr(netip.Addr{}); !errors.Is(err, tableerrors.ErrNotIPv4) {
		t.Errorf("ContainsAddr(zero) error = %v, want ErrNotIPv4", err)
	}
}

func TestClosedTable(t *testing.T) {
	tbl := buildTable(t, "0.0.0.0/0")
	if err := tbl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if tbl.Contains(1) || tbl.ContainsLinear(1) {
		t.Error("closed table reported a match")
	}
	if _, err := tbl.ContainsAddr(mpa("10.0.0.1")); !errors.Is(err, tableerrors.ErrTableClosed) {
		t.Errorf("ContainsAddr on closed table: %v", err)
	}
	if _, err := tbl.WriteTo(&discard{}); !errors.Is(err, tableerrors.ErrTableClosed) {
		t.Errorf("WriteTo on closed table: %v", err)
	}
	if err := tbl.WriteFile(t.TempDir() + "/t.bin"); !errors.Is(err, tableerrors.ErrTableClosed) {
		t.Errorf("WriteFile on closed table: %v", err)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestRecordIndexPanics(t *testing.T) {
	tbl := buildTable(t, "10.0.0.0/8")
	defer func() {
		if recover() == nil {
			t.Error("Record(1) on a one-record table did not panic")
		}
	}()
	tbl.Record(1)
}
