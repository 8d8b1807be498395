package main

import (
	"testing"

	"github.com/tamirms/prefixtable"
)

func TestGenerateRoutesDisjoint(t *testing.T) {
	routes := generateRoutes(5000, 7, true)
	if len(routes) == 0 {
		t.Fatal("no routes generated")
	}
	var next uint64
	for i, r := range routes {
		if r.MaskLen < 8 || r.MaskLen > 32 {
			t.Fatalf("route %d: mask length %d", i, r.MaskLen)
		}
		if uint64(r.Prefix) < next {
			t.Fatalf("route %d (%s) overlaps its predecessor", i, r)
		}
		next = uint64(r.Prefix) + 1<<(32-r.MaskLen)
	}
}

func TestDisjointSearchAgreesWithLinearScan(t *testing.T) {
	b, err := prefixtable.NewBuilder()
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range generateRoutes(2000, 99, true) {
		if err := b.AddRecord(r); err != nil {
			t.Fatal(err)
		}
	}
	tbl, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	defer tbl.Close()

	for i := range 20000 {
		ip := queryAddr(i, 99)
		if fast, slow := tbl.Contains(ip), tbl.ContainsLinear(ip); fast != slow {
			t.Fatalf("address %08x: Contains %v, ContainsLinear %v", ip, fast, slow)
		}
	}
	// Every stored prefix is found by its own network address.
	for r := range tbl.All() {
		if !tbl.Contains(r.Prefix) {
			t.Fatalf("Contains(%s) = false", r)
		}
	}
}
