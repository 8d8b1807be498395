// Package prefixtable builds, persists and queries a table of IPv4 routes.
//
// A table is built once from a text dump of CIDR routes, one "a.b.c.d/n" per
// line, saved in a compact binary file, and later loaded read-only to answer
// a single question: does an address fall inside any stored prefix?
//
// # Basic Usage
//
// Building a table:
//
//	b, err := prefixtable.NewBuilder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := b.ReadFile(ctx, "rl.txt"); err != nil {
//	    log.Fatal(err)
//	}
//	tbl, err := b.Finish()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tbl.WriteFile("table.bin"); err != nil {
//	    log.Fatal(err)
//	}
//
// Querying a table:
//
//	tbl, err := prefixtable.Open("table.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tbl.Close()
//
//	ip, err := prefixtable.ParseAddr("128.8.5.2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(tbl.Contains(ip))
//
// # File Format
//
// A table file is a big-endian uint32 record count followed by that many
// 5-byte records (uint32 prefix, uint8 mask length). There is no magic number
// or version; files must be rebuilt when the layout changes. Records are
// stored sorted by prefix, then mask length, which the search relies on.
//
// # Package Structure
//
//   - Public API: builder.go (NewBuilder, AddLine, ReadFile, Finish), table.go (Open, Contains)
//   - Records and parsing: record.go (Record, ParseRecord, ParseAddr)
//   - Configuration: builder_options.go (BuildOption, OpenOption, With* functions)
//   - Serialization: internal/encoding, table_writer.go (WriteTo, WriteFile)
//   - Mask arithmetic: internal/bits
//   - Platform: reserve_*.go, advise_*.go (OS-specific I/O hints)
package prefixtable
