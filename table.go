package prefixtable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/netip"
	"os"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	tableerrors "github.com/tamirms/prefixtable/errors"
	"github.com/tamirms/prefixtable/internal/encoding"
)

// Table is a read-only, sorted IPv4 prefix table.
//
// The table holds its records in their on-disk encoding, either in a heap
// buffer (Builder.Finish, OpenBytes, ReadTable) or in a read-only memory map
// (Open, OpenFile). Encoding a Table writes that image unchanged, so a
// round trip through a file reproduces the records bit for bit.
//
// Thread Safety:
//   - Contains, ContainsAddr, ContainsLinear and the accessors are safe for concurrent use
//   - Close is NOT safe to call concurrently with queries
//   - After Close returns, Contains and ContainsLinear report no match, ContainsAddr
//     and WriteTo return ErrTableClosed, and no other method may be called
type Table struct {
	// Memory map backing data, nil for heap-backed tables
	mmap mmap.MMap

	// Encoded image: count header followed by exactly n records
	data []byte
	n    int

	closed atomic.Bool
}

// Stats holds table statistics.
type Stats struct {
	NumRecords   int
	TableSize    int64
	Digest       uint64
	MaskLengths  int  // distinct mask lengths present
	DefaultRoute bool // a /0 record is present, so every address matches
}

func newTable(data []byte, mm mmap.MMap) *Table {
	return &Table{
		mmap: mm,
		data: data,
		n:    int(encoding.Count(data)),
	}
}

// Open opens a table file for querying.
// It opens the file, memory-maps it, and closes the file descriptor.
// A missing file yields an error wrapping fs.ErrNotExist.
func Open(path string, opts ...OpenOption) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}
	defer file.Close()
	return OpenFile(file, opts...)
}

// OpenFile opens a table by memory-mapping the given file.
// The caller is responsible for closing f; it may be closed as soon as
// OpenFile returns.
func OpenFile(f *os.File, opts ...OpenOption) (*Table, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat table file: %w", err)
	}
	// Also rejects empty files, which cannot be mapped.
	if stat.Size() < encoding.HeaderSize {
		return nil, tableerrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap table file: %w", err)
	}

	data, resorted, err := validate([]byte(mm), openConfigFrom(opts))
	if err != nil {
		return nil, errors.Join(err, mm.Unmap())
	}
	if resorted {
		// The records now live in a heap copy.
		if err := mm.Unmap(); err != nil {
			return nil, fmt.Errorf("unmap table file: %w", err)
		}
		return newTable(data, nil), nil
	}

	adviseWillNeed(data)
	return newTable(data, mm), nil
}

// OpenBytes creates a table from an encoded image held in memory.
// No copy is made unless the records need resorting; the caller must not
// modify data while the Table is in use.
func OpenBytes(data []byte, opts ...OpenOption) (*Table, error) {
	data, _, err := validate(data, openConfigFrom(opts))
	if err != nil {
		return nil, err
	}
	return newTable(data, nil), nil
}

// ReadTable decodes a table from r. It reads the count and exactly that many
// records; a short read fails with ErrTruncatedFile.
func ReadTable(r io.Reader, opts ...OpenOption) (*Table, error) {
	br := bufio.NewReader(r)

	var header [encoding.HeaderSize]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, readErr(err)
	}
	n := encoding.Count(header[:])

	data := make([]byte, encoding.HeaderSize, encoding.HeaderSize+preallocSize(n))
	copy(data, header[:])
	if _, err := io.CopyN(&byteAppender{&data}, br, int64(n)*encoding.RecordSize); err != nil {
		return nil, readErr(err)
	}
	return OpenBytes(data, opts...)
}

// preallocSize bounds the up-front allocation for a claimed record count, so a
// corrupt header cannot force a huge allocation before the short read is seen.
func preallocSize(n uint32) int {
	const maxPrealloc = 1 << 20
	return min(int(n)*encoding.RecordSize, maxPrealloc)
}

type byteAppender struct{ buf *[]byte }

func (a *byteAppender) Write(p []byte) (int, error) {
	*a.buf = append(*a.buf, p...)
	return len(p), nil
}

func readErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return tableerrors.ErrTruncatedFile
	}
	return fmt.Errorf("read table: %w", err)
}

func openConfigFrom(opts []OpenOption) *openConfig {
	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// validate checks an encoded image and returns it trimmed to the records the
// header declares. Bytes past the last record are ignored. resorted reports
// that the returned image is a new, sorted copy.
func validate(data []byte, cfg *openConfig) (image []byte, resorted bool, err error) {
	if len(data) < encoding.HeaderSize {
		return nil, false, tableerrors.ErrTruncatedFile
	}
	n := encoding.Count(data)
	need := uint64(encoding.HeaderSize) + uint64(n)*encoding.RecordSize
	if uint64(len(data)) < need {
		return nil, false, fmt.Errorf("%w: %d records need %d bytes, have %d",
			tableerrors.ErrTruncatedFile, n, need, len(data))
	}
	data = data[:need]

	sorted := true
	var prev uint32
	for i := 0; i < int(n); i++ {
		prefix, maskLen := encoding.ReadRecord(data, i)
		if maskLen > maxMaskLen {
			return nil, false, fmt.Errorf("%w: record %d has mask length %d", tableerrors.ErrCorruptedTable, i, maskLen)
		}
		if i > 0 && prefix < prev {
			sorted = false
		}
		prev = prefix
	}
	if sorted {
		return data, false, nil
	}
	if !cfg.resort {
		return nil, false, tableerrors.ErrUnsortedTable
	}
	return resort(data, int(n)), true, nil
}

// resort decodes, sorts and re-encodes an out-of-order image into a new buffer.
func resort(data []byte, n int) []byte {
	records := make([]Record, n)
	for i := range records {
		records[i].Prefix, records[i].MaskLen = encoding.ReadRecord(data, i)
	}
	slices.SortFunc(records, compareRecords)

	out := make([]byte, len(data))
	encoding.PutCount(out, uint32(n))
	for i, r := range records {
		encoding.PutRecord(out, i, r.Prefix, r.MaskLen)
	}
	return out
}

// Close releases the memory map, if any. Idempotent.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.mmap != nil {
		return t.mmap.Unmap()
	}
	return nil
}

// record decodes record i. Precondition: 0 <= i < t.n.
func (t *Table) record(i int) Record {
	prefix, maskLen := encoding.ReadRecord(t.data, i)
	return Record{Prefix: prefix, MaskLen: maskLen}
}

// Contains reports whether ip falls inside a stored prefix.
//
// It binary-searches the prefix-sorted records: at each probe the record's
// prefix is compared with ip under the record's own mask, and on a miss the
// window moves by the raw 32-bit order of ip and the stored prefix. When the
// window narrows to one record, that record is tested too.
//
// This is not an interval search. A short prefix can sort ahead of a longer
// unrelated one and be skipped; ContainsLinear gives the exhaustive answer.
func (t *Table) Contains(ip uint32) bool {
	if t.closed.Load() || t.n == 0 {
		return false
	}

	left, right := 0, t.n-1
	for left < right {
		mid := (left + right) / 2
		r := t.record(mid)
		if r.Contains(ip) {
			return true
		}
		if ip > r.Prefix {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return t.record(left).Contains(ip)
}

// ContainsAddr is Contains for a netip.Addr. IPv4-mapped IPv6 addresses are
// unmapped; other IPv6 addresses return ErrNotIPv4.
func (t *Table) ContainsAddr(addr netip.Addr) (bool, error) {
	if t.closed.Load() {
		return false, tableerrors.ErrTableClosed
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return false, tableerrors.ErrNotIPv4
	}
	return t.Contains(addrToUint32(addr)), nil
}

// ContainsLinear reports whether any record contains ip, checking every
// record. It is the reference answer Contains is verified against.
func (t *Table) ContainsLinear(ip uint32) bool {
	if t.closed.Load() {
		return false
	}
	for i := 0; i < t.n; i++ {
		if t.record(i).Contains(ip) {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (t *Table) Len() int {
	return t.n
}

// Size returns the length in bytes of the encoded table image.
func (t *Table) Size() int64 {
	return int64(len(t.data))
}

// Record returns record i in sorted order. It panics if i is out of range.
func (t *Table) Record(i int) Record {
	if i < 0 || i >= t.n {
		panic(fmt.Sprintf("prefixtable: record index %d out of range [0, %d)", i, t.n))
	}
	return t.record(i)
}

// All iterates over the records in sorted order.
func (t *Table) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for i := 0; i < t.n; i++ {
			if !yield(t.record(i)) {
				return
			}
		}
	}
}

// Digest returns the xxHash64 of the encoded table image.
// Equal digests mean byte-identical table files.
func (t *Table) Digest() uint64 {
	return xxhash.Sum64(t.data)
}

// GetStats returns statistics for a table file.
func GetStats(path string) (*Stats, error) {
	t, err := Open(path)
	if err != nil {
		return nil, err
	}
	return t.Stats(), t.Close()
}

// Stats returns statistics for the table.
func (t *Table) Stats() *Stats {
	var seen [maxMaskLen + 1]bool
	distinct := 0
	for r := range t.All() {
		if !seen[r.MaskLen] {
			seen[r.MaskLen] = true
			distinct++
		}
	}
	return &Stats{
		NumRecords:   t.n,
		TableSize:    t.Size(),
		Digest:       t.Digest(),
		MaskLengths:  distinct,
		DefaultRoute: seen[0],
	}
}

// Dump writes each stored prefix as a 32-digit binary string, one per line,
// most significant bit first.
func (t *Table) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for r := range t.All() {
		if _, err := fmt.Fprintf(bw, "%032b\n", r.Prefix); err != nil {
			return err
		}
	}
	return bw.Flush()
}
