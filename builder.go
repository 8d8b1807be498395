package prefixtable

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	tableerrors "github.com/tamirms/prefixtable/errors"
	"github.com/tamirms/prefixtable/internal/encoding"
)

const (
	// contextCheckInterval is how often ReadFrom checks for cancellation, in lines.
	contextCheckInterval = 10000

	// maxRecords is bounded by the uint32 record count in the table header.
	maxRecords = uint64(math.MaxUint32)
)

// Builder accumulates route records and produces an immutable Table.
//
// Usage:
//
//	b, err := prefixtable.NewBuilder(prefixtable.WithRejectHandler(report))
//	if err != nil { return err }
//	if _, err := b.ReadFile(ctx, "rl.txt"); err != nil { return err }
//	tbl, err := b.Finish()
//	if err != nil { return err }
//	return tbl.WriteFile("table.bin")
//
// A Builder is not safe for concurrent use.
type Builder struct {
	cfg      *buildConfig
	records  []Record
	rejected int
	closed   bool
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuildOption) (*Builder, error) {
	cfg := defaultBuildConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.initialCapacity < 1 {
		return nil, tableerrors.ErrInvalidCapacity
	}
	if cfg.growthFactor < 2 {
		return nil, tableerrors.ErrInvalidGrowth
	}

	return &Builder{
		cfg:     cfg,
		records: make([]Record, 0, cfg.initialCapacity),
	}, nil
}

// AddRecord appends one record. Storage grows by the configured factor when
// full, so a sequence of AddRecord calls costs amortized O(1) each.
func (b *Builder) AddRecord(r Record) error {
	if b.closed {
		return tableerrors.ErrBuilderClosed
	}
	if r.MaskLen > maxMaskLen {
		return tableerrors.ErrMaskTooLong
	}
	if uint64(len(b.records)) >= maxRecords {
		return tableerrors.ErrTooManyRecords
	}

	if len(b.records) == cap(b.records) {
		b.grow()
	}
	b.records = append(b.records, r)
	return nil
}

// grow replaces the record storage with one growthFactor times larger.
func (b *Builder) grow() {
	newCap := int(min(uint64(cap(b.records))*uint64(b.cfg.growthFactor), maxRecords))
	grown := make([]Record, len(b.records), newCap)
	copy(grown, b.records)
	b.records = grown
	b.cfg.logger.V(2).Info("grew record storage", "records", len(grown), "capacity", newCap)
}

// AddLine parses one route line and appends the record.
// A malformed line is counted, reported to the reject handler, and returned
// as an error wrapping ErrMalformedLine; the Builder stays usable.
func (b *Builder) AddLine(line string) error {
	if b.closed {
		return tableerrors.ErrBuilderClosed
	}
	r, err := ParseRecord(line)
	if err != nil {
		b.reject(line, err)
		return err
	}
	return b.AddRecord(r)
}

func (b *Builder) reject(line string, err error) {
	b.rejected++
	b.cfg.logger.V(1).Info("rejected route line", "line", line, "err", err)
	if b.cfg.onReject != nil {
		b.cfg.onReject(line, err)
	}
}

// ReadFrom adds every route line in r and returns how many records it added.
// Malformed and overlong lines are rejected without stopping the scan; only
// read errors and context cancellation end it early.
func (b *Builder) ReadFrom(ctx context.Context, r io.Reader) (int, error) {
	if b.closed {
		return 0, tableerrors.ErrBuilderClosed
	}

	// One spare byte so a line of exactly maxLineLength fits with its newline.
	br := bufio.NewReaderSize(r, b.cfg.maxLineLength+1)
	added := 0
	for lineNo := 1; ; lineNo++ {
		if lineNo%contextCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return added, ctx.Err()
			default:
			}
		}

		line, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return added, nil
		}
		if err != nil {
			return added, fmt.Errorf("read route line %d: %w", lineNo, err)
		}

		if isPrefix || len(line) > b.cfg.maxLineLength {
			text := string(line)
			if isPrefix {
				if err := discardLine(br); err != nil {
					return added, fmt.Errorf("read route line %d: %w", lineNo, err)
				}
			}
			b.reject(text, fmt.Errorf("%w: %w: longer than %d bytes",
				tableerrors.ErrMalformedLine, tableerrors.ErrLineTooLong, b.cfg.maxLineLength))
			continue
		}

		if err := b.AddLine(string(line)); err != nil {
			if errors.Is(err, tableerrors.ErrMalformedLine) {
				continue
			}
			return added, err
		}
		added++
	}
}

// discardLine consumes the remainder of an overlong line.
func discardLine(br *bufio.Reader) error {
	for {
		_, isPrefix, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !isPrefix {
			return nil
		}
	}
}

// ReadFile adds every route line in the named file.
// A missing file yields an error wrapping fs.ErrNotExist.
func (b *Builder) ReadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open route source: %w", err)
	}
	defer f.Close()
	adviseSequential(f)
	return b.ReadFrom(ctx, f)
}

// Len returns the number of records added so far.
func (b *Builder) Len() int {
	return len(b.records)
}

// Capacity returns the current record storage capacity.
func (b *Builder) Capacity() int {
	return cap(b.records)
}

// Rejected returns the number of lines rejected so far.
func (b *Builder) Rejected() int {
	return b.rejected
}

// Finish sorts the records by prefix (ties by mask length) and encodes them
// into a Table. A Builder with no records yields an empty Table, not an error.
// After Finish the Builder cannot be used again.
func (b *Builder) Finish() (*Table, error) {
	if b.closed {
		return nil, tableerrors.ErrBuilderClosed
	}
	b.closed = true

	records := b.records
	b.records = nil
	slices.SortFunc(records, compareRecords)

	data := make([]byte, encoding.Size(len(records)))
	encoding.PutCount(data, uint32(len(records)))
	for i, r := range records {
		encoding.PutRecord(data, i, r.Prefix, r.MaskLen)
	}

	b.cfg.logger.V(1).Info("table built", "records", len(records), "rejected", b.rejected)
	return newTable(data, nil), nil
}
