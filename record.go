package prefixtable

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"unicode"

	tableerrors "github.com/tamirms/prefixtable/errors"
	"github.com/tamirms/prefixtable/internal/bits"
)

// maxMaskLen is the longest IPv4 mask.
const maxMaskLen = 32

// Record is one IPv4 route: a network address and its mask length.
//
// Prefix is the address as a big-endian 32-bit integer (first octet in the
// top byte). Bits beyond MaskLen are kept as read from the source and may be
// non-zero; Contains masks both sides before comparing.
type Record struct {
	Prefix  uint32
	MaskLen uint8
}

// RecordFromPrefix converts an IPv4 netip.Prefix without masking host bits.
func RecordFromPrefix(p netip.Prefix) (Record, error) {
	addr := p.Addr()
	if !addr.Is4() {
		return Record{}, tableerrors.ErrNotIPv4
	}
	if !p.IsValid() || p.Bits() > maxMaskLen {
		return Record{}, tableerrors.ErrMaskTooLong
	}
	return Record{Prefix: addrToUint32(addr), MaskLen: uint8(p.Bits())}, nil
}

// Addr returns the stored network address, host bits included.
func (r Record) Addr() netip.Addr {
	return uint32ToAddr(r.Prefix)
}

// NetipPrefix returns the record as a netip.Prefix (unmasked).
func (r Record) NetipPrefix() netip.Prefix {
	return netip.PrefixFrom(r.Addr(), int(r.MaskLen))
}

// String renders the record in a.b.c.d/n form.
func (r Record) String() string {
	return r.NetipPrefix().String()
}

// Contains reports whether ip shares the record's top MaskLen bits.
// A /0 record contains every address; a /32 record only its own address.
func (r Record) Contains(ip uint32) bool {
	if r.MaskLen == 0 {
		return true
	}
	return bits.SamePrefix(r.Prefix, ip, r.MaskLen)
}

// compareRecords orders by raw prefix, then by mask length.
func compareRecords(a, b Record) int {
	if c := cmp.Compare(a.Prefix, b.Prefix); c != 0 {
		return c
	}
	return cmp.Compare(a.MaskLen, b.MaskLen)
}

// ParseRecord parses one route line of the form "a.b.c.d/n".
//
// Only the first whitespace-separated field is examined, and within it only
// the address and the digits of the mask length; anything after them (AS
// paths, next hops, separators) is ignored. Every failure wraps
// ErrMalformedLine.
func ParseRecord(line string) (Record, error) {
	field := firstField(line)
	if field == "" {
		return Record{}, fmt.Errorf("%w: empty line", tableerrors.ErrMalformedLine)
	}

	slash := strings.IndexByte(field, '/')
	if slash < 0 {
		return Record{}, fmt.Errorf("%w: missing mask length in %q", tableerrors.ErrMalformedLine, field)
	}
	// The mask length ends at the first non-digit; anything after it, such
	// as "10.0.0.0/8,65000", is ignored.
	digits := maskDigits(field[slash+1:])
	if digits == "" {
		return Record{}, fmt.Errorf("%w: missing mask length in %q", tableerrors.ErrMalformedLine, field)
	}
	field = field[:slash+1+len(digits)]

	// netip reports an oversized mask as a generic parse error; check it
	// first so callers can tell it apart.
	if n, err := strconv.Atoi(digits); err == nil && n > maxMaskLen {
		if addr, err := netip.ParseAddr(field[:slash]); err == nil && addr.Is4() {
			return Record{}, fmt.Errorf("%w: %w: /%d", tableerrors.ErrMalformedLine, tableerrors.ErrMaskTooLong, n)
		}
	}

	p, err := netip.ParsePrefix(field)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", tableerrors.ErrMalformedLine, err)
	}
	r, err := RecordFromPrefix(p)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w: %s", tableerrors.ErrMalformedLine, err, field)
	}
	return r, nil
}

// ParseAddr parses the dotted-quad IPv4 address at the start of s.
// IPv4-mapped IPv6 addresses are unmapped; any other IPv6 address is rejected.
// Every failure wraps ErrInvalidAddress.
func ParseAddr(s string) (uint32, error) {
	field := firstField(s)
	if field == "" {
		return 0, fmt.Errorf("%w: empty input", tableerrors.ErrInvalidAddress)
	}
	addr, err := netip.ParseAddr(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", tableerrors.ErrInvalidAddress, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, fmt.Errorf("%w: %w: %s", tableerrors.ErrInvalidAddress, tableerrors.ErrNotIPv4, field)
	}
	return addrToUint32(addr), nil
}

// maskDigits returns the leading run of decimal digits in s.
func maskDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func firstField(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if end := strings.IndexFunc(s, unicode.IsSpace); end >= 0 {
		return s[:end]
	}
	return s
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func uint32ToAddr(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}
