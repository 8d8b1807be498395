// Package bits provides low-level bit manipulation primitives for IPv4 words.
package bits

// Mask returns the netmask with the top n bits set.
// n >= 32 yields the full word. The n == 0 and n == 32 cases are branched
// explicitly because a 32-bit shift by 32 is not a usable identity.
func Mask(n uint8) uint32 {
	switch {
	case n == 0:
		return 0
	case n >= 32:
		return 0xFFFFFFFF
	}
	return ^uint32(0) << (32 - n)
}

// HighBits returns the top n bits of v, right-aligned.
// HighBits(v, 0) is 0 for every v, so all words agree on an empty prefix.
// HighBits(v, 32) is v.
func HighBits(v uint32, n uint8) uint32 {
	switch {
	case n == 0:
		return 0
	case n >= 32:
		return v
	}
	return v >> (32 - n)
}

// SamePrefix reports whether a and b agree on their top n bits.
func SamePrefix(a, b uint32, n uint8) bool {
	return HighBits(a, n) == HighBits(b, n)
}
