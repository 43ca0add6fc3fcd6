package transport

// Checksum computes the fixed-width integrity value appended to each
// frame's payload. Implementations must be deterministic: encode and
// decode apply the same function and compare byte-for-byte.
type Checksum interface {
	// Sum returns the integrity bytes for a payload.
	// The result is always Size() bytes long.
	Sum(payload []byte) []byte

	// Size returns the integrity value width in bytes.
	Size() int

	// Name returns a short identifier for diagnostics.
	Name() string
}

// XOR8 is the default integrity check: an XOR over all payload bytes,
// rendered as two uppercase hexadecimal digits. The hex rendering keeps
// the integrity bytes inside printable ASCII, so they cannot collide
// with the frame markers.
type XOR8 struct{}

const hexDigits = "0123456789ABCDEF"

// Sum returns the two-digit hex rendering of the payload XOR.
func (XOR8) Sum(payload []byte) []byte {
	var x byte
	for _, b := range payload {
		x ^= b
	}
	return []byte{hexDigits[x>>4], hexDigits[x&0x0F]}
}

// Size returns 2.
func (XOR8) Size() int { return 2 }

// Name returns "xor8".
func (XOR8) Name() string { return "xor8" }

// Compile-time interface satisfaction check.
var _ Checksum = XOR8{}
