// Package hexutil provides fixed-width hex encoding without fmt.
package hexutil

// Hex character tables
const (
	HexUpper = "0123456789ABCDEF"
	HexLower = "0123456789abcdef"
)

// AppendUint64 appends v as 16 lowercase hex digits, zero padded.
func AppendUint64(dst []byte, v uint64) []byte {
	for shift := 60; shift >= 0; shift -= 4 {
		dst = append(dst, HexLower[v>>uint(shift)&0xF])
	}
	return dst
}

// Uint128 renders a 128-bit value given as two halves, high half first,
// as 32 lowercase hex digits.
func Uint128(hi, lo uint64) string {
	buf := make([]byte, 0, 32)
	buf = AppendUint64(buf, hi)
	buf = AppendUint64(buf, lo)
	return string(buf)
}

// EscapeControl replaces ASCII control bytes with \xXX. UTF-8 sequences
// pass through untouched.
func EscapeControl(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	buf := make([]byte, 0, len(s)+8)
	for i := 0; i < len(s); i++ {
		b := s[i]
		if !isControl(b) {
			buf = append(buf, b)
			continue
		}
		buf = append(buf, '\\', 'x', HexLower[b>>4], HexLower[b&0x0F])
	}
	return string(buf)
}

func isControl(b byte) bool {
	return b < 0x20 || b == 0x7f
}
