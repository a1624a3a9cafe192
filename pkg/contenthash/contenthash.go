// Package contenthash derives short, stable names from content.
//
// The algorithm is a djb2 variant that walks the input from the last element
// to the first, multiplying by 33 and XOR-ing each element into a 32-bit
// accumulator. Results are rendered in lowercase base 36. Output must stay
// byte-for-byte stable: extracted script file names are built from it and
// extension CSP allow-lists may pin them.
package contenthash

import (
	"strconv"
	"unicode/utf16"
)

const seed uint32 = 5381

// String hashes s as a sequence of UTF-16 code units.
func String(s string) string {
	return format(Sum32String(s))
}

// Bytes hashes b as a sequence of unsigned bytes.
func Bytes(b []byte) string {
	return format(Sum32Bytes(b))
}

// Sum32String returns the raw accumulator for s.
func Sum32String(s string) uint32 {
	units := utf16.Encode([]rune(s))
	h := seed
	for i := len(units) - 1; i >= 0; i-- {
		h = (h * 33) ^ uint32(units[i])
	}
	return h
}

// Sum32Bytes returns the raw accumulator for b.
func Sum32Bytes(b []byte) uint32 {
	h := seed
	for i := len(b) - 1; i >= 0; i-- {
		h = (h * 33) ^ uint32(b[i])
	}
	return h
}

func format(h uint32) string {
	return strconv.FormatUint(uint64(h), 36)
}
