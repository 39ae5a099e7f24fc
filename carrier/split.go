package carrier

import "golang.org/x/text/unicode/norm"

// AddressLimit is the width of a carrier address column, in characters.
const AddressLimit = 16

// SplitAddress splits s after AddressLimit characters. The remainder goes
// to the building/room column; primary+secondary is always exactly s.
func SplitAddress(s string) (primary, secondary string) {
	return splitChars(s, AddressLimit)
}

// splitChars counts characters as normalization segments, so a base letter
// followed by combining marks is one character, but the input bytes are
// never rewritten.
func splitChars(s string, limit int) (string, string) {
	pos, chars := 0, 0
	for pos < len(s) && chars < limit {
		n := norm.NFC.NextBoundaryInString(s[pos:], true)
		if n <= 0 {
			n = len(s) - pos
		}
		pos += n
		chars++
	}
	return s[:pos], s[pos:]
}

// CharCount is the number of characters as SplitAddress counts them.
func CharCount(s string) int {
	count := 0
	for pos := 0; pos < len(s); count++ {
		n := norm.NFC.NextBoundaryInString(s[pos:], true)
		if n <= 0 {
			n = len(s) - pos
		}
		pos += n
	}
	return count
}
