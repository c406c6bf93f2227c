package tokenizer

import "strings"

var byteEncoder = buildByteEncoder()

// buildByteEncoder maps every byte to a printable rune so byte-level BPE never
// sees whitespace or control characters. Printable latin-1 bytes map to
// themselves, the rest are shifted past U+0100.
func buildByteEncoder() [256]rune {
	var printable [256]bool
	for b := '!'; b <= '~'; b++ {
		printable[b] = true
	}
	for b := '¡'; b <= '¬'; b++ {
		printable[b] = true
	}
	for b := '®'; b <= 'ÿ'; b++ {
		printable[b] = true
	}

	var enc [256]rune
	next := rune(256)
	for b := 0; b < 256; b++ {
		if printable[b] {
			enc[b] = rune(b)
			continue
		}
		enc[b] = next
		next++
	}
	return enc
}

// byteLevelEncode maps the UTF-8 bytes of s through byteEncoder.
func byteLevelEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		b.WriteRune(byteEncoder[s[i]])
	}
	return b.String()
}
