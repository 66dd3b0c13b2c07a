package sqlgen

import (
	"fmt"
	"hash/crc32"
)

// suffix is "_" plus eight hex digits of the CRC-32 of the full
// original identifier.
const checksumSuffixLen = 9

// TruncateIdentifier shortens an identifier to at most maxBytes bytes.
// Target engines enforce byte limits, not character counts, so the cut
// operates on bytes. The checksum of the complete original string is
// appended so two long identifiers sharing a prefix stay distinct
// after truncation; the result is exactly maxBytes bytes long.
func TruncateIdentifier(name string, maxBytes int) string {
	if maxBytes <= 0 || len(name) <= maxBytes {
		return name
	}
	sum := crc32.ChecksumIEEE([]byte(name))
	if maxBytes <= checksumSuffixLen {
		// Degenerate limit: the checksum is all that fits.
		return fmt.Sprintf("_%08x", sum)[:maxBytes]
	}
	return fmt.Sprintf("%s_%08x", name[:maxBytes-checksumSuffixLen], sum)
}
