package hash

import (
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum over the concatenation of
// parts.
func CRC32C(parts ...[]byte) uint32 {
	var sum uint32
	for _, p := range parts {
		sum = crc32.Update(sum, castagnoli, p)
	}
	return sum
}

// MismatchError reports data whose checksum differs from the recorded one.
type MismatchError struct {
	Got, Want uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch (got %08x, want %08x)", e.Got, e.Want)
}

// Check returns a *MismatchError unless data hashes to want.
func Check(data []byte, want uint32) error {
	if got := CRC32C(data); got != want {
		return &MismatchError{Got: got, Want: want}
	}
	return nil
}
