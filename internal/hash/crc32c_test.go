package hash

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Known answer for the Castagnoli polynomial.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))
	assert.Equal(t, CRC32C([]byte("123456789")), CRC32C([]byte("12345"), []byte("6789")))
	assert.Equal(t, uint32(0), CRC32C())
}

func TestCheck(t *testing.T) {
	data := []byte("segment payload")
	require.NoError(t, Check(data, CRC32C(data)))

	err := Check(data, 1)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, uint32(1), mismatch.Want)
	assert.Equal(t, CRC32C(data), mismatch.Got)
	assert.Contains(t, err.Error(), "checksum mismatch")
}
