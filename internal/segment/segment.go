package segment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/ftsync/codec"
	"github.com/hupe1980/ftsync/internal/hash"
)

// Magic identifies a framed blob.
const Magic = "FTSG"

// FormatVersion is the current frame version.
const FormatVersion uint16 = 1

const fixedHeaderSize = 4 + 2 + 1 + 1 + 4 + 4 + 4

var (
	// ErrCorrupt is returned when a frame fails validation.
	ErrCorrupt = errors.New("segment: corrupt frame")

	// ErrUnknownCodec is returned when a frame names a codec that is not built in.
	ErrUnknownCodec = errors.New("segment: unknown codec")
)

// Header describes a decoded frame.
type Header struct {
	Version     uint16
	Compression Compression
	Codec       string
	RawSize     uint32
	StoredSize  uint32
	Checksum    uint32
}

// Encode marshals v with c, compresses it and frames the result.
func Encode(c codec.Codec, comp Compression, v any) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("segment: codec name too long: %q", name)
	}

	raw, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("segment: marshal with %s: %w", name, err)
	}

	stored, used, err := compress(raw, comp)
	if err != nil {
		return nil, err
	}

	out := make([]byte, fixedHeaderSize+len(name)+len(stored))
	copy(out[0:4], Magic)
	binary.LittleEndian.PutUint16(out[4:], FormatVersion)
	out[6] = byte(used)
	out[7] = byte(len(name))
	off := 8 + copy(out[8:], name)
	binary.LittleEndian.PutUint32(out[off:], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[off+4:], uint32(len(stored)))
	binary.LittleEndian.PutUint32(out[off+8:], hash.CRC32C(stored))
	copy(out[off+12:], stored)
	return out, nil
}

// ReadHeader validates the frame header and checksum of data.
// It returns the header and the stored (possibly compressed) payload.
func ReadHeader(data []byte) (Header, []byte, error) {
	var h Header
	if len(data) < fixedHeaderSize {
		return h, nil, fmt.Errorf("%w: %d bytes is shorter than a header", ErrCorrupt, len(data))
	}
	if string(data[0:4]) != Magic {
		return h, nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:4])
	}
	h.Version = binary.LittleEndian.Uint16(data[4:])
	if h.Version != FormatVersion {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	h.Compression = Compression(data[6])
	n := int(data[7])
	if len(data) < fixedHeaderSize+n {
		return h, nil, fmt.Errorf("%w: truncated header", ErrCorrupt)
	}
	h.Codec = string(data[8 : 8+n])
	off := 8 + n
	h.RawSize = binary.LittleEndian.Uint32(data[off:])
	h.StoredSize = binary.LittleEndian.Uint32(data[off+4:])
	h.Checksum = binary.LittleEndian.Uint32(data[off+8:])

	payload := data[off+12:]
	if uint32(len(payload)) != h.StoredSize {
		return h, nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), h.StoredSize)
	}
	if err := hash.Check(payload, h.Checksum); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, payload, nil
}

// Decode validates data, decompresses the payload and unmarshals it into v
// with the codec named in the header.
func Decode(data []byte, v any) (Header, error) {
	h, stored, err := ReadHeader(data)
	if err != nil {
		return h, err
	}
	c, ok := codec.ByName(h.Codec)
	if !ok {
		return h, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}
	raw, err := decompress(stored, h.Compression, h.RawSize)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := c.Unmarshal(raw, v); err != nil {
		return h, fmt.Errorf("%w: unmarshal with %s: %v", ErrCorrupt, h.Codec, err)
	}
	return h, nil
}
