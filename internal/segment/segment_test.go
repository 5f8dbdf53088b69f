package segment

import (
	"strings"
	"testing"

	"github.com/hupe1980/ftsync/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Ops []string `json:"ops" bson:"ops"`
}

func repetitive() payload {
	p := payload{}
	for i := 0; i < 200; i++ {
		p.Ops = append(p.Ops, strings.Repeat("madrid barcelona ", 4))
	}
	return p
}

func TestEncodeDecode(t *testing.T) {
	codecs := []codec.Codec{codec.JSON, codec.GoJSON, codec.BSON}
	comps := []Compression{CompressionNone, CompressionLZ4, CompressionZSTD}

	for _, c := range codecs {
		for _, comp := range comps {
			t.Run(c.Name()+"/"+comp.String(), func(t *testing.T) {
				in := repetitive()
				data, err := Encode(c, comp, in)
				require.NoError(t, err)

				var out payload
				h, err := Decode(data, &out)
				require.NoError(t, err)
				assert.Equal(t, c.Name(), h.Codec)
				assert.Equal(t, comp, h.Compression)
				assert.Equal(t, in, out)
			})
		}
	}
}

func TestEncode_IncompressibleFallsBack(t *testing.T) {
	data, err := Encode(codec.JSON, CompressionZSTD, payload{Ops: []string{"x"}})
	require.NoError(t, err)

	h, _, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, h.Compression)
}

func TestDecode_Corruption(t *testing.T) {
	good, err := Encode(codec.JSON, CompressionNone, repetitive())
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, err := Decode(good[:5], &payload{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("magic", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[0] = 'X'
		_, err := Decode(bad, &payload{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("flipped payload byte", func(t *testing.T) {
		bad := append([]byte(nil), good...)
		bad[len(bad)-3] ^= 0xFF
		_, err := Decode(bad, &payload{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated payload", func(t *testing.T) {
		_, err := Decode(good[:len(good)-1], &payload{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("unknown codec", func(t *testing.T) {
		data, err := Encode(codec.New("fake", codec.JSON.Marshal, codec.JSON.Unmarshal), CompressionNone, repetitive())
		require.NoError(t, err)
		_, err = Decode(data, &payload{})
		assert.ErrorIs(t, err, ErrUnknownCodec)
	})
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZSTD} {
		got, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("snappy")
	assert.Error(t, err)
}
