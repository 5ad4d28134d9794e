package metadata

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func borshString(s string, padTo int) []byte {
	body := []byte(s)
	for len(body) < padTo {
		body = append(body, 0)
	}
	out := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

// encodeMetaplex builds a metadata account with padded fields, the way the
// program stores them.
func encodeMetaplex(name, symbol, uri string) []byte {
	data := make([]byte, metaplexHeaderLen)
	data[0] = 4
	data = append(data, borshString(name, 32)...)
	data = append(data, borshString(symbol, 10)...)
	data = append(data, borshString(uri, 200)...)
	// seller fee basis points and trailing fields are ignored
	return append(data, 0xf4, 0x01, 0x00)
}

func TestParseMetaplexMetadata(t *testing.T) {
	t.Run("strips padding", func(t *testing.T) {
		got, err := ParseMetaplexMetadata(encodeMetaplex("Bonk", "BONK", "https://arweave.net/bonk.json"))
		require.NoError(t, err)
		assert.Equal(t, "Bonk", got.Name)
		assert.Equal(t, "BONK", got.Symbol)
		assert.Equal(t, "https://arweave.net/bonk.json", got.URI)
	})

	t.Run("unpadded fields", func(t *testing.T) {
		data := make([]byte, metaplexHeaderLen)
		data = append(data, borshString("A", 0)...)
		data = append(data, borshString("", 0)...)
		data = append(data, borshString("ipfs://x", 0)...)

		got, err := ParseMetaplexMetadata(data)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Name)
		assert.Equal(t, "", got.Symbol)
		assert.Equal(t, "ipfs://x", got.URI)
	})

	t.Run("short header", func(t *testing.T) {
		_, err := ParseMetaplexMetadata(make([]byte, 10))
		require.Error(t, err)
	})

	t.Run("length beyond data", func(t *testing.T) {
		data := make([]byte, metaplexHeaderLen)
		data = binary.LittleEndian.AppendUint32(data, 1000)
		data = append(data, 'x')
		_, err := ParseMetaplexMetadata(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})
}

func TestMetadataAddress(t *testing.T) {
	const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

	a, err := MetadataAddress(mint)
	require.NoError(t, err)
	b, err := MetadataAddress(mint)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, mint, a.String())

	_, err = MetadataAddress("not-a-key")
	require.Error(t, err)
}
