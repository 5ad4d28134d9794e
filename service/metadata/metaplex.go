package metadata

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/brojonat/walletwatch/service/solana"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// key(1) + update authority(32) + mint(32)
const metaplexHeaderLen = 1 + 32 + 32

// OnChainMetadata is the name, symbol and URI stored in a Metaplex metadata account.
type OnChainMetadata struct {
	Name   string
	Symbol string
	URI    string
}

// MetadataAddress derives the Metaplex metadata account for mint.
func MetadataAddress(mint string) (solanago.PublicKey, error) {
	mintKey, err := solanago.PublicKeyFromBase58(mint)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	addr, _, err := solanago.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			solana.MetaplexProgramID.Bytes(),
			mintKey.Bytes(),
		},
		solana.MetaplexProgramID,
	)
	if err != nil {
		return solanago.PublicKey{}, fmt.Errorf("failed to derive metadata address for %s: %w", mint, err)
	}
	return addr, nil
}

// ParseMetaplexMetadata reads the leading name, symbol and URI fields of a
// Metaplex metadata account. Trailing fields are ignored and NUL padding is stripped.
func ParseMetaplexMetadata(data []byte) (*OnChainMetadata, error) {
	dec := bin.NewBorshDecoder(data)
	if _, err := dec.ReadNBytes(metaplexHeaderLen); err != nil {
		return nil, fmt.Errorf("metadata account too short: %w", err)
	}

	var fields [3]string
	for i, name := range []string{"name", "symbol", "uri"} {
		s, err := readBorshString(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		fields[i] = s
	}

	return &OnChainMetadata{
		Name:   fields[0],
		Symbol: fields[1],
		URI:    fields[2],
	}, nil
}

func readBorshString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	raw, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(raw), "\x00", ""), nil
}
