package exhibition

import (
	"bytes"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	bin "github.com/gagliardetto/binary"
)

// DiscriminatorLength is the size of the record type tag prefixed to every
// stored record.
const DiscriminatorLength = 8

var (
	configDiscriminator     = discriminator("GlobalConfig")
	exhibitionDiscriminator = discriminator("Exhibition")
	itemDiscriminator       = discriminator("ExhibitionItem")
)

func discriminator(name string) [DiscriminatorLength]byte {
	var out [DiscriminatorLength]byte
	copy(out[:], ethcrypto.Keccak256([]byte("account:"+name)))
	return out
}

func encodeRecord(tag [DiscriminatorLength]byte, v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(tag[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("exhibition: encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(tag [DiscriminatorLength]byte, data []byte, v interface{}) error {
	if len(data) < DiscriminatorLength || !bytes.Equal(data[:DiscriminatorLength], tag[:]) {
		return ErrRecordType
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorLength:]).Decode(v); err != nil {
		return fmt.Errorf("exhibition: decode record: %w", err)
	}
	return nil
}

// EncodeConfig serialises the config into its stored layout.
func EncodeConfig(c *GlobalConfig) ([]byte, error) {
	sanitized, err := SanitizeConfig(c)
	if err != nil {
		return nil, err
	}
	return encodeRecord(configDiscriminator, sanitized)
}

// DecodeConfig parses a stored config.
func DecodeConfig(data []byte) (*GlobalConfig, error) {
	cfg := new(GlobalConfig)
	if err := decodeRecord(configDiscriminator, data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EncodeExhibition serialises the exhibition into its stored layout.
func EncodeExhibition(e *Exhibition) ([]byte, error) {
	sanitized, err := SanitizeExhibition(e)
	if err != nil {
		return nil, err
	}
	return encodeRecord(exhibitionDiscriminator, sanitized)
}

// DecodeExhibition parses a stored exhibition.
func DecodeExhibition(data []byte) (*Exhibition, error) {
	ex := new(Exhibition)
	if err := decodeRecord(exhibitionDiscriminator, data, ex); err != nil {
		return nil, err
	}
	if !ex.Status.Valid() {
		return nil, fmt.Errorf("exhibition: stored status %d invalid", ex.Status)
	}
	return ex, nil
}

// EncodeItem serialises the item into its stored layout.
func EncodeItem(i *ExhibitionItem) ([]byte, error) {
	sanitized, err := SanitizeItem(i)
	if err != nil {
		return nil, err
	}
	return encodeRecord(itemDiscriminator, sanitized)
}

// DecodeItem parses a stored item.
func DecodeItem(data []byte) (*ExhibitionItem, error) {
	item := new(ExhibitionItem)
	if err := decodeRecord(itemDiscriminator, data, item); err != nil {
		return nil, err
	}
	return item, nil
}
