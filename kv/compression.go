package kv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/rangestream/internal/hash"
)

// Compression selects how snapshot blocks are compressed.
type Compression uint8

const (
	// CompressionNone stores blocks as is.
	CompressionNone Compression = 0
	// CompressionLZ4 favours load speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favours snapshot size.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression maps "none", "lz4" and "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, fmt.Errorf("kv: unknown compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block layout: [raw size uint32][stored size uint32][crc32c uint32][data]. A
// stored size of 0 means the data is not compressed. The checksum covers the
// uncompressed data.
const blockHeaderSize = 12

var errCorruptBlock = errors.New("kv: corrupt snapshot block")

// encodeBlock frames data, compressing it when that saves at least 10%.
func encodeBlock(data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		packed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(data))
	if len(packed) == 0 || float64(len(packed)) > float64(len(data))*0.9 {
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	return append(out, packed...), nil
}

// decodeBlock expands and verifies the payload of a block whose header is hdr.
func decodeBlock(hdr [blockHeaderSize]byte, payload []byte, c Compression) ([]byte, error) {
	data, err := expandBlock(hdr, payload, c)
	if err != nil {
		return nil, err
	}
	if !hash.Verify(data, binary.LittleEndian.Uint32(hdr[8:])) {
		return nil, fmt.Errorf("%w: checksum mismatch", errCorruptBlock)
	}
	return data, nil
}

func expandBlock(hdr [blockHeaderSize]byte, payload []byte, c Compression) ([]byte, error) {
	rawSize := binary.LittleEndian.Uint32(hdr[0:])
	storedSize := binary.LittleEndian.Uint32(hdr[4:])
	if storedSize == 0 {
		if uint32(len(payload)) != rawSize {
			return nil, errCorruptBlock
		}
		return payload, nil
	}

	out := make([]byte, rawSize)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCorruptBlock, err)
		}
		if uint32(n) != rawSize {
			return nil, errCorruptBlock
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(payload, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errCorruptBlock, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, errCorruptBlock
		}
		return decoded, nil
	}
	return nil, fmt.Errorf("%w: compressed block in %s snapshot", errCorruptBlock, c)
}

// payloadSize returns how many bytes follow a block header.
func payloadSize(hdr [blockHeaderSize]byte) uint32 {
	if stored := binary.LittleEndian.Uint32(hdr[4:]); stored != 0 {
		return stored
	}
	return binary.LittleEndian.Uint32(hdr[0:])
}
