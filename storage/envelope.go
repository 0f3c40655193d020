package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	envelopeMagic   = "CASG"
	envelopeVersion = 1

	flagCompressed = 1 << 0
	algZstd        = 1

	envelopeHeaderLen = len(envelopeMagic) + 3
)

// blockCodec wraps stored blocks in a small versioned envelope, optionally
// compressing the payload with zstd. Blocks are always addressed by the hash
// of the plain payload, never of the envelope.
type blockCodec struct {
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func newBlockCodec(compress bool, level int) (*blockCodec, error) {
	c := &blockCodec{compress: compress}

	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		c.encoder = enc
	}

	// The decoder is always present so a store written with compression can
	// be reopened without it.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	c.decoder = dec

	return c, nil
}

func (c *blockCodec) encode(plain []byte) []byte {
	var flags, alg byte
	payload := plain
	if c.compress {
		flags |= flagCompressed
		alg = algZstd
		payload = c.encoder.EncodeAll(plain, nil)
	}

	envelope := make([]byte, 0, envelopeHeaderLen+len(payload))
	envelope = append(envelope, envelopeMagic...)
	envelope = append(envelope, envelopeVersion, flags, alg)
	envelope = append(envelope, payload...)
	return envelope
}

func (c *blockCodec) decode(stored []byte) ([]byte, error) {
	if len(stored) < envelopeHeaderLen {
		return nil, fmt.Errorf("block too small for envelope")
	}
	if string(stored[:len(envelopeMagic)]) != envelopeMagic {
		return nil, fmt.Errorf("invalid block magic")
	}

	header := stored[len(envelopeMagic):envelopeHeaderLen]
	if header[0] != envelopeVersion {
		return nil, fmt.Errorf("unsupported block version %d", header[0])
	}

	flags, alg := header[1], header[2]
	payload := stored[envelopeHeaderLen:]

	if flags&flagCompressed == 0 {
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	if alg != algZstd {
		return nil, fmt.Errorf("unsupported compression algorithm %d", alg)
	}
	return c.decoder.DecodeAll(payload, nil)
}

func (c *blockCodec) close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	c.decoder.Close()
}
