package frames

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Codec is the opaque transport encoding applied to frame payloads. The
// engine never inspects encoded bytes; it only requires Decode(Encode(b)) == b
// and that Encode is deterministic for a given input.
type Codec interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// IdentityCodec passes bytes through unchanged.
type IdentityCodec struct{}

// Name implements Codec.
func (IdentityCodec) Name() string { return "none" }

// Encode implements Codec.
func (IdentityCodec) Encode(data []byte) ([]byte, error) { return data, nil }

// Decode implements Codec.
func (IdentityCodec) Decode(data []byte) ([]byte, error) { return data, nil }

// ZstdCodec compresses payloads with zstd. Single-threaded encoding keeps the
// output deterministic for identical input, which frame ids depend on.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec creates a zstd codec at the default compression level.
func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

// Name implements Codec.
func (c *ZstdCodec) Name() string { return "zstd" }

// Encode implements Codec.
func (c *ZstdCodec) Encode(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

// Decode implements Codec.
func (c *ZstdCodec) Decode(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// CodecByName resolves a configured codec name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "none":
		return IdentityCodec{}, nil
	case "zstd":
		return NewZstdCodec()
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
