package snapshot

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Codec encodes and decodes one segment value. Encodings must be
// self-delimiting; DecodeValue reports how many bytes it consumed.
type Codec[V comparable] interface {
	AppendValue(buf []byte, v V) []byte
	DecodeValue(buf []byte) (v V, n int, err error)
}

// Uint64Codec stores values as varints.
type Uint64Codec struct{}

func (Uint64Codec) AppendValue(buf []byte, v uint64) []byte {
	return protowire.AppendVarint(buf, v)
}

func (Uint64Codec) DecodeValue(buf []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// Int64Codec stores values as zig-zag varints, keeping small negative values
// (common for "uninitialized" style markers) short.
type Int64Codec struct{}

func (Int64Codec) AppendValue(buf []byte, v int64) []byte {
	return protowire.AppendVarint(buf, protowire.EncodeZigZag(v))
}

func (Int64Codec) DecodeValue(buf []byte) (int64, int, error) {
	v, n := protowire.ConsumeVarint(buf)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return protowire.DecodeZigZag(v), n, nil
}
