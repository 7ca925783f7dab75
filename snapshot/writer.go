// Package snapshot serializes a rangemap.Map to a compact binary snapshot,
// for checkpointing and offline inspection. The format is:
//
//	magic (16 bytes)
//	header size (4 bytes, little endian)
//	header (protowire varint fields: version, space size, segment count)
//	one record per segment: varint byte length, then the codec-encoded value
//	CRC32-IEEE of everything above (4 bytes, little endian)
//
// Records are ordered and contiguous; their lengths must sum to the space
// size. Segment boundaries are not semantic (the map is free to re-coalesce
// on load), only the per-byte values are.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	iou "github.com/akmistry/go-util/io"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/akmistry/memstate/rangemap"
)

const (
	Magic = "memstatesnap\x31\x41\x59\x26"

	FormatVersion = 1

	fieldVersion      = protowire.Number(1)
	fieldSpaceSize    = protowire.Number(2)
	fieldSegmentCount = protowire.Number(3)

	writeBufferSize = 64 * 1024

	// Headers are three small varint fields; anything bigger is corrupt.
	maxHeaderSize = 1024
)

func init() {
	if len(Magic) != 16 {
		panic("len(Magic) != 16")
	}
}

// Write serializes |m| to |w|.
func Write[V comparable](w io.Writer, m *rangemap.Map[V], codec Codec[V]) error {
	bw := bufio.NewWriterSize(w, writeBufferSize)
	crc := crc32.NewIEEE()
	cw := io.MultiWriter(bw, crc)

	header := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	header = protowire.AppendVarint(header, FormatVersion)
	header = protowire.AppendTag(header, fieldSpaceSize, protowire.VarintType)
	header = protowire.AppendVarint(header, m.Size())
	header = protowire.AppendTag(header, fieldSegmentCount, protowire.VarintType)
	header = protowire.AppendVarint(header, uint64(m.SegmentCount()))

	var headerSize [4]byte
	binary.LittleEndian.PutUint32(headerSize[:], uint32(len(header)))
	_, err := iou.WriteMany(cw, []byte(Magic), headerSize[:], header)
	if err != nil {
		return err
	}

	var recBuf []byte
	m.Iter(0, m.Size(), func(r rangemap.Range, v V) bool {
		recBuf = protowire.AppendVarint(recBuf[:0], r.Length)
		recBuf = codec.AppendValue(recBuf, v)
		_, err = cw.Write(recBuf)
		return err == nil
	})
	if err != nil {
		return err
	}

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], crc.Sum32())
	if _, err := bw.Write(footer[:]); err != nil {
		return err
	}
	return bw.Flush()
}
