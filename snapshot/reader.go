package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/akmistry/go-util/bufferpool"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/akmistry/memstate/rangemap"
)

var (
	ErrInvalidMagic     = errors.New("snapshot: invalid magic")
	ErrInvalidFormat    = errors.New("snapshot: invalid format")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
)

// Read parses a snapshot from |r| and rebuilds the map it describes.
func Read[V comparable](r io.Reader, codec Codec[V]) (*rangemap.Map[V], error) {
	prefix := make([]byte, len(Magic)+4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	if !bytes.Equal(prefix[:len(Magic)], []byte(Magic)) {
		return nil, ErrInvalidMagic
	}
	headerSize := binary.LittleEndian.Uint32(prefix[len(Magic):])
	if headerSize == 0 || headerSize > maxHeaderSize {
		return nil, ErrInvalidFormat
	}

	hb := bufferpool.GetBuffer(int(headerSize))
	defer bufferpool.PutBuffer(hb)
	headerBuf := hb.AvailableBuffer()[:headerSize]
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, err
	}

	crc := crc32.NewIEEE()
	crc.Write(prefix)
	crc.Write(headerBuf)

	var version, spaceSize, segCount uint64
	b := headerBuf
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrInvalidFormat
		}
		b = b[n:]
		if typ != protowire.VarintType {
			return nil, ErrInvalidFormat
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, ErrInvalidFormat
		}
		b = b[n:]
		switch num {
		case fieldVersion:
			version = v
		case fieldSpaceSize:
			spaceSize = v
		case fieldSegmentCount:
			segCount = v
		default:
			// Ignore unknown fields, for forward compatibility.
		}
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d", version)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, ErrInvalidFormat
	}
	records := rest[:len(rest)-4]
	crc.Write(records)
	if binary.LittleEndian.Uint32(rest[len(rest)-4:]) != crc.Sum32() {
		return nil, ErrChecksumMismatch
	}

	var m *rangemap.Map[V]
	off := uint64(0)
	count := uint64(0)
	for len(records) > 0 {
		length, n := protowire.ConsumeVarint(records)
		if n < 0 {
			return nil, ErrInvalidFormat
		}
		records = records[n:]
		v, vn, err := codec.DecodeValue(records)
		if err != nil {
			return nil, err
		}
		records = records[vn:]

		// Records must tile [0, spaceSize) exactly.
		if length == 0 || off+length < off || off+length > spaceSize {
			return nil, ErrInvalidFormat
		}
		if m == nil {
			// The first record's value seeds the whole space; later records
			// overwrite their windows, so every byte ends up covered.
			m = rangemap.New[V](spaceSize, v)
		} else {
			m.IterMut(off, length, func(r rangemap.Range, p *V) bool {
				*p = v
				return true
			})
		}
		off += length
		count++
	}
	if off != spaceSize || count != segCount {
		return nil, ErrInvalidFormat
	}
	if m == nil {
		if spaceSize != 0 {
			return nil, ErrInvalidFormat
		}
		var zero V
		m = rangemap.New[V](0, zero)
	}
	return m, nil
}
