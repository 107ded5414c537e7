package sparse

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"

	"github.com/klauspost/compress/zstd"
	pkgerrors "github.com/pkg/errors"
)

const (
	magic         uint32 = 0x4e56534d // "NVSM"
	formatVersion uint32 = 1
	headerSize           = 4 + 4 + 4 + 1 + 8 + 8
	cellSize             = 4 + 4 + 8
	footerSize           = 4
)

var ErrCorrupt = errors.New("sparse matrix payload is corrupt")

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

// MarshalBinary encodes the matrix as a checksummed, zstd-compressed blob.
// Identical matrices always encode to identical bytes.
func (m *Matrix) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize+cellSize*len(m.Coords)+footerSize)
	binary.LittleEndian.PutUint32(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(m.N))
	var flags byte
	if m.Policy.Weighted {
		flags |= 1
	}
	if m.Policy.KeepDiag {
		flags |= 2
	}
	buf[12] = flags
	binary.LittleEndian.PutUint64(buf[13:21], m.Fingerprint)
	binary.LittleEndian.PutUint64(buf[21:29], uint64(len(m.Coords)))

	off := headerSize
	for k, c := range m.Coords {
		binary.LittleEndian.PutUint32(buf[off:], uint32(c.I))
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(c.J))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(m.Values[k]))
		off += cellSize
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))

	return encoder.EncodeAll(buf, nil), nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (m *Matrix) UnmarshalBinary(data []byte) error {
	buf, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return pkgerrors.Wrap(ErrCorrupt, err.Error())
	}
	if len(buf) < headerSize+footerSize {
		return pkgerrors.Wrap(ErrCorrupt, "short payload")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return pkgerrors.Wrap(ErrCorrupt, "bad magic")
	}
	if v := binary.LittleEndian.Uint32(buf[4:8]); v != formatVersion {
		return pkgerrors.Wrapf(ErrCorrupt, "unsupported format version %d", v)
	}
	nnz := binary.LittleEndian.Uint64(buf[21:29])
	end := headerSize + cellSize*int(nnz)
	if len(buf) != end+footerSize {
		return pkgerrors.Wrap(ErrCorrupt, "length does not match cell count")
	}
	if binary.LittleEndian.Uint32(buf[end:]) != crc32.ChecksumIEEE(buf[:end]) {
		return pkgerrors.Wrap(ErrCorrupt, "checksum mismatch")
	}

	m.N = int(binary.LittleEndian.Uint32(buf[8:12]))
	m.Policy = Policy{Weighted: buf[12]&1 != 0, KeepDiag: buf[12]&2 != 0}
	m.Fingerprint = binary.LittleEndian.Uint64(buf[13:21])
	m.Coords = make([]Coord, nnz)
	m.Values = make([]float64, nnz)
	off := headerSize
	for k := range m.Coords {
		m.Coords[k] = Coord{
			I: int32(binary.LittleEndian.Uint32(buf[off:])),
			J: int32(binary.LittleEndian.Uint32(buf[off+4:])),
		}
		m.Values[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:]))
		off += cellSize
	}
	return nil
}

// Compress and Decompress expose the codec's zstd framing for other
// artifacts (universes, checkpoints).
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, nil)
}

func Decompress(data []byte) ([]byte, error) {
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrCorrupt, err.Error())
	}
	return out, nil
}
