package nullmodel

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/tensorplex-labs/novelty/internal/sparse"
)

const (
	checkpointMagic   uint32 = 0x4e56434b // "NVCK"
	checkpointVersion uint32 = 1
	checkpointHeader         = 4 + 4 + 8 + 8 + 8 + 4
)

// checkpoint is the resumable state of an accumulation: statistics for the
// first Cursor coordinates of the sorted coordinate union.
type checkpoint struct {
	Fingerprint uint64
	Total       uint64 // size of the coordinate union
	Samples     uint32
	Mean        []float64
	SD          []float64
}

func (c *checkpoint) Cursor() int {
	return len(c.Mean)
}

func (c *checkpoint) marshal() []byte {
	n := len(c.Mean)
	buf := make([]byte, checkpointHeader+16*n+4)
	binary.LittleEndian.PutUint32(buf[0:4], checkpointMagic)
	binary.LittleEndian.PutUint32(buf[4:8], checkpointVersion)
	binary.LittleEndian.PutUint64(buf[8:16], c.Fingerprint)
	binary.LittleEndian.PutUint64(buf[16:24], c.Total)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(n))
	binary.LittleEndian.PutUint32(buf[32:36], c.Samples)
	off := checkpointHeader
	for k := range n {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(c.Mean[k]))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(c.SD[k]))
		off += 16
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return sparse.Compress(buf)
}

func unmarshalCheckpoint(data []byte) (*checkpoint, error) {
	buf, err := sparse.Decompress(data)
	if err != nil {
		return nil, pkgerrors.Wrap(ErrCorruptCheckpoint, err.Error())
	}
	if len(buf) < checkpointHeader+4 {
		return nil, pkgerrors.Wrap(ErrCorruptCheckpoint, "short checkpoint")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != checkpointMagic ||
		binary.LittleEndian.Uint32(buf[4:8]) != checkpointVersion {
		return nil, pkgerrors.Wrap(ErrCorruptCheckpoint, "bad header")
	}
	n := binary.LittleEndian.Uint64(buf[24:32])
	end := checkpointHeader + 16*int(n)
	if len(buf) != end+4 {
		return nil, pkgerrors.Wrap(ErrCorruptCheckpoint, "length does not match cursor")
	}
	if binary.LittleEndian.Uint32(buf[end:]) != crc32.ChecksumIEEE(buf[:end]) {
		return nil, pkgerrors.Wrap(ErrCorruptCheckpoint, "checksum mismatch")
	}

	c := &checkpoint{
		Fingerprint: binary.LittleEndian.Uint64(buf[8:16]),
		Total:       binary.LittleEndian.Uint64(buf[16:24]),
		Samples:     binary.LittleEndian.Uint32(buf[32:36]),
		Mean:        make([]float64, n),
		SD:          make([]float64, n),
	}
	off := checkpointHeader
	for k := range c.Mean {
		c.Mean[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		c.SD[k] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:]))
		off += 16
	}
	return c, nil
}
