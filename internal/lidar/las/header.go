package las

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Header is the LAS 1.3 public header block.
type Header struct {
	Signature          [4]byte
	FileSourceID       uint16
	GlobalEncoding     uint16
	ProjectID          [16]byte
	VersionMajor       uint8
	VersionMinor       uint8
	SystemID           [32]byte
	GeneratingSoftware [32]byte
	CreationDay        uint16
	CreationYear       uint16
	HeaderSize         uint16
	OffsetToPointData  uint32
	NumVLRs            uint32
	PointFormat        uint8
	PointRecordLength  uint16
	NumPointRecords    uint32
	PointsByReturn     [5]uint32
	Scale              r3.Vec
	Offset             r3.Vec
	Bounds             r3.Box
	StartOfWaveform    uint64
}

// WaveformInternal reports whether the global encoding flags waveform
// packets as stored inside this file.
func (h *Header) WaveformInternal() bool {
	return h.GlobalEncoding&GlobalWaveformInside != 0
}

// Scaled converts raw integer coordinates into real-world coordinates.
func (h *Header) Scaled(x, y, z int32) r3.Vec {
	return r3.Vec{
		X: float64(x)*h.Scale.X + h.Offset.X,
		Y: float64(y)*h.Scale.Y + h.Offset.Y,
		Z: float64(z)*h.Scale.Z + h.Offset.Z,
	}
}

// PointRegionEnd returns the first byte after the point records. The
// waveform region bounds it when it follows the points.
func (h *Header) PointRegionEnd(fileSize int64) int64 {
	end := int64(h.OffsetToPointData) + int64(h.NumPointRecords)*int64(h.PointRecordLength)
	if w := int64(h.StartOfWaveform); w > int64(h.OffsetToPointData) && w < end {
		end = w
	}
	if end > fileSize {
		end = fileSize
	}
	return end
}

// SystemIdentifier returns the system identifier without NUL padding.
func (h *Header) SystemIdentifier() string {
	return string(bytes.TrimRight(h.SystemID[:], "\x00"))
}

// Software returns the generating software field without NUL padding.
func (h *Header) Software() string {
	return string(bytes.TrimRight(h.GeneratingSoftware[:], "\x00"))
}

// Validate rejects headers this package cannot interpret.
func (h *Header) Validate() error {
	if string(h.Signature[:]) != "LASF" {
		return fmt.Errorf("%w: got %q", ErrBadSignature, h.Signature[:])
	}
	if h.VersionMajor != VersionMajor || h.VersionMinor != VersionMinor {
		return fmt.Errorf("%w: %d.%d, expected %d.%d", ErrUnsupportedVersion, h.VersionMajor, h.VersionMinor, VersionMajor, VersionMinor)
	}
	if !h.WaveformInternal() {
		return fmt.Errorf("%w: global encoding 0x%04x", ErrExternalWaveform, h.GlobalEncoding)
	}
	if h.PointFormat != PointFormatWaveform {
		return fmt.Errorf("%w: %d, expected %d", ErrUnsupportedPointFormat, h.PointFormat, PointFormatWaveform)
	}
	if h.PointRecordLength < PointRecordSize {
		return fmt.Errorf("invalid point record length: expected at least %d, got %d", PointRecordSize, h.PointRecordLength)
	}
	if h.HeaderSize < HeaderSize {
		return fmt.Errorf("invalid header size: expected at least %d, got %d", HeaderSize, h.HeaderSize)
	}
	if h.OffsetToPointData < uint32(h.HeaderSize) {
		return fmt.Errorf("invalid offset to point data: %d is inside the %d byte header", h.OffsetToPointData, h.HeaderSize)
	}
	return nil
}

// DecodeHeader maps a 235 byte buffer onto a Header without validating it.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("invalid header length: expected %d, got %d", HeaderSize, len(buf))
	}
	le := binary.LittleEndian
	copy(h.Signature[:], buf[offSignature:])
	h.FileSourceID = le.Uint16(buf[offFileSourceID:])
	h.GlobalEncoding = le.Uint16(buf[offGlobalEncoding:])
	copy(h.ProjectID[:], buf[offProjectID:offVersionMajor])
	h.VersionMajor = buf[offVersionMajor]
	h.VersionMinor = buf[offVersionMinor]
	copy(h.SystemID[:], buf[offSystemID:offSoftware])
	copy(h.GeneratingSoftware[:], buf[offSoftware:offCreationDay])
	h.CreationDay = le.Uint16(buf[offCreationDay:])
	h.CreationYear = le.Uint16(buf[offCreationYear:])
	h.HeaderSize = le.Uint16(buf[offHeaderSize:])
	h.OffsetToPointData = le.Uint32(buf[offPointData:])
	h.NumVLRs = le.Uint32(buf[offNumVLRs:])
	h.PointFormat = buf[offPointFormat]
	h.PointRecordLength = le.Uint16(buf[offPointRecordLen:])
	h.NumPointRecords = le.Uint32(buf[offNumPoints:])
	for i := range h.PointsByReturn {
		h.PointsByReturn[i] = le.Uint32(buf[offPointsByReturn+4*i:])
	}
	h.Scale = readVec(buf[offScale:])
	h.Offset = readVec(buf[offOffset:])
	h.Bounds = r3.Box{
		Min: r3.Vec{X: readFloat64(buf[offMinX:]), Y: readFloat64(buf[offMinY:]), Z: readFloat64(buf[offMinZ:])},
		Max: r3.Vec{X: readFloat64(buf[offMaxX:]), Y: readFloat64(buf[offMaxY:]), Z: readFloat64(buf[offMaxZ:])},
	}
	h.StartOfWaveform = le.Uint64(buf[offStartOfWaveform:])
	return h, nil
}

// Encode returns the 235 byte wire form of h.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	le := binary.LittleEndian
	copy(buf[offSignature:], h.Signature[:])
	le.PutUint16(buf[offFileSourceID:], h.FileSourceID)
	le.PutUint16(buf[offGlobalEncoding:], h.GlobalEncoding)
	copy(buf[offProjectID:], h.ProjectID[:])
	buf[offVersionMajor] = h.VersionMajor
	buf[offVersionMinor] = h.VersionMinor
	copy(buf[offSystemID:], h.SystemID[:])
	copy(buf[offSoftware:], h.GeneratingSoftware[:])
	le.PutUint16(buf[offCreationDay:], h.CreationDay)
	le.PutUint16(buf[offCreationYear:], h.CreationYear)
	le.PutUint16(buf[offHeaderSize:], h.HeaderSize)
	le.PutUint32(buf[offPointData:], h.OffsetToPointData)
	le.PutUint32(buf[offNumVLRs:], h.NumVLRs)
	buf[offPointFormat] = h.PointFormat
	le.PutUint16(buf[offPointRecordLen:], h.PointRecordLength)
	le.PutUint32(buf[offNumPoints:], h.NumPointRecords)
	for i, n := range h.PointsByReturn {
		le.PutUint32(buf[offPointsByReturn+4*i:], n)
	}
	putVec(buf[offScale:], h.Scale)
	putVec(buf[offOffset:], h.Offset)
	putFloat64(buf[offMaxX:], h.Bounds.Max.X)
	putFloat64(buf[offMinX:], h.Bounds.Min.X)
	putFloat64(buf[offMaxY:], h.Bounds.Max.Y)
	putFloat64(buf[offMinY:], h.Bounds.Min.Y)
	putFloat64(buf[offMaxZ:], h.Bounds.Max.Z)
	putFloat64(buf[offMinZ:], h.Bounds.Min.Z)
	le.PutUint64(buf[offStartOfWaveform:], h.StartOfWaveform)
	return buf
}

// ParseHeader reads and validates the public header at file position 0.
// Any failure here is fatal for the whole file.
func ParseHeader(r *Reader) (Header, error) {
	if err := r.Seek(0); err != nil {
		return Header{}, err
	}
	buf := make([]byte, HeaderSize)
	if err := r.ReadFull(buf); err != nil {
		return Header{}, fmt.Errorf("failed to read header: %w", err)
	}
	h, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

func readFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func putFloat64(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func readVec(b []byte) r3.Vec {
	return r3.Vec{X: readFloat64(b), Y: readFloat64(b[8:]), Z: readFloat64(b[16:])}
}

func putVec(b []byte, v r3.Vec) {
	putFloat64(b, v.X)
	putFloat64(b[8:], v.Y)
	putFloat64(b[16:], v.Z)
}
