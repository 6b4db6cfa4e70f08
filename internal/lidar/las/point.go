package las

import (
	"encoding/binary"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReturnByte is the packed byte at offset 14 of a point record.
//
//	bits 0-2  return number
//	bits 3-5  number of returns for the pulse
//	bit  6    scan direction
//	bit  7    edge of flight line
//
// Some historical readers took the return count from bits 0-2 as well;
// that mask is wrong and is not supported here.
type ReturnByte uint8

func (b ReturnByte) ReturnNumber() uint8     { return uint8(b) & 0x07 }
func (b ReturnByte) ReturnCount() uint8      { return (uint8(b) >> 3) & 0x07 }
func (b ReturnByte) ScanDirection() uint8    { return (uint8(b) >> 6) & 0x01 }
func (b ReturnByte) EdgeOfFlightLine() uint8 { return (uint8(b) >> 7) & 0x01 }

// PackReturnByte builds the packed byte from its fields. Values wider than
// their bit field are masked.
func PackReturnByte(returnNumber, returnCount, scanDirection, edge uint8) ReturnByte {
	return ReturnByte(returnNumber&0x07 | (returnCount&0x07)<<3 | (scanDirection&0x01)<<6 | (edge&0x01)<<7)
}

// PointRecord is one Format 4 point record. Coordinates are the raw
// integers from the file; Header.Scaled converts them.
type PointRecord struct {
	X, Y, Z          int32
	Intensity        uint16
	ReturnNumber     uint8
	ReturnCount      uint8
	ScanDirection    uint8
	EdgeOfFlightLine uint8
	Classification   uint8
	ScanAngle        int8
	UserData         uint8
	Gain             uint8
	PointSourceID    uint8
	GPSTime          float64
	PacketIndex      uint8  // waveform descriptor index, 0 means no waveform
	WaveformOffset   uint64 // relative to the start of the waveform region
	PacketSize       uint32 // waveform packet size in bytes
	ReturnLocationPs float32
	DirX, DirY, DirZ float32 // parametric beam derivative, distance per picosecond
}

// ReturnByte re-packs the return fields of p.
func (p *PointRecord) ReturnByte() ReturnByte {
	return PackReturnByte(p.ReturnNumber, p.ReturnCount, p.ScanDirection, p.EdgeOfFlightLine)
}

// HasWaveform reports whether p references a waveform packet.
func (p *PointRecord) HasWaveform() bool { return p.PacketIndex != 0 }

// IsFirstReturn reports whether p is the first return of its pulse.
func (p *PointRecord) IsFirstReturn() bool { return p.ReturnNumber == 1 }

// Direction returns the beam derivative as a vector.
func (p *PointRecord) Direction() r3.Vec {
	return r3.Vec{X: float64(p.DirX), Y: float64(p.DirY), Z: float64(p.DirZ)}
}

// DecodePointRecord maps a 57 byte buffer onto a PointRecord.
func DecodePointRecord(buf []byte) (PointRecord, error) {
	var p PointRecord
	if len(buf) < PointRecordSize {
		return p, fmt.Errorf("invalid point record length: expected %d, got %d", PointRecordSize, len(buf))
	}
	le := binary.LittleEndian
	p.X = int32(le.Uint32(buf[offPtX:]))
	p.Y = int32(le.Uint32(buf[offPtY:]))
	p.Z = int32(le.Uint32(buf[offPtZ:]))
	p.Intensity = le.Uint16(buf[offPtIntensity:])

	rb := ReturnByte(buf[offPtReturnByte])
	p.ReturnNumber = rb.ReturnNumber()
	p.ReturnCount = rb.ReturnCount()
	p.ScanDirection = rb.ScanDirection()
	p.EdgeOfFlightLine = rb.EdgeOfFlightLine()

	p.Classification = buf[offPtClass]
	p.ScanAngle = int8(buf[offPtScanAngle])
	p.UserData = buf[offPtUserData]
	p.Gain = buf[offPtGain]
	p.PointSourceID = buf[offPtSourceID]
	p.GPSTime = readFloat64(buf[offPtGPSTime:])
	p.PacketIndex = buf[offPtPacketIndex]
	p.WaveformOffset = le.Uint64(buf[offPtWaveformOffset:])
	p.PacketSize = le.Uint32(buf[offPtPacketSize:])
	p.ReturnLocationPs = readFloat32(buf[offPtReturnLocation:])
	p.DirX = readFloat32(buf[offPtDirX:])
	p.DirY = readFloat32(buf[offPtDirY:])
	p.DirZ = readFloat32(buf[offPtDirZ:])
	return p, nil
}

// Encode returns the 57 byte wire form of p.
func (p *PointRecord) Encode() []byte {
	buf := make([]byte, PointRecordSize)
	le := binary.LittleEndian
	le.PutUint32(buf[offPtX:], uint32(p.X))
	le.PutUint32(buf[offPtY:], uint32(p.Y))
	le.PutUint32(buf[offPtZ:], uint32(p.Z))
	le.PutUint16(buf[offPtIntensity:], p.Intensity)
	buf[offPtReturnByte] = byte(p.ReturnByte())
	buf[offPtClass] = p.Classification
	buf[offPtScanAngle] = byte(p.ScanAngle)
	buf[offPtUserData] = p.UserData
	buf[offPtGain] = p.Gain
	buf[offPtSourceID] = p.PointSourceID
	putFloat64(buf[offPtGPSTime:], p.GPSTime)
	buf[offPtPacketIndex] = p.PacketIndex
	le.PutUint64(buf[offPtWaveformOffset:], p.WaveformOffset)
	le.PutUint32(buf[offPtPacketSize:], p.PacketSize)
	putFloat32(buf[offPtReturnLocation:], p.ReturnLocationPs)
	putFloat32(buf[offPtDirX:], p.DirX)
	putFloat32(buf[offPtDirY:], p.DirY)
	putFloat32(buf[offPtDirZ:], p.DirZ)
	return buf
}

// PointDecoder reads successive point records from a Reader. Its buffer
// is reused between calls.
type PointDecoder struct {
	r   *Reader
	buf []byte
}

// NewPointDecoder returns a decoder for records of recordLength bytes.
// Bytes past the first 57 of each record are read and ignored.
func NewPointDecoder(r *Reader, recordLength int) *PointDecoder {
	if recordLength < PointRecordSize {
		recordLength = PointRecordSize
	}
	return &PointDecoder{r: r, buf: make([]byte, recordLength)}
}

// RecordLength returns the on-disk record size consumed per call.
func (d *PointDecoder) RecordLength() int { return len(d.buf) }

// Decode reads one record at the cursor. Running out of bytes yields an
// error matching ErrShortRecord, which callers treat as end of region.
func (d *PointDecoder) Decode() (PointRecord, error) {
	if err := d.r.ReadFull(d.buf); err != nil {
		return PointRecord{}, err
	}
	return DecodePointRecord(d.buf)
}
