package las

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/waveform.report/internal/monitoring"
)

// VLRHeader is the 54 byte header that precedes every variable length record.
type VLRHeader struct {
	Reserved      uint16
	UserID        [16]byte
	RecordID      uint16
	PayloadLength uint16
	Description   [32]byte
}

// User returns the user identifier without NUL padding.
func (v *VLRHeader) User() string {
	return string(bytes.TrimRight(v.UserID[:], "\x00"))
}

// DecodeVLRHeader maps a 54 byte buffer onto a VLRHeader.
func DecodeVLRHeader(buf []byte) (VLRHeader, error) {
	var v VLRHeader
	if len(buf) < VLRHeaderSize {
		return v, fmt.Errorf("invalid VLR header length: expected %d, got %d", VLRHeaderSize, len(buf))
	}
	le := binary.LittleEndian
	v.Reserved = le.Uint16(buf[0:])
	copy(v.UserID[:], buf[2:18])
	v.RecordID = le.Uint16(buf[18:])
	v.PayloadLength = le.Uint16(buf[20:])
	copy(v.Description[:], buf[22:54])
	return v, nil
}

// Encode returns the 54 byte wire form of v.
func (v *VLRHeader) Encode() []byte {
	buf := make([]byte, VLRHeaderSize)
	le := binary.LittleEndian
	le.PutUint16(buf[0:], v.Reserved)
	copy(buf[2:18], v.UserID[:])
	le.PutUint16(buf[18:], v.RecordID)
	le.PutUint16(buf[20:], v.PayloadLength)
	copy(buf[22:54], v.Description[:])
	return buf
}

// WaveformDescriptor describes how waveform packets are sampled. Files
// may carry several descriptors; only the last one read is kept.
type WaveformDescriptor struct {
	RecordID        uint16
	BitsPerSample   uint8
	Compression     uint8
	NumSamples      uint32
	SpacingPs       uint32
	DigitizerGain   float64
	DigitizerOffset float64
}

// SpacingNs returns the temporal sample spacing in nanoseconds.
func (d WaveformDescriptor) SpacingNs() float64 {
	return float64(d.SpacingPs) / 1000
}

// DecodeWaveformDescriptor maps a 26 byte payload onto a descriptor.
func DecodeWaveformDescriptor(buf []byte) (WaveformDescriptor, error) {
	var d WaveformDescriptor
	if len(buf) < DescriptorSize {
		return d, fmt.Errorf("invalid waveform descriptor length: expected %d, got %d", DescriptorSize, len(buf))
	}
	le := binary.LittleEndian
	d.BitsPerSample = buf[0]
	d.Compression = buf[1]
	d.NumSamples = le.Uint32(buf[2:])
	d.SpacingPs = le.Uint32(buf[6:])
	d.DigitizerGain = readFloat64(buf[10:])
	d.DigitizerOffset = readFloat64(buf[18:])
	return d, nil
}

// Encode returns the 26 byte wire form of d.
func (d WaveformDescriptor) Encode() []byte {
	buf := make([]byte, DescriptorSize)
	le := binary.LittleEndian
	buf[0] = d.BitsPerSample
	buf[1] = d.Compression
	le.PutUint32(buf[2:], d.NumSamples)
	le.PutUint32(buf[6:], d.SpacingPs)
	putFloat64(buf[10:], d.DigitizerGain)
	putFloat64(buf[18:], d.DigitizerOffset)
	return buf
}

// MissionInfo holds the mission record fields that decode reliably. The
// record advertises 26 bytes but writers store fewer, so only the fields
// that fit in the payload are filled.
type MissionInfo struct {
	PulseRateHz      int32
	ScanRateDeciHz   int16
	AltitudeM        int16
	GPSWeek          int16
	GPSSecondsOfWeek int32
	PayloadLength    int
}

// DecodeMissionInfo decodes whatever reliable fields fit into buf.
func DecodeMissionInfo(buf []byte) MissionInfo {
	le := binary.LittleEndian
	m := MissionInfo{PayloadLength: len(buf)}
	if len(buf) >= 4 {
		m.PulseRateHz = int32(le.Uint32(buf[0:]))
	}
	if len(buf) >= 10 {
		m.ScanRateDeciHz = int16(le.Uint16(buf[8:]))
	}
	if len(buf) >= 12 {
		m.AltitudeM = int16(le.Uint16(buf[10:]))
	}
	if len(buf) >= 14 {
		m.GPSWeek = int16(le.Uint16(buf[12:]))
	}
	if len(buf) >= MissionInfoMaxLength {
		m.GPSSecondsOfWeek = int32(le.Uint32(buf[14:]))
	}
	return m
}

// Metadata collects everything decoded from the variable length records.
type Metadata struct {
	Records    []VLRHeader
	Histogram  []int32
	Mission    *MissionInfo
	Descriptor *WaveformDescriptor
}

// ParseVariableLengthRecords walks h.NumVLRs records starting right after
// the header. On return the cursor sits at h.OffsetToPointData.
func ParseVariableLengthRecords(r *Reader, h Header) (Metadata, error) {
	var md Metadata
	if err := r.Seek(int64(h.HeaderSize)); err != nil {
		return md, err
	}
	limit := int64(h.OffsetToPointData)
	hdrBuf := make([]byte, VLRHeaderSize)

	for i := uint32(0); i < h.NumVLRs; i++ {
		if r.Pos()+VLRHeaderSize > limit {
			return md, fmt.Errorf("%w: record %d header at %d", ErrVLROverrun, i, r.Pos())
		}
		if err := r.ReadFull(hdrBuf); err != nil {
			return md, fmt.Errorf("failed to read VLR %d header: %w", i, err)
		}
		vh, err := DecodeVLRHeader(hdrBuf)
		if err != nil {
			return md, err
		}
		md.Records = append(md.Records, vh)

		n := int64(vh.PayloadLength)
		if r.Pos()+n > limit {
			return md, fmt.Errorf("%w: record %d (id %d) payload of %d bytes at %d", ErrVLROverrun, i, vh.RecordID, n, r.Pos())
		}
		if !wantsPayload(vh.RecordID) {
			if err := r.Skip(n); err != nil {
				return md, err
			}
			continue
		}
		payload := make([]byte, n)
		if err := r.ReadFull(payload); err != nil {
			return md, fmt.Errorf("failed to read VLR %d payload: %w", i, err)
		}
		if err := md.apply(vh, payload); err != nil {
			return md, err
		}
	}

	if pos := r.Pos(); pos < limit {
		monitoring.Logf("[las] %d bytes of padding between VLRs and point data", limit-pos)
	}
	if err := r.Seek(limit); err != nil {
		return md, err
	}
	return md, nil
}

func wantsPayload(id uint16) bool {
	switch {
	case id == RecordHistogram, id == RecordMissionInfo:
		return true
	case id >= RecordDescriptorMin && id <= RecordDescriptorMax:
		return true
	}
	return false
}

func (md *Metadata) apply(vh VLRHeader, payload []byte) error {
	switch {
	case vh.RecordID == RecordHistogram:
		hist := make([]int32, len(payload)/4)
		for i := range hist {
			hist[i] = int32(binary.LittleEndian.Uint32(payload[4*i:]))
		}
		md.Histogram = hist
	case vh.RecordID == RecordMissionInfo:
		mi := DecodeMissionInfo(payload)
		md.Mission = &mi
	case vh.RecordID >= RecordDescriptorMin && vh.RecordID <= RecordDescriptorMax:
		d, err := DecodeWaveformDescriptor(payload)
		if err != nil {
			return fmt.Errorf("record %d: %w", vh.RecordID, err)
		}
		if d.Compression != 0 {
			return fmt.Errorf("%w: type %d in record %d", ErrUnsupportedCompression, d.Compression, vh.RecordID)
		}
		d.RecordID = vh.RecordID
		md.Descriptor = &d
	}
	return nil
}

// RequireDescriptor returns the active waveform descriptor or
// ErrMissingDescriptor when the file declared none.
func (md *Metadata) RequireDescriptor() (WaveformDescriptor, error) {
	if md.Descriptor == nil {
		return WaveformDescriptor{}, ErrMissingDescriptor
	}
	return *md.Descriptor, nil
}
