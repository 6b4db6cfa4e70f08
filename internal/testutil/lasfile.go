// Package testutil builds complete LAS 1.3 Format 4 files in memory for
// tests across the decoder, scanner, exporters and store.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
)

// RawVLR is a variable length record written verbatim by LASBuilder.
type RawVLR struct {
	RecordID uint16
	Payload  []byte
}

// LASBuilder assembles a LAS 1.3 file with Format 4 points and an
// internal waveform region. The zero value is not usable; call
// NewLASBuilder.
type LASBuilder struct {
	Header     las.Header
	Descriptor las.WaveformDescriptor
	// VLRs are written before the waveform descriptor record.
	VLRs []RawVLR
	// OmitDescriptor leaves the waveform descriptor record out.
	OmitDescriptor bool
	// Padding is inserted between the last VLR and the point records.
	Padding int
	// HeaderHook, when set, edits the finished header before encoding.
	HeaderHook func(h *las.Header)

	points    []las.PointRecord
	waveforms []byte
}

// NewLASBuilder returns a builder with centimetre scale, a 1 ns sample
// spacing and no points.
func NewLASBuilder() *LASBuilder {
	h := las.Header{
		VersionMajor:      las.VersionMajor,
		VersionMinor:      las.VersionMinor,
		GlobalEncoding:    las.GlobalWaveformInside,
		HeaderSize:        las.HeaderSize,
		PointFormat:       las.PointFormatWaveform,
		PointRecordLength: las.PointRecordSize,
		Scale:             r3.Vec{X: 0.01, Y: 0.01, Z: 0.01},
		Offset:            r3.Vec{X: 400000, Y: 300000, Z: 0},
		CreationDay:       172,
		CreationYear:      2010,
	}
	copy(h.Signature[:], "LASF")
	copy(h.SystemID[:], "testutil")
	copy(h.GeneratingSoftware[:], "waveform.report")
	return &LASBuilder{
		Header: h,
		Descriptor: las.WaveformDescriptor{
			BitsPerSample:   8,
			NumSamples:      4,
			SpacingPs:       1000,
			DigitizerGain:   1,
			DigitizerOffset: 0,
		},
	}
}

// AddWaveform appends a packet to the waveform region and returns its
// offset relative to the start of that region.
func (b *LASBuilder) AddWaveform(samples []byte) uint64 {
	off := uint64(las.WaveformEVLRSize + len(b.waveforms))
	b.waveforms = append(b.waveforms, samples...)
	return off
}

// AddPoint appends a point record and returns its index.
func (b *LASBuilder) AddPoint(p las.PointRecord) int {
	b.points = append(b.points, p)
	return len(b.points) - 1
}

// Points returns the records added so far.
func (b *LASBuilder) Points() []las.PointRecord { return b.points }

// Bytes encodes the complete file.
func (b *LASBuilder) Bytes() []byte {
	data, _ := b.Build()
	return data
}

// Build encodes the complete file and returns it with the header that
// was written.
func (b *LASBuilder) Build() ([]byte, las.Header) {
	var vlrs bytes.Buffer
	records := append([]RawVLR(nil), b.VLRs...)
	if !b.OmitDescriptor {
		records = append(records, RawVLR{RecordID: las.RecordDescriptorMin, Payload: b.Descriptor.Encode()})
	}
	for _, rec := range records {
		vh := las.VLRHeader{RecordID: rec.RecordID, PayloadLength: uint16(len(rec.Payload))}
		copy(vh.UserID[:], "testutil")
		vlrs.Write(vh.Encode())
		vlrs.Write(rec.Payload)
	}

	h := b.Header
	recLen := int(h.PointRecordLength)
	if recLen < las.PointRecordSize {
		recLen = las.PointRecordSize
	}
	h.NumVLRs = uint32(len(records))
	h.OffsetToPointData = uint32(int(h.HeaderSize) + vlrs.Len() + b.Padding)
	h.NumPointRecords = uint32(len(b.points))
	h.StartOfWaveform = uint64(int(h.OffsetToPointData) + recLen*len(b.points))
	h.PointsByReturn = [5]uint32{}
	for _, p := range b.points {
		if p.ReturnNumber >= 1 && p.ReturnNumber <= 5 {
			h.PointsByReturn[p.ReturnNumber-1]++
		}
	}
	h.Bounds = pointBounds(&h, b.points)
	if b.HeaderHook != nil {
		b.HeaderHook(&h)
	}

	var out bytes.Buffer
	out.Write(h.Encode())
	if pad := int(h.HeaderSize) - las.HeaderSize; pad > 0 {
		out.Write(make([]byte, pad))
	}
	out.Write(vlrs.Bytes())
	out.Write(make([]byte, b.Padding))
	for i := range b.points {
		rec := b.points[i].Encode()
		out.Write(rec)
		if extra := recLen - len(rec); extra > 0 {
			out.Write(make([]byte, extra))
		}
	}
	evlr := make([]byte, las.WaveformEVLRSize)
	copy(evlr[2:], "LASF_Spec")
	out.Write(evlr)
	out.Write(b.waveforms)
	return out.Bytes(), h
}

// Reader returns the encoded file as an io.ReadSeeker.
func (b *LASBuilder) Reader() *bytes.Reader {
	return bytes.NewReader(b.Bytes())
}

// WriteFile writes the encoded file into dir and returns its path.
func (b *LASBuilder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write LAS fixture: %v", err)
	}
	return path
}

func pointBounds(h *las.Header, pts []las.PointRecord) r3.Box {
	if len(pts) == 0 {
		return r3.Box{Min: h.Offset, Max: h.Offset}
	}
	first := h.Scaled(pts[0].X, pts[0].Y, pts[0].Z)
	box := r3.Box{Min: first, Max: first}
	for _, p := range pts[1:] {
		v := h.Scaled(p.X, p.Y, p.Z)
		box.Min = r3.Vec{X: min(box.Min.X, v.X), Y: min(box.Min.Y, v.Y), Z: min(box.Min.Z, v.Z)}
		box.Max = r3.Vec{X: max(box.Max.X, v.X), Y: max(box.Max.Y, v.Y), Z: max(box.Max.Z, v.Z)}
	}
	return box
}

// WaveformReturn returns a Format 4 record that references a waveform
// packet at offset with size bytes. The beam points down and to the
// north-east and return n sits 2n ns into the packet.
func WaveformReturn(x, y, z int32, ret, count uint8, offset uint64, size uint32) las.PointRecord {
	return las.PointRecord{
		X: x, Y: y, Z: z,
		Intensity:        uint16(100 * ret),
		ReturnNumber:     ret,
		ReturnCount:      count,
		Classification:   1,
		GPSTime:          86400.25 + float64(x)/1e6,
		PacketIndex:      1,
		WaveformOffset:   offset,
		PacketSize:       size,
		ReturnLocationPs: 2000 * float32(ret),
		DirX:             0.00002,
		DirY:             0.00003,
		DirZ:             -0.00015,
	}
}

// DiscreteReturn returns a Format 4 record with no waveform.
func DiscreteReturn(x, y, z int32, class uint8) las.PointRecord {
	return las.PointRecord{
		X: x, Y: y, Z: z,
		Intensity:      50,
		ReturnNumber:   1,
		ReturnCount:    1,
		Classification: class,
		GPSTime:        86400.5,
	}
}
