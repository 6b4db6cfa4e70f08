package las

import (
	"errors"
	"io"
)

// Record sizes in bytes. None of the layouts carry padding.
const (
	HeaderSize           = 235
	VLRHeaderSize        = 54
	PointRecordSize      = 57
	DescriptorSize       = 26
	WaveformEVLRSize     = 60 // extended VLR header preceding the waveform region
	PointFormatWaveform  = 4
	VersionMajor         = 1
	VersionMinor         = 3
	GlobalWaveformInside = 1 << 1 // global encoding bit: waveform data stored internally
)

// Variable length record IDs recognised by ParseVariableLengthRecords.
const (
	RecordHistogram      = 1001
	RecordMissionInfo    = 1002
	RecordUserInputs     = 1003
	RecordDescriptorMin  = 100
	RecordDescriptorMax  = 355
	MissionInfoMaxLength = 18 // bytes of the mission record that decode reliably
)

// Public header field offsets.
const (
	offSignature       = 0
	offFileSourceID    = 4
	offGlobalEncoding  = 6
	offProjectID       = 8
	offVersionMajor    = 24
	offVersionMinor    = 25
	offSystemID        = 26
	offSoftware        = 58
	offCreationDay     = 90
	offCreationYear    = 92
	offHeaderSize      = 94
	offPointData       = 96
	offNumVLRs         = 100
	offPointFormat     = 104
	offPointRecordLen  = 105
	offNumPoints       = 107
	offPointsByReturn  = 111
	offScale           = 131
	offOffset          = 155
	offMaxX            = 179
	offMinX            = 187
	offMaxY            = 195
	offMinY            = 203
	offMaxZ            = 211
	offMinZ            = 219
	offStartOfWaveform = 227
)

// Point record field offsets.
const (
	offPtX              = 0
	offPtY              = 4
	offPtZ              = 8
	offPtIntensity      = 12
	offPtReturnByte     = 14
	offPtClass          = 15
	offPtScanAngle      = 16
	offPtUserData       = 17
	offPtGain           = 18
	offPtSourceID       = 19
	offPtGPSTime        = 20
	offPtPacketIndex    = 28
	offPtWaveformOffset = 29
	offPtPacketSize     = 37
	offPtReturnLocation = 41
	offPtDirX           = 45
	offPtDirY           = 49
	offPtDirZ           = 53
)

// Fatal header and metadata errors. Files that trip one of these cannot be
// interpreted by this package.
var (
	ErrBadSignature           = errors.New("las: file signature is not LASF")
	ErrUnsupportedVersion     = errors.New("las: unsupported version")
	ErrExternalWaveform       = errors.New("las: waveform data is not stored internally")
	ErrUnsupportedPointFormat = errors.New("las: unsupported point data format")
	ErrUnsupportedCompression = errors.New("las: unsupported waveform compression")
	ErrMissingDescriptor      = errors.New("las: no waveform packet descriptor")
	ErrVLROverrun             = errors.New("las: variable length records overrun point data")
)

// ErrShortRecord reports that fewer bytes remained than a full record.
// Scans treat it as the end of the point region.
var ErrShortRecord = errors.New("las: short record")

type shortReadError struct {
	err error
}

func (e *shortReadError) Error() string { return ErrShortRecord.Error() + ": " + e.err.Error() }

func (e *shortReadError) Is(target error) bool { return target == ErrShortRecord }

func (e *shortReadError) Unwrap() error { return e.err }

func isShortRead(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
