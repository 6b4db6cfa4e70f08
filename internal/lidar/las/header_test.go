package las_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
	"github.com/banshee-data/waveform.report/internal/monitoring"
	"github.com/banshee-data/waveform.report/internal/testutil"
)

func openFixture(t *testing.T, b *testutil.LASBuilder) *las.Reader {
	t.Helper()
	r, err := las.NewReader(b.Reader())
	require.NoError(t, err)
	return r
}

func TestParseHeader(t *testing.T) {
	t.Parallel()
	b := testutil.NewLASBuilder()
	b.AddPoint(testutil.DiscreteReturn(100, 200, 300, 2))
	b.AddPoint(testutil.DiscreteReturn(-100, 400, 100, 2))
	data, want := b.Build()

	r, err := las.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.Size())

	h, err := las.ParseHeader(r)
	require.NoError(t, err)
	assert.Equal(t, want, h)
	assert.Equal(t, int64(las.HeaderSize), r.Pos())
	assert.True(t, h.WaveformInternal())
	assert.Equal(t, "testutil", h.SystemIdentifier())
	assert.Equal(t, "waveform.report", h.Software())
	assert.Equal(t, r3.Vec{X: 399999, Y: 300002, Z: 1}, h.Bounds.Min)
	assert.Equal(t, r3.Vec{X: 400001, Y: 300004, Z: 3}, h.Bounds.Max)
}

func TestParseHeaderRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		hook func(h *las.Header)
		want error
	}{
		{"signature", func(h *las.Header) { copy(h.Signature[:], "LASX") }, las.ErrBadSignature},
		{"version 1.2", func(h *las.Header) { h.VersionMinor = 2 }, las.ErrUnsupportedVersion},
		{"version 2.3", func(h *las.Header) { h.VersionMajor = 2 }, las.ErrUnsupportedVersion},
		{"external waveform", func(h *las.Header) { h.GlobalEncoding = 1 << 2 }, las.ErrExternalWaveform},
		{"point format 1", func(h *las.Header) { h.PointFormat = 1 }, las.ErrUnsupportedPointFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewLASBuilder()
			b.HeaderHook = tt.hook
			_, err := las.ParseHeader(openFixture(t, b))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseHeaderRejectsShortRecordLength(t *testing.T) {
	t.Parallel()
	b := testutil.NewLASBuilder()
	b.HeaderHook = func(h *las.Header) { h.PointRecordLength = 34 }
	_, err := las.ParseHeader(openFixture(t, b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid point record length")
}

func TestParseHeaderTruncatedFile(t *testing.T) {
	t.Parallel()
	data := testutil.NewLASBuilder().Bytes()[:100]
	r, err := las.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = las.ParseHeader(r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, las.ErrShortRecord))
}

func TestPointRegionEnd(t *testing.T) {
	t.Parallel()
	h := las.Header{OffsetToPointData: 300, NumPointRecords: 10, PointRecordLength: 57}
	assert.Equal(t, int64(870), h.PointRegionEnd(10000))

	h.StartOfWaveform = 600
	assert.Equal(t, int64(600), h.PointRegionEnd(10000), "waveform region bounds the points")

	h.StartOfWaveform = 100
	assert.Equal(t, int64(870), h.PointRegionEnd(10000), "waveform region before points is ignored")
	assert.Equal(t, int64(500), h.PointRegionEnd(500), "file size bounds the points")
}

func TestParseVariableLengthRecords(t *testing.T) {
	t.Parallel()

	hist := make([]byte, 16)
	for i, v := range []int32{5, -1, 70000, 3} {
		binary.LittleEndian.PutUint32(hist[4*i:], uint32(v))
	}
	mission := make([]byte, 22)
	binary.LittleEndian.PutUint32(mission[0:], 150000)
	binary.LittleEndian.PutUint16(mission[8:], 700)
	binary.LittleEndian.PutUint16(mission[10:], 1200)
	binary.LittleEndian.PutUint16(mission[12:], 1587)
	binary.LittleEndian.PutUint32(mission[14:], 388800)

	first := las.WaveformDescriptor{BitsPerSample: 8, NumSamples: 60, SpacingPs: 500, DigitizerGain: 2}

	b := testutil.NewLASBuilder()
	b.Descriptor.SpacingPs = 1000
	b.VLRs = []testutil.RawVLR{
		{RecordID: las.RecordHistogram, Payload: hist},
		{RecordID: las.RecordMissionInfo, Payload: mission},
		{RecordID: las.RecordUserInputs, Payload: make([]byte, 64)},
		{RecordID: 34735, Payload: []byte{1, 2, 3, 4, 5, 6}},
		{RecordID: 101, Payload: first.Encode()},
	}
	r := openFixture(t, b)
	h, err := las.ParseHeader(r)
	require.NoError(t, err)

	md, err := las.ParseVariableLengthRecords(r, h)
	require.NoError(t, err)
	assert.Equal(t, int64(h.OffsetToPointData), r.Pos())
	require.Len(t, md.Records, 6)
	assert.Equal(t, "testutil", md.Records[0].User())

	assert.Equal(t, []int32{5, -1, 70000, 3}, md.Histogram)

	require.NotNil(t, md.Mission)
	assert.Equal(t, las.MissionInfo{
		PulseRateHz:      150000,
		ScanRateDeciHz:   700,
		AltitudeM:        1200,
		GPSWeek:          1587,
		GPSSecondsOfWeek: 388800,
		PayloadLength:    22,
	}, *md.Mission)

	// The builder writes its own descriptor last, so it wins over record 101.
	wd, err := md.RequireDescriptor()
	require.NoError(t, err)
	assert.Equal(t, uint16(las.RecordDescriptorMin), wd.RecordID)
	assert.Equal(t, uint32(1000), wd.SpacingPs)
	assert.InDelta(t, 1.0, wd.SpacingNs(), 1e-12)
}

func TestParseVariableLengthRecordsShortMission(t *testing.T) {
	t.Parallel()
	mission := make([]byte, 12)
	binary.LittleEndian.PutUint32(mission[0:], 50000)
	binary.LittleEndian.PutUint16(mission[8:], 350)
	binary.LittleEndian.PutUint16(mission[10:], 900)

	b := testutil.NewLASBuilder()
	b.VLRs = []testutil.RawVLR{{RecordID: las.RecordMissionInfo, Payload: mission}}
	r := openFixture(t, b)
	h, err := las.ParseHeader(r)
	require.NoError(t, err)
	md, err := las.ParseVariableLengthRecords(r, h)
	require.NoError(t, err)

	require.NotNil(t, md.Mission)
	assert.Equal(t, int32(50000), md.Mission.PulseRateHz)
	assert.Equal(t, int16(350), md.Mission.ScanRateDeciHz)
	assert.Equal(t, int16(900), md.Mission.AltitudeM)
	assert.Zero(t, md.Mission.GPSWeek)
	assert.Zero(t, md.Mission.GPSSecondsOfWeek)
}

func TestParseVariableLengthRecordsErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing descriptor", func(t *testing.T) {
		b := testutil.NewLASBuilder()
		b.OmitDescriptor = true
		r := openFixture(t, b)
		h, err := las.ParseHeader(r)
		require.NoError(t, err)
		md, err := las.ParseVariableLengthRecords(r, h)
		require.NoError(t, err)
		_, err = md.RequireDescriptor()
		assert.True(t, errors.Is(err, las.ErrMissingDescriptor))
	})

	t.Run("compressed waveform", func(t *testing.T) {
		b := testutil.NewLASBuilder()
		b.Descriptor.Compression = 1
		r := openFixture(t, b)
		h, err := las.ParseHeader(r)
		require.NoError(t, err)
		_, err = las.ParseVariableLengthRecords(r, h)
		assert.True(t, errors.Is(err, las.ErrUnsupportedCompression), "got %v", err)
	})

	t.Run("records overrun point data", func(t *testing.T) {
		b := testutil.NewLASBuilder()
		b.HeaderHook = func(h *las.Header) { h.OffsetToPointData -= 10 }
		r := openFixture(t, b)
		h, err := las.ParseHeader(r)
		require.NoError(t, err)
		_, err = las.ParseVariableLengthRecords(r, h)
		assert.True(t, errors.Is(err, las.ErrVLROverrun), "got %v", err)
	})

	t.Run("more records declared than present", func(t *testing.T) {
		b := testutil.NewLASBuilder()
		b.HeaderHook = func(h *las.Header) { h.NumVLRs = 2 }
		r := openFixture(t, b)
		h, err := las.ParseHeader(r)
		require.NoError(t, err)
		_, err = las.ParseVariableLengthRecords(r, h)
		assert.True(t, errors.Is(err, las.ErrVLROverrun), "got %v", err)
	})
}

func TestParseVariableLengthRecordsPadding(t *testing.T) {
	var logged []string
	original := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(original)

	b := testutil.NewLASBuilder()
	b.Padding = 2
	r := openFixture(t, b)
	h, err := las.ParseHeader(r)
	require.NoError(t, err)
	_, err = las.ParseVariableLengthRecords(r, h)
	require.NoError(t, err)
	assert.Equal(t, int64(h.OffsetToPointData), r.Pos())
	assert.Equal(t, []string{"[las] 2 bytes of padding between VLRs and point data"}, logged)
}
