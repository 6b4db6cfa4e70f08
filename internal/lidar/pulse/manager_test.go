package pulse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
)

func laterReturn(first las.PointRecord, n uint8) las.PointRecord {
	p := first
	p.ReturnNumber = n
	p.ReturnLocationPs = first.ReturnLocationPs + float32(n)*1000
	p.Intensity = uint16(10 * n)
	return p
}

func TestManagerAddPulseAndLookup(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	p := firstReturn(100, 200, 300)

	pl, err := m.AddPulse(p, []byte{10, 20, 30, 40}, 1060)
	require.NoError(t, err)

	got, ok := m.Lookup(1060)
	require.True(t, ok)
	assert.Same(t, pl, got)
	pos0, _ := got.SamplePosition(0)
	if diff := cmp.Diff(got.Origin, pos0, approx); diff != "" {
		t.Errorf("sample 0 should equal origin (-want +got):\n%s", diff)
	}

	_, ok = m.Lookup(9999)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, float64(DefaultNoiseLevel), m.NoiseLevel())
}

func TestManagerDuplicateKey(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	_, err := m.AddPulse(firstReturn(0, 0, 0), []byte{1}, 5)
	require.NoError(t, err)

	_, err = m.AddPulse(firstReturn(1, 1, 1), []byte{2}, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateWaveformOffset))
	assert.Equal(t, 1, m.Len(), "rejected pulse must not be stored")
}

func TestManagerBoundsExtendBothWays(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	p := firstReturn(500, 500, 500)
	pl, err := m.AddPulse(p, make([]byte, 40), 1)
	require.NoError(t, err)

	b := m.Bounds()
	for _, v := range []r3.Vec{pl.Origin, pl.End()} {
		assert.LessOrEqual(t, b.Min.X, v.X)
		assert.LessOrEqual(t, b.Min.Y, v.Y)
		assert.LessOrEqual(t, b.Min.Z, v.Z)
		assert.GreaterOrEqual(t, b.Max.X, v.X)
		assert.GreaterOrEqual(t, b.Max.Y, v.Y)
		assert.GreaterOrEqual(t, b.Max.Z, v.Z)
	}
	// The end of this beam descends in Y below the header minimum.
	assert.Less(t, b.Min.Y, 2000.0)
	assert.Equal(t, b, m.Header().Bounds)
}

func TestAssociateDeferred(t *testing.T) {
	t.Parallel()
	h := testHeader()
	m := NewManager(h, testDescriptor())
	first := firstReturn(100, 100, 100)
	_, err := m.AddPulse(first, []byte{1, 2, 3, 4}, 1060)
	require.NoError(t, err)

	var buf DeferredBuffer
	buf.Push(NewDiscretePoint(&h, laterReturn(first, 2), 1060))
	buf.Push(NewDiscretePoint(&h, laterReturn(first, 3), 1060))
	buf.Push(NewDiscretePoint(&h, laterReturn(first, 2), 7777))
	require.Equal(t, 3, buf.Len())

	attached, dropped := m.AssociateDeferred(&buf)
	assert.Equal(t, 2, attached)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, buf.Len(), "buffer must be drained")

	pl, _ := m.Lookup(1060)
	require.Len(t, pl.Points, 3)
	assert.Equal(t, []uint8{1, 2, 3}, []uint8{pl.Points[0].ReturnNumber, pl.Points[1].ReturnNumber, pl.Points[2].ReturnNumber})

	// A second call over the drained buffer changes nothing.
	attached, dropped = m.AssociateDeferred(&buf)
	assert.Zero(t, attached)
	assert.Zero(t, dropped)
	assert.Len(t, pl.Points, 3)
}

func TestAssociateDeferredBeforeFirstReturnRead(t *testing.T) {
	t.Parallel()
	h := testHeader()
	m := NewManager(h, testDescriptor())
	first := firstReturn(100, 100, 100)

	// The later return is buffered before its first return is added.
	var buf DeferredBuffer
	buf.Push(NewDiscretePoint(&h, laterReturn(first, 2), 1060))
	_, err := m.AddPulse(first, []byte{1, 2, 3, 4}, 1060)
	require.NoError(t, err)

	attached, dropped := m.AssociateDeferred(&buf)
	assert.Equal(t, 1, attached)
	assert.Zero(t, dropped)
}

func TestAddUnassociatedDiscretePoint(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	p := firstReturn(10, 20, 30)
	p.PacketIndex = 0
	m.AddUnassociatedDiscretePoint(p)

	require.Len(t, m.Unassociated(), 1)
	d := m.Unassociated()[0]
	assert.False(t, d.HasWaveform)
	if diff := cmp.Diff(r3.Vec{X: 1000.1, Y: 2000.2, Z: 0.3}, d.Position, approx); diff != "" {
		t.Errorf("position mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, m.Len())
}

func TestSortByOriginY(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	ys := []int32{5, 90, 5, 40, 90, 1, 70, 5, 33}
	for i, y := range ys {
		p := firstReturn(0, y*100, 0)
		p.ReturnLocationPs = 0
		_, err := m.AddPulse(p, []byte{byte(i)}, uint64(i))
		require.NoError(t, err)
	}

	m.SortByOriginY()

	var gotY []float64
	var gotKeys []uint64
	for _, p := range m.Pulses() {
		gotY = append(gotY, p.Origin.Y)
		gotKeys = append(gotKeys, p.Key)
	}
	for i := 0; i+1 < len(gotY); i++ {
		assert.GreaterOrEqual(t, gotY[i], gotY[i+1], "pulses must be in descending Y")
	}
	// Equal Y values keep insertion order.
	assert.Equal(t, []uint64{1, 4, 6, 3, 8, 0, 2, 7, 5}, gotKeys)

	// The index follows the new order.
	for i, p := range m.Pulses() {
		got, ok := m.Lookup(p.Key)
		require.True(t, ok)
		assert.Same(t, m.Pulses()[i], got)
	}
}

func TestSortByOriginYSmall(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	m.SortByOriginY()
	assert.Zero(t, m.Len())

	_, err := m.AddPulse(firstReturn(0, 0, 0), []byte{1}, 1)
	require.NoError(t, err)
	m.SortByOriginY()
	assert.Equal(t, 1, m.Len())
}

func TestManagerRelease(t *testing.T) {
	t.Parallel()
	m := NewManager(testHeader(), testDescriptor())
	_, err := m.AddPulse(firstReturn(0, 0, 0), []byte{1}, 1)
	require.NoError(t, err)
	p := firstReturn(0, 0, 0)
	p.PacketIndex = 0
	m.AddUnassociatedDiscretePoint(p)

	m.Release()
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Unassociated())
	_, ok := m.Lookup(1)
	assert.False(t, ok)

	// Released managers accept new pulses under old keys.
	_, err = m.AddPulse(firstReturn(0, 0, 0), []byte{1}, 1)
	assert.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	h := testHeader()
	pl := Reconstruct(&h, testDescriptor(), firstReturn(0, 0, 0), []byte{10, 20, 60, 40, 60}, 1)

	m := NewManager(h, testDescriptor())
	m.SetNoiseLevel(25)
	s := m.Stats(pl)

	assert.Equal(t, 5, s.Samples)
	assert.Equal(t, 60.0, s.Peak)
	assert.Equal(t, 2, s.PeakIndex)
	assert.InDelta(t, 38.0, s.Mean, 1e-12)
	assert.InDelta(t, 22.803508501982758, s.StdDev, 1e-9)
	assert.Equal(t, 190.0, s.Energy)
	assert.Equal(t, 3, s.AboveNoise)
	assert.Equal(t, 25.0, s.NoiseLevel)
	assert.InDelta(t, 2*pl.SampleLength(), s.PeakRange(pl), 1e-12)
}

func TestSummarizeEdgeCases(t *testing.T) {
	t.Parallel()
	h := testHeader()
	empty := Reconstruct(&h, testDescriptor(), firstReturn(0, 0, 0), nil, 1)
	assert.Equal(t, WaveformStats{NoiseLevel: 30}, Summarize(empty, 30))

	single := Reconstruct(&h, testDescriptor(), firstReturn(0, 0, 0), []byte{42}, 1)
	s := Summarize(single, 30)
	assert.Equal(t, 42.0, s.Mean)
	assert.Zero(t, s.StdDev)
	assert.Equal(t, 1, s.AboveNoise)
}
