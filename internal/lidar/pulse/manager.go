package pulse

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waveform.report/internal/lidar/geom"
	"github.com/banshee-data/waveform.report/internal/lidar/las"
	"github.com/banshee-data/waveform.report/internal/monitoring"
)

// DefaultNoiseLevel is the digitiser count under which samples count as noise.
const DefaultNoiseLevel = 30

// ErrDuplicateWaveformOffset reports a second first return for a waveform
// packet that already owns a pulse.
var ErrDuplicateWaveformOffset = errors.New("pulse: duplicate waveform offset")

// Manager owns the pulses of one scan and the index from waveform key to
// pulse. Pulses are held only by their manager.
type Manager struct {
	header       las.Header
	descriptor   las.WaveformDescriptor
	pulses       []*Pulse
	index        map[uint64]int
	unassociated []DiscretePoint
	noiseLevel   float64
}

// NewManager returns an empty manager. It keeps its own copy of h whose
// bounds grow as pulses are added.
func NewManager(h las.Header, wd las.WaveformDescriptor) *Manager {
	return &Manager{
		header:     h,
		descriptor: wd,
		index:      make(map[uint64]int),
		noiseLevel: DefaultNoiseLevel,
	}
}

// AddPulse reconstructs a pulse from a first-return record and registers
// it under key. The header bounds are extended by the pulse origin and the
// far end of its waveform.
func (m *Manager) AddPulse(p las.PointRecord, samples []byte, key uint64) (*Pulse, error) {
	if _, dup := m.index[key]; dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateWaveformOffset, key)
	}
	pl := Reconstruct(&m.header, m.descriptor, p, samples, key)
	m.index[key] = len(m.pulses)
	m.pulses = append(m.pulses, pl)

	b := geom.Extend(m.header.Bounds, pl.Origin)
	m.header.Bounds = geom.Extend(b, pl.End())
	return pl, nil
}

// AddUnassociatedDiscretePoint records a return that has no waveform.
func (m *Manager) AddUnassociatedDiscretePoint(p las.PointRecord) {
	m.unassociated = append(m.unassociated, NewDiscretePoint(&m.header, p, 0))
}

// AssociateDeferred drains buf, attaching each point to the pulse that owns
// its waveform key. Points whose waveform was never read in this scan are
// dropped. It returns how many points were attached and dropped.
func (m *Manager) AssociateDeferred(buf *DeferredBuffer) (attached, dropped int) {
	for _, d := range buf.drain() {
		i, ok := m.index[d.WaveformKey]
		if !ok {
			monitoring.Debugf("[pulse] no waveform at offset %d for return %d, dropped", d.WaveformKey, d.ReturnNumber)
			dropped++
			continue
		}
		m.pulses[i].Points = append(m.pulses[i].Points, d)
		attached++
	}
	return attached, dropped
}

// Lookup returns the pulse registered under key.
func (m *Manager) Lookup(key uint64) (*Pulse, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.pulses[i], true
}

// Pulses returns the pulses in insertion order, or in Y order after
// SortByOriginY. The slice is owned by the manager.
func (m *Manager) Pulses() []*Pulse { return m.pulses }

// Len returns the number of pulses.
func (m *Manager) Len() int { return len(m.pulses) }

// Unassociated returns the returns that carried no waveform.
func (m *Manager) Unassociated() []DiscretePoint { return m.unassociated }

// Header returns the manager's copy of the file header.
func (m *Manager) Header() las.Header { return m.header }

// Descriptor returns the waveform descriptor pulses were built with.
func (m *Manager) Descriptor() las.WaveformDescriptor { return m.descriptor }

// Bounds returns the current header bounds.
func (m *Manager) Bounds() r3.Box { return m.header.Bounds }

// NoiseLevel returns the sample value below which samples count as noise.
func (m *Manager) NoiseLevel() float64 { return m.noiseLevel }

// SetNoiseLevel changes the noise level used by Stats.
func (m *Manager) SetNoiseLevel(v float64) { m.noiseLevel = v }

// Stats summarises the waveform of p against the manager noise level.
func (m *Manager) Stats(p *Pulse) WaveformStats {
	return Summarize(p, m.noiseLevel)
}

// Release drops every pulse and index entry. The manager stays usable.
func (m *Manager) Release() {
	for i := range m.pulses {
		m.pulses[i] = nil
	}
	m.pulses = nil
	m.index = make(map[uint64]int)
	m.unassociated = nil
}

func (m *Manager) reindex() {
	m.index = make(map[uint64]int, len(m.pulses))
	for i, p := range m.pulses {
		m.index[p.Key] = i
	}
}

// DeferredBuffer collects waveform-sharing returns that are not first
// returns until the scan that produced them completes.
type DeferredBuffer struct {
	points []DiscretePoint
}

// Push appends d to the buffer.
func (b *DeferredBuffer) Push(d DiscretePoint) {
	b.points = append(b.points, d)
}

// Len returns the number of buffered points.
func (b *DeferredBuffer) Len() int { return len(b.points) }

func (b *DeferredBuffer) drain() []DiscretePoint {
	out := b.points
	b.points = nil
	return out
}
