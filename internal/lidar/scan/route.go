package scan

import (
	"errors"
	"fmt"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
	"github.com/banshee-data/waveform.report/internal/monitoring"
)

// scanRange decodes up to limit records starting at start and routes each
// one into a fresh manager. Deferred returns are associated once the loop
// ends. The cursor is left after the last record read.
func (s *Scanner) scanRange(kind Kind, start int64, limit int, keep func(*las.PointRecord) bool) (*Result, error) {
	if err := s.r.Seek(start); err != nil {
		return nil, err
	}
	m := pulse.NewManager(s.header, s.descriptor)
	m.SetNoiseLevel(s.opts.NoiseLevel)
	res := &Result{Kind: kind, Manager: m}
	st := &res.Stats

	var deferred pulse.DeferredBuffer
	dec := las.NewPointDecoder(s.r, int(s.header.PointRecordLength))
	recLen := int64(dec.RecordLength())

	for i := 0; i < limit; i++ {
		if s.r.Pos()+recLen > s.regionEnd {
			st.Truncated = true
			break
		}
		p, err := dec.Decode()
		if err != nil {
			if errors.Is(err, las.ErrShortRecord) {
				st.Truncated = true
				break
			}
			return nil, fmt.Errorf("decode point record %d: %w", i, err)
		}
		st.Records++

		if s.opts.ExcludeNoise && p.Classification == s.opts.NoiseClass {
			st.Noise++
			continue
		}
		if keep != nil && !keep(&p) {
			st.Filtered++
			continue
		}
		if err := s.route(m, &deferred, p, st); err != nil {
			return nil, err
		}
	}

	st.Attached, st.Dropped = m.AssociateDeferred(&deferred)
	if s.opts.SortByOriginY {
		m.SortByOriginY()
	}
	return res, nil
}

// route sends one record to the pulse builder, the deferred buffer or the
// unassociated list.
func (s *Scanner) route(m *pulse.Manager, deferred *pulse.DeferredBuffer, p las.PointRecord, st *Stats) error {
	key, ok := s.waveformKey(&p)
	if !ok {
		st.Ignored++
		monitoring.Debugf("[scan] ignoring record at GPS time %f: waveform at +%d (%d bytes) is outside the file",
			p.GPSTime, p.WaveformOffset, p.PacketSize)
		return nil
	}

	switch {
	case p.HasWaveform() && p.IsFirstReturn():
		samples, err := s.r.ReadAt(int64(key), int(p.PacketSize))
		if err != nil {
			return fmt.Errorf("read waveform packet at %d: %w", key, err)
		}
		if _, err := m.AddPulse(p, samples, key); err != nil {
			return err
		}
		st.Pulses++
	case p.HasWaveform():
		deferred.Push(pulse.NewDiscretePoint(&s.header, p, key))
		st.Deferred++
	default:
		m.AddUnassociatedDiscretePoint(p)
		st.Unassociated++
	}
	return nil
}

// waveformKey returns the absolute file offset of p's waveform packet, or
// false when the packet would extend past the end of the file.
func (s *Scanner) waveformKey(p *las.PointRecord) (uint64, bool) {
	size := uint64(s.r.Size())
	start := s.header.StartOfWaveform
	if start > size || p.WaveformOffset > size-start {
		return 0, false
	}
	key := start + p.WaveformOffset
	if uint64(p.PacketSize) > size-key {
		return 0, false
	}
	return key, true
}
