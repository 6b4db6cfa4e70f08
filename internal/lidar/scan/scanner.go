// Package scan drives the decode of a LAS 1.3 waveform file: it walks the
// point records, reconstructs pulses for first returns, defers later
// returns until the pass completes, and hands the caller one pulse.Manager
// per scan or per chunk.
package scan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
	"github.com/banshee-data/waveform.report/internal/lidar/pulse"
	"github.com/banshee-data/waveform.report/internal/monitoring"
)

var (
	// ErrInvertedBounds rejects a bounds scan whose north is below its south
	// or whose east is left of its west.
	ErrInvertedBounds = errors.New("scan: inverted bounds")
	// ErrNoMoreData ends a chunked scan.
	ErrNoMoreData = errors.New("scan: no more data")
	// ErrScanBusy is returned when a scan starts while another holds the cursor.
	ErrScanBusy = errors.New("scan: another scan is using the file")
	// ErrTerminated is returned by every scan after a fatal scan error.
	ErrTerminated = errors.New("scan: scanner stopped after an earlier error")
)

// State is the lifecycle of a Scanner.
type State int32

const (
	Idle State = iota
	HeaderReady
	Scanning
	Exhausted
	ErrorTerminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HeaderReady:
		return "header-ready"
	case Scanning:
		return "scanning"
	case Exhausted:
		return "exhausted"
	case ErrorTerminated:
		return "error-terminated"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Kind names the scan variant that produced a Result.
type Kind string

const (
	KindAll            Kind = "all"
	KindClassification Kind = "classification"
	KindBounds         Kind = "bounds"
	KindChunk          Kind = "chunk"
)

// Stats counts what happened to every record a scan read. No record is
// dropped without being counted here.
type Stats struct {
	Records      int  `json:"records"`      // point records decoded
	Pulses       int  `json:"pulses"`       // first returns turned into pulses
	Deferred     int  `json:"deferred"`     // later returns buffered for association
	Attached     int  `json:"attached"`     // deferred returns attached to a pulse
	Dropped      int  `json:"dropped"`      // deferred returns whose pulse was not read
	Unassociated int  `json:"unassociated"` // returns without a waveform
	Ignored      int  `json:"ignored"`      // invalid waveform pointer
	Filtered     int  `json:"filtered"`     // rejected by the class or bounds filter
	Noise        int  `json:"noise"`        // skipped as noise
	Truncated    bool `json:"truncated"`    // the point region ended before the requested count
}

// Result is the output of one scan or one chunk. The caller owns Manager
// and should Release it when done.
type Result struct {
	Kind    Kind
	Chunk   int // chunk index, 0 for whole-file scans
	Manager *pulse.Manager
	Stats   Stats
}

// Release frees the pulses held by the result.
func (r *Result) Release() {
	if r != nil && r.Manager != nil {
		r.Manager.Release()
	}
}

// Scanner reads one LAS file. Only one scan may use it at a time; a second
// concurrent scan fails with ErrScanBusy.
type Scanner struct {
	mu         sync.Mutex
	state      atomic.Int32
	r          *las.Reader
	closer     io.Closer
	header     las.Header
	meta       las.Metadata
	descriptor las.WaveformDescriptor
	opts       Options
	regionEnd  int64
	chunks     *ChunkIterator
}

// Open opens path and parses its header and variable length records.
func Open(path string, opts Options) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open LAS file: %w", err)
	}
	s, err := New(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.closer = f
	return s, nil
}

// New parses the header and variable length records of rs. Any failure
// is fatal and no Scanner is returned.
func New(rs io.ReadSeeker, opts Options) (*Scanner, error) {
	r, err := las.NewReader(rs)
	if err != nil {
		return nil, err
	}
	s := &Scanner{r: r, opts: opts}
	s.setState(Idle)

	h, err := las.ParseHeader(r)
	if err != nil {
		s.setState(ErrorTerminated)
		return nil, err
	}
	md, err := las.ParseVariableLengthRecords(r, h)
	if err != nil {
		s.setState(ErrorTerminated)
		return nil, err
	}
	wd, err := md.RequireDescriptor()
	if err != nil {
		s.setState(ErrorTerminated)
		return nil, err
	}
	s.header = h
	s.meta = md
	s.descriptor = wd
	s.regionEnd = h.PointRegionEnd(r.Size())
	s.chunks = s.Chunks()
	s.setState(HeaderReady)
	return s, nil
}

// Close releases the underlying file when the scanner opened it.
func (s *Scanner) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// State returns the current lifecycle state.
func (s *Scanner) State() State { return State(s.state.Load()) }

func (s *Scanner) setState(st State) { s.state.Store(int32(st)) }

// Header returns the parsed file header.
func (s *Scanner) Header() las.Header { return s.header }

// Metadata returns everything decoded from the variable length records.
func (s *Scanner) Metadata() las.Metadata { return s.meta }

// Descriptor returns the active waveform packet descriptor.
func (s *Scanner) Descriptor() las.WaveformDescriptor { return s.descriptor }

// Options returns the options the scanner was created with.
func (s *Scanner) Options() Options { return s.opts }

// FileSize returns the length of the underlying file.
func (s *Scanner) FileSize() int64 { return s.r.Size() }

// ScanAll routes every point record.
func (s *Scanner) ScanAll() (*Result, error) {
	return s.scanWhole(KindAll, nil)
}

// ScanByClassification routes only records whose classification byte
// equals target. A negative target routes every record.
func (s *Scanner) ScanByClassification(target int) (*Result, error) {
	if target < 0 {
		return s.scanWhole(KindClassification, nil)
	}
	return s.scanWhole(KindClassification, func(p *las.PointRecord) bool {
		return int(p.Classification) == target
	})
}

// ScanByBounds routes only records strictly inside the box after scale
// and offset are applied.
func (s *Scanner) ScanByBounds(north, south, west, east float64) (*Result, error) {
	if north < south || east < west {
		return nil, fmt.Errorf("%w: north %g south %g west %g east %g", ErrInvertedBounds, north, south, west, east)
	}
	h := &s.header
	return s.scanWhole(KindBounds, func(p *las.PointRecord) bool {
		pos := h.Scaled(p.X, p.Y, p.Z)
		return west < pos.X && pos.X < east && south < pos.Y && pos.Y < north
	})
}

// ScanChunk reads the next chunkSize records using the scanner's own
// chunk cursor, rewinding first when resetToStart is set. It returns
// ErrNoMoreData once the point region is used up.
func (s *Scanner) ScanChunk(chunkSize int, resetToStart bool) (*Result, error) {
	if resetToStart {
		s.chunks.Reset()
	}
	return s.chunks.Next(chunkSize)
}

func (s *Scanner) scanWhole(kind Kind, keep func(*las.PointRecord) bool) (*Result, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	res, err := s.scanRange(kind, int64(s.header.OffsetToPointData), int(s.header.NumPointRecords), keep)
	if err != nil {
		s.end(ErrorTerminated)
		return nil, err
	}
	s.end(Exhausted)
	logSummary(res)
	return res, nil
}

func (s *Scanner) begin() error {
	if !s.mu.TryLock() {
		return ErrScanBusy
	}
	if s.State() == ErrorTerminated {
		s.mu.Unlock()
		return ErrTerminated
	}
	s.setState(Scanning)
	return nil
}

func (s *Scanner) end(next State) {
	s.setState(next)
	s.mu.Unlock()
}

func logSummary(res *Result) {
	st := res.Stats
	monitoring.Logf("[scan] %s: %d waveforms found, %d extra discrete points, %d ignored (bad waveform pointer)",
		res.Kind, st.Pulses, st.Attached+st.Unassociated, st.Ignored)
	if st.Dropped > 0 {
		monitoring.Logf("[scan] %s: %d later returns had no waveform in this scan", res.Kind, st.Dropped)
	}
}
