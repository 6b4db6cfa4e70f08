package scan

import (
	"fmt"

	"github.com/banshee-data/waveform.report/internal/lidar/las"
	"github.com/banshee-data/waveform.report/internal/monitoring"
)

// ChunkIterator walks the point region in fixed-size pieces. Each call to
// Next returns a fresh Result holding only that chunk's pulses. A later
// return whose first return falls in another chunk is counted as dropped.
type ChunkIterator struct {
	s       *Scanner
	cursor  int64
	started bool
	index   int
}

// Chunks returns a new iterator positioned at the first point record.
func (s *Scanner) Chunks() *ChunkIterator {
	return &ChunkIterator{s: s}
}

// Reset rewinds the iterator to the first point record.
func (it *ChunkIterator) Reset() {
	it.started = false
	it.cursor = 0
	it.index = 0
}

// Cursor returns the file position the next chunk starts from.
func (it *ChunkIterator) Cursor() int64 {
	if !it.started {
		return int64(it.s.header.OffsetToPointData)
	}
	return it.cursor
}

// Next decodes up to chunkSize point records. It returns ErrNoMoreData
// once the cursor reaches the waveform region or the declared record count.
func (it *ChunkIterator) Next(chunkSize int) (*Result, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	s := it.s
	if err := s.begin(); err != nil {
		return nil, err
	}
	start := it.Cursor()
	recLen := int64(max(int(s.header.PointRecordLength), las.PointRecordSize))
	if start+recLen > s.regionEnd {
		s.end(Exhausted)
		return nil, ErrNoMoreData
	}

	res, err := s.scanRange(KindChunk, start, chunkSize, nil)
	if err != nil {
		s.end(ErrorTerminated)
		return nil, err
	}
	it.started = true
	it.cursor = s.r.Pos()
	res.Chunk = it.index
	it.index++

	if it.cursor+recLen > s.regionEnd {
		s.end(Exhausted)
	} else {
		s.end(Scanning)
	}
	monitoring.Debugf("[scan] chunk %d: %d records, next at %d", res.Chunk, res.Stats.Records, it.cursor)
	logSummary(res)
	return res, nil
}
