package ingest

import (
	"errors"
	"io"

	"go.uber.org/zap"
)

// Multiplexer interleaves records from several sources into one lazily
// produced stream: one full pass over the open cursors per round, in source
// order, removing a cursor from the rotation once it is exhausted. No single
// large source can starve the others, and the first record of the last
// source can be yielded before later records of the first.
type Multiplexer struct {
	active []*Source
	pos    int
	seq    int
	logger *zap.Logger
}

// NewMultiplexer opens every path. If any source cannot be opened, all
// already-opened sources are closed and the *IngestError names the failing
// source; the request fails fast with no partial stream.
func NewMultiplexer(paths []string, logger *zap.Logger) (*Multiplexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(paths) == 0 {
		return nil, &IngestError{Source: "", Err: errors.New("no sources declared")}
	}

	sources := make([]*Source, 0, len(paths))
	for _, path := range paths {
		s, err := OpenSource(path)
		if err != nil {
			for _, open := range sources {
				_ = open.Close()
			}
			return nil, err
		}
		sources = append(sources, s)
	}

	return &Multiplexer{active: sources, logger: logger}, nil
}

// Next yields the next record of the merged stream, tagged with its source
// id and 1-based sequence number. ok is false once every source is
// exhausted.
func (m *Multiplexer) Next() (Record, bool) {
	for len(m.active) > 0 {
		if m.pos >= len(m.active) {
			m.pos = 0
		}

		src := m.active[m.pos]
		fields, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Mid-read failure after yielding records: treated as
				// exhaustion, already-processed rows stand.
				m.logger.Warn("source failed mid-read, treating as exhausted",
					zap.String("source", src.ID()), zap.Error(err))
			}
			_ = src.Close()
			m.active = append(m.active[:m.pos], m.active[m.pos+1:]...)
			continue
		}

		m.seq++
		m.pos++
		return Record{SourceID: src.ID(), Sequence: m.seq, Fields: fields}, true
	}
	return Record{}, false
}

// Close releases any sources still open. Safe to call after exhaustion and
// on whichever path terminates the stream.
func (m *Multiplexer) Close() {
	for _, s := range m.active {
		_ = s.Close()
	}
	m.active = nil
}
