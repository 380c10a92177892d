package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// IngestError reports a declared source that could not be opened. It is
// fatal to the whole request; no partial stream is started.
type IngestError struct {
	Source string
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest source %s: %v", e.Source, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Source is one open tabular record source: a CSV file whose header row
// names the fields of every subsequent row.
type Source struct {
	id     string
	file   *os.File
	reader *csv.Reader
	header []string
}

// OpenSource opens a header-bearing CSV file. Failure to open or to read the
// header yields an *IngestError.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IngestError{Source: path, Err: err}
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		return nil, &IngestError{Source: path, Err: fmt.Errorf("reading header: %w", err)}
	}

	return &Source{id: path, file: f, reader: r, header: header}, nil
}

// ID returns the source's identifier (its path).
func (s *Source) ID() string {
	return s.id
}

// Next reads one row. io.EOF marks clean exhaustion; any other error means
// the source failed mid-read, and the caller treats it as exhausted from
// that point (rows already yielded are not rolled back).
func (s *Source) Next() ([]Field, error) {
	row, err := s.reader.Read()
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(s.header))
	for i, name := range s.header {
		var value string
		if i < len(row) {
			value = row[i]
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return fields, nil
}

// Close releases the underlying file handle.
func (s *Source) Close() error {
	return s.file.Close()
}

var _ io.Closer = (*Source)(nil)
