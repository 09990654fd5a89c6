// Package fileutil provides helpers for reading CSV exports.
package fileutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// CSVReader reads one CSV file, streaming rows so large exports do not need
// to fit in memory.
type CSVReader struct {
	FilePath string
}

// NewCSVReader returns a CSVReader for the specified file
func NewCSVReader(fp string) *CSVReader {
	return &CSVReader{FilePath: fp}
}

func (r *CSVReader) open() (*os.File, *csv.Reader, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening csv file: %w", err)
	}
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // exports pad rows unevenly
	return f, reader, nil
}

// ReadHeader reads only the header row
func (r *CSVReader) ReadHeader() ([]string, error) {
	f, reader, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	return header, nil
}

// ReadAndProcessByRow streams the data rows (header skipped) through
// processorFn, stopping at the first processor error.
func (r *CSVReader) ReadAndProcessByRow(processorFn func([]string) error) error {
	f, reader, err := r.open()
	if err != nil {
		return err
	}
	defer f.Close()

	// Skip header
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("reading CSV header: %w", err)
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading CSV row: %w", err)
		}
		if err := processorFn(row); err != nil {
			return err
		}
	}

	return nil
}
