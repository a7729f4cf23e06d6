package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"presupuesto/internal/store"
)

// CSVSource streams payment rows from a semicolon- or comma-separated
// file with a header row of canonical column names.
type CSVSource struct {
	path  string
	comma rune
}

// NewCSVSource creates a source for path. A .csv extension is assumed to
// be comma-separated unless the header says otherwise.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Stream(ctx context.Context, out chan<- store.PaymentRow) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.detectComma(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	mapper, err := newRowMapper(header)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		line++

		if empty(record) {
			continue
		}
		row, err := mapper.mapRow(record)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", s.path, line, err)
		}

		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// detectComma sniffs the delimiter from the first line, then rewinds.
// Exported datasets in this domain come in both conventions.
func (s *CSVSource) detectComma(f *os.File) rune {
	if s.comma != 0 {
		return s.comma
	}
	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	_, _ = f.Seek(0, io.SeekStart)

	for _, b := range buf[:n] {
		switch b {
		case ';':
			s.comma = ';'
			return s.comma
		case ',', '\n':
			s.comma = ','
			return s.comma
		}
	}
	s.comma = ','
	return s.comma
}

func empty(record []string) bool {
	for _, v := range record {
		if v != "" {
			return false
		}
	}
	return true
}
