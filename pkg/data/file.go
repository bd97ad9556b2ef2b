package data

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A matrix stored as CSV: one row per line, comma-separated columns, values
// written with two decimals.
type CSVFile struct {
	Path string
}

func NewCSVFile(path string) *CSVFile {
	return &CSVFile{Path: path}
}

func (self *CSVFile) Load() (*Matrix, error) {
	f, err := os.Open(self.Path)
	if err != nil {
		return nil, WithKind(errors.Wrapf(err, "Failed to open %v", self.Path), ErrSourceUnreadable)
	}
	defer f.Close()

	m, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %v", self.Path)
	}
	return m, nil
}

func (self *CSVFile) Write(m *Matrix) error {
	f, err := os.OpenFile(self.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return WithKind(errors.Wrapf(err, "Failed to create %v", self.Path), ErrDestinationUnwritable)
	}

	if err := WriteCSV(f, m); err != nil {
		f.Close()
		return errors.Wrapf(err, "Failed to write %v", self.Path)
	}

	if err := f.Close(); err != nil {
		return WithKind(errors.Wrapf(err, "Failed to close %v", self.Path), ErrDestinationUnwritable)
	}
	return nil
}

// Parse a CSV matrix. Every row must have the same number of fields; an empty
// input is a 0x0 matrix.
func ReadCSV(r io.Reader) (*Matrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var rows [][]float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, WithKind(errors.Wrap(err, "Malformed CSV"), ErrSourceUnreadable)
		}

		row := make([]float64, len(record))
		for j, field := range record {
			row[j], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := reader.FieldPos(j)
				return nil, WithKind(errors.Wrapf(err, "Bad value on line %v, column %v", line, j), ErrSourceUnreadable)
			}
		}
		rows = append(rows, row)
	}

	m, err := MatrixFromRows(rows)
	if err != nil {
		return nil, WithKind(err, ErrSourceUnreadable)
	}
	return m, nil
}

// Serialize m row by row with "%.2f" formatting
func WriteCSV(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	writer := csv.NewWriter(bw)

	record := make([]string, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'f', 2, 64)
		}
		if err := writer.Write(record); err != nil {
			return WithKind(errors.Wrapf(err, "Failed to write row %v", i), ErrDestinationUnwritable)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return WithKind(errors.Wrap(err, "Failed to flush CSV"), ErrDestinationUnwritable)
	}
	if err := bw.Flush(); err != nil {
		return WithKind(errors.Wrap(err, "Failed to flush CSV"), ErrDestinationUnwritable)
	}
	return nil
}
