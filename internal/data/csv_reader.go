package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
)

type CSVReader struct {
	filename string
	schema   Schema
	labelIdx int
	file     *os.File
	reader   *csv.Reader
}

func NewCSVReader(filename string, schema Schema) (*CSVReader, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil, &mlerr.Error{Kind: mlerr.KindIO, Op: "open data file", Path: filename, Err: err}
	}

	reader := csv.NewReader(file)
	reader.Comma = schema.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	cr := &CSVReader{
		filename: filename,
		schema:   schema,
		labelIdx: -1,
		file:     file,
		reader:   reader,
	}
	for i, c := range schema.Columns {
		if c.Name == schema.Label {
			cr.labelIdx = i
		}
	}

	if schema.HasHeader {
		if _, err := reader.Read(); err != nil && err != io.EOF {
			file.Close()
			return nil, cr.readError(err)
		}
	}
	return cr, nil
}

// Next returns the following record or io.EOF when the file is exhausted.
func (cr *CSVReader) Next() (Record, error) {
	row, err := cr.reader.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, cr.readError(err)
	}
	line, _ := cr.reader.FieldPos(0)

	if len(row) != len(cr.schema.Columns) {
		return Record{}, &mlerr.Error{
			Kind: mlerr.KindParse,
			Op:   "load",
			Path: cr.filename,
			Line: line,
			Msg:  fmt.Sprintf("expected %d fields, got %d", len(cr.schema.Columns), len(row)),
		}
	}

	rec := Record{
		Fields: make(map[string]float32, len(row)),
		Source: cr.filename,
		Line:   line,
	}
	for j, col := range cr.schema.Columns {
		if j == cr.labelIdx {
			label, err := CanonicalLabel(row[j], col.Type)
			if err != nil {
				return Record{}, &mlerr.Error{Kind: mlerr.KindParse, Op: "load", Path: cr.filename, Line: line, Column: col.Name, Err: err}
			}
			rec.Label = label
			rec.HasLabel = true
			continue
		}
		if col.Type != Numeric {
			continue
		}
		v, err := parseNumeric(row[j])
		if err != nil {
			return Record{}, &mlerr.Error{Kind: mlerr.KindParse, Op: "load", Path: cr.filename, Line: line, Column: col.Name, Err: err}
		}
		rec.Fields[col.Name] = v
	}
	return rec, nil
}

func (cr *CSVReader) readError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &mlerr.Error{Kind: mlerr.KindParse, Op: "load", Path: cr.filename, Line: perr.Line, Err: perr.Err}
	}
	return &mlerr.Error{Kind: mlerr.KindIO, Op: "read data file", Path: cr.filename, Err: err}
}

func (cr *CSVReader) Close() error {
	return cr.file.Close()
}

// Scan streams every record of filename through fn, stopping at the first
// error returned by either the reader or fn.
func Scan(filename string, schema Schema, fn func(Record) error) error {
	reader, err := NewCSVReader(filename, schema)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Load reads the whole file into memory.
func Load(filename string, schema Schema) ([]Record, error) {
	var records []Record
	err := Scan(filename, schema, func(r Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("file", filename).
		Int("records", len(records)).
		Msg("dataset loaded")
	return records, nil
}
