package data

import (
	"sort"
	"strings"

	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
)

// Record is one row of a data file. Fields holds the numeric columns by
// name; Label is the canonical label text when HasLabel is set.
type Record struct {
	Fields   map[string]float32
	Label    string
	HasLabel bool
	Source   string
	Line     int
}

func (r Record) Value(name string) (float32, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

func (r Record) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseRecord reads a "name=value,name=value" record as given on the
// command line. The label column may be present.
func ParseRecord(s string, schema Schema) (Record, error) {
	rec := Record{Fields: make(map[string]float32), Source: "record"}
	s = strings.TrimSpace(s)
	if s == "" {
		return rec, mlerr.New(mlerr.KindParse, "parse record", "empty record")
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return rec, mlerr.Newf(mlerr.KindParse, "parse record", "expected name=value, got %q", pair)
		}
		name = strings.TrimSpace(name)
		col, known := schema.Column(name)
		if !known {
			return rec, &mlerr.Error{Kind: mlerr.KindSchema, Op: "parse record", Column: name, Msg: "unknown column"}
		}
		if name == schema.Label {
			label, err := CanonicalLabel(raw, col.Type)
			if err != nil {
				return rec, &mlerr.Error{Kind: mlerr.KindParse, Op: "parse record", Column: name, Err: err}
			}
			rec.Label = label
			rec.HasLabel = true
			continue
		}
		if col.Type != Numeric {
			continue
		}
		v, err := parseNumeric(raw)
		if err != nil {
			return rec, &mlerr.Error{Kind: mlerr.KindParse, Op: "parse record", Column: name, Err: err}
		}
		if _, dup := rec.Fields[name]; dup {
			return rec, &mlerr.Error{Kind: mlerr.KindParse, Op: "parse record", Column: name, Msg: "given twice"}
		}
		rec.Fields[name] = v
	}
	return rec, nil
}
