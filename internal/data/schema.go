package data

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/shopspring/decimal"
)

type ColumnType string

const (
	Numeric ColumnType = "numeric"
	String  ColumnType = "string"
)

type Column struct {
	Name string
	Type ColumnType
}

// Schema describes the layout of a delimited data file: all columns in
// file order, which of them is the label and which feed the feature vector.
type Schema struct {
	Columns   []Column
	Label     string
	Features  []string
	Delimiter rune
	HasHeader bool
}

func (s Schema) Validate() error {
	if len(s.Columns) == 0 {
		return mlerr.New(mlerr.KindSchema, "schema", "no columns declared")
	}
	if s.Delimiter == 0 || s.Delimiter == '\n' || s.Delimiter == '\r' || s.Delimiter == '"' {
		return mlerr.Newf(mlerr.KindSchema, "schema", "invalid delimiter %q", s.Delimiter)
	}
	seen := make(map[string]ColumnType, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == "" {
			return mlerr.New(mlerr.KindSchema, "schema", "empty column name")
		}
		if _, ok := seen[c.Name]; ok {
			return mlerr.Newf(mlerr.KindSchema, "schema", "duplicate column %q", c.Name)
		}
		if c.Type != Numeric && c.Type != String {
			return mlerr.Newf(mlerr.KindSchema, "schema", "column %q has unknown type %q", c.Name, c.Type)
		}
		seen[c.Name] = c.Type
	}
	if _, ok := seen[s.Label]; !ok {
		return mlerr.Newf(mlerr.KindSchema, "schema", "label column %q not declared", s.Label)
	}
	features := s.FeatureColumns()
	if len(features) == 0 {
		return mlerr.New(mlerr.KindSchema, "schema", "no feature columns")
	}
	used := make(map[string]bool, len(features))
	for _, f := range features {
		typ, ok := seen[f]
		if !ok {
			return mlerr.Newf(mlerr.KindSchema, "schema", "feature column %q not declared", f)
		}
		if typ != Numeric {
			return mlerr.Newf(mlerr.KindSchema, "schema", "feature column %q is not numeric", f)
		}
		if f == s.Label {
			return mlerr.Newf(mlerr.KindSchema, "schema", "column %q is both label and feature", f)
		}
		if used[f] {
			return mlerr.Newf(mlerr.KindSchema, "schema", "feature column %q listed twice", f)
		}
		used[f] = true
	}
	return nil
}

// FeatureColumns returns the declared features, or every numeric column
// except the label when none are declared explicitly.
func (s Schema) FeatureColumns() []string {
	if len(s.Features) > 0 {
		out := make([]string, len(s.Features))
		copy(out, s.Features)
		return out
	}
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name != s.Label && c.Type == Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) LabelType() ColumnType {
	c, _ := s.Column(s.Label)
	return c.Type
}

func (s Schema) String() string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return fmt.Sprintf("columns=[%s] label=%s delimiter=%q header=%t",
		strings.Join(names, ","), s.Label, s.Delimiter, s.HasHeader)
}

// CanonicalLabel normalizes raw label text so that equal values map to the
// same class: numeric labels go through decimal ("6.0" == "6"), string
// labels are trimmed.
func CanonicalLabel(raw string, typ ColumnType) (string, error) {
	raw = strings.TrimSpace(raw)
	if typ != Numeric {
		if raw == "" {
			return "", fmt.Errorf("empty label")
		}
		return raw, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("label %q is not numeric", raw)
	}
	return d.String(), nil
}

func parseNumeric(raw string) (float32, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", raw)
	}
	// parse the canonical text directly to float32 so the value is rounded once
	f, err := strconv.ParseFloat(d.String(), 32)
	if err != nil {
		return 0, fmt.Errorf("value %q out of range", raw)
	}
	return float32(f), nil
}
