package preprocessing

import (
	"fmt"
	"strings"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
)

// Vectorizer concatenates the named feature columns of a record into a
// fixed-length vector. The column order is fixed at construction.
type Vectorizer struct {
	features []string
}

func NewVectorizer(features []string) *Vectorizer {
	cols := make([]string, len(features))
	copy(cols, features)
	return &Vectorizer{features: cols}
}

func (v *Vectorizer) Features() []string {
	out := make([]string, len(v.features))
	copy(out, v.features)
	return out
}

func (v *Vectorizer) Len() int {
	return len(v.features)
}

func (v *Vectorizer) Vectorize(rec data.Record) ([]float32, error) {
	x := make([]float32, len(v.features))
	for j, name := range v.features {
		val, ok := rec.Fields[name]
		if !ok {
			return nil, &mlerr.Error{
				Kind:   mlerr.KindSchema,
				Op:     "vectorize",
				Path:   rec.Source,
				Line:   rec.Line,
				Column: name,
				Msg:    "missing feature column",
			}
		}
		x[j] = val
	}
	return x, nil
}

// CheckColumns fails unless other lists the same columns in the same order.
func (v *Vectorizer) CheckColumns(other []string) error {
	if len(other) != len(v.features) {
		return mlerr.Newf(mlerr.KindSchema, "check columns",
			"expected %d feature columns [%s], got %d [%s]",
			len(v.features), strings.Join(v.features, ","), len(other), strings.Join(other, ","))
	}
	for j := range other {
		if other[j] != v.features[j] {
			return mlerr.Newf(mlerr.KindSchema, "check columns",
				"feature %d is %q, expected %q", j, other[j], v.features[j])
		}
	}
	return nil
}

// VectorizeAll converts labelled records to a feature matrix and class
// indices. Labels missing from keys fail with an unknown label error.
func (v *Vectorizer) VectorizeAll(records []data.Record, keys *LabelKeyMap) ([][]float32, []int, error) {
	X := make([][]float32, len(records))
	y := make([]int, len(records))
	for i, rec := range records {
		x, err := v.Vectorize(rec)
		if err != nil {
			return nil, nil, err
		}
		if !rec.HasLabel {
			return nil, nil, &mlerr.Error{Kind: mlerr.KindData, Op: "vectorize", Path: rec.Source, Line: rec.Line, Msg: "record has no label"}
		}
		idx, err := keys.Index(rec.Label)
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", rec.Source, rec.Line, err)
		}
		X[i] = x
		y[i] = idx
	}
	return X, y, nil
}
