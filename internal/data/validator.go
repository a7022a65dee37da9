package data

import (
	"math"

	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type DataValidator struct{}

func NewDataValidator() *DataValidator {
	return &DataValidator{}
}

// ValidateDataset checks that a training set is usable: non-empty, every
// record labelled, every feature present and finite.
func (dv *DataValidator) ValidateDataset(records []Record, schema Schema) error {
	if len(records) == 0 {
		return mlerr.New(mlerr.KindData, "validate dataset", "dataset is empty")
	}

	features := schema.FeatureColumns()
	for _, rec := range records {
		if !rec.HasLabel {
			return &mlerr.Error{Kind: mlerr.KindData, Op: "validate dataset", Path: rec.Source, Line: rec.Line, Msg: "record has no label"}
		}
		for _, f := range features {
			v, ok := rec.Fields[f]
			if !ok {
				return &mlerr.Error{Kind: mlerr.KindSchema, Op: "validate dataset", Path: rec.Source, Line: rec.Line, Column: f, Msg: "missing feature"}
			}
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return &mlerr.Error{Kind: mlerr.KindData, Op: "validate dataset", Path: rec.Source, Line: rec.Line, Column: f, Msg: "non-finite value"}
			}
		}
	}
	return nil
}

func (dv *DataValidator) ValidateLabels(records []Record) error {
	if len(records) == 0 {
		return mlerr.New(mlerr.KindData, "validate labels", "labels are empty")
	}

	classCount := make(map[string]int)
	for _, rec := range records {
		classCount[rec.Label]++
	}

	if len(classCount) < 2 {
		return mlerr.Newf(mlerr.KindData, "validate labels", "dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

type FeatureStats struct {
	Name string
	Min  float64
	Max  float64
	Mean float64
}

type DatasetStats struct {
	Samples           int
	Classes           int
	ClassDistribution map[string]int
	Features          []FeatureStats
}

func (dv *DataValidator) GetDatasetStats(records []Record, schema Schema) DatasetStats {
	stats := DatasetStats{
		Samples:           len(records),
		ClassDistribution: make(map[string]int),
	}
	if len(records) == 0 {
		return stats
	}

	for _, rec := range records {
		if rec.HasLabel {
			stats.ClassDistribution[rec.Label]++
		}
	}
	stats.Classes = len(stats.ClassDistribution)

	values := make([]float64, 0, len(records))
	for _, name := range schema.FeatureColumns() {
		values = values[:0]
		for _, rec := range records {
			if v, ok := rec.Fields[name]; ok {
				values = append(values, float64(v))
			}
		}
		if len(values) == 0 {
			continue
		}
		stats.Features = append(stats.Features, FeatureStats{
			Name: name,
			Min:  floats.Min(values),
			Max:  floats.Max(values),
			Mean: stat.Mean(values, nil),
		})
	}
	return stats
}
