package preprocessing

import (
	"fmt"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
)

// LabelKeyMap is a bijection between raw label values and dense class
// indices. Indices are assigned in order of first occurrence.
type LabelKeyMap struct {
	labels []string
	index  map[string]int
}

func newLabelKeyMap() *LabelKeyMap {
	return &LabelKeyMap{index: make(map[string]int)}
}

// NewLabelKeyMap restores a map from its labels listed by class index.
func NewLabelKeyMap(labels []string) (*LabelKeyMap, error) {
	m := newLabelKeyMap()
	for _, label := range labels {
		if _, ok := m.index[label]; ok {
			return nil, fmt.Errorf("duplicate label %q", label)
		}
		m.add(label)
	}
	return m, nil
}

// BuildLabelKeyMap scans the records once, in order.
func BuildLabelKeyMap(records []data.Record) *LabelKeyMap {
	m := newLabelKeyMap()
	for _, rec := range records {
		if !rec.HasLabel {
			continue
		}
		if _, ok := m.index[rec.Label]; !ok {
			m.add(rec.Label)
		}
	}
	return m
}

func (m *LabelKeyMap) add(label string) int {
	idx := len(m.labels)
	m.labels = append(m.labels, label)
	m.index[label] = idx
	return idx
}

func (m *LabelKeyMap) Len() int {
	return len(m.labels)
}

func (m *LabelKeyMap) Index(label string) (int, error) {
	idx, ok := m.index[label]
	if !ok {
		return -1, mlerr.Newf(mlerr.KindUnknownLabel, "map label", "label %q was not seen during training", label)
	}
	return idx, nil
}

func (m *LabelKeyMap) Label(idx int) (string, error) {
	if idx < 0 || idx >= len(m.labels) {
		return "", mlerr.Newf(mlerr.KindUnknownLabel, "map key", "class index %d out of range [0,%d)", idx, len(m.labels))
	}
	return m.labels[idx], nil
}

func (m *LabelKeyMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

func (m *LabelKeyMap) Transform(labels []string) ([]int, error) {
	result := make([]int, len(labels))
	for i, label := range labels {
		idx, err := m.Index(label)
		if err != nil {
			return nil, err
		}
		result[i] = idx
	}
	return result, nil
}

func (m *LabelKeyMap) InverseTransform(encoded []int) ([]string, error) {
	result := make([]string, len(encoded))
	for i, val := range encoded {
		label, err := m.Label(val)
		if err != nil {
			return nil, err
		}
		result[i] = label
	}
	return result, nil
}
