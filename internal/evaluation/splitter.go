package evaluation

import (
	"fmt"
	"math/rand"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
)

type TrainTestSplitter struct {
	testSize   float64
	randomSeed int64
	shuffle    bool
}

func NewTrainTestSplitter(testSize float64, randomSeed int64, shuffle bool) *TrainTestSplitter {
	return &TrainTestSplitter{
		testSize:   testSize,
		randomSeed: randomSeed,
		shuffle:    shuffle,
	}
}

// StratifiedSplit puts testSize of every class into the test set (at least
// one record per class with two or more records). Classes are handled in
// first-seen order so the split only depends on the seed.
func (tts *TrainTestSplitter) StratifiedSplit(records []data.Record) ([]data.Record, []data.Record, error) {
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("cannot split empty dataset")
	}
	if tts.testSize <= 0 || tts.testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be between 0 and 1")
	}

	groups := groupByLabel(records)
	rng := rand.New(rand.NewSource(tts.randomSeed))

	var trainIndices, testIndices []int
	for _, indices := range groups {
		if tts.shuffle {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}

		testCount := int(float64(len(indices)) * tts.testSize)
		if testCount == 0 && len(indices) > 1 {
			testCount = 1
		}
		trainCount := len(indices) - testCount

		trainIndices = append(trainIndices, indices[:trainCount]...)
		testIndices = append(testIndices, indices[trainCount:]...)
	}

	if tts.shuffle {
		rng.Shuffle(len(trainIndices), func(i, j int) {
			trainIndices[i], trainIndices[j] = trainIndices[j], trainIndices[i]
		})
		rng.Shuffle(len(testIndices), func(i, j int) {
			testIndices[i], testIndices[j] = testIndices[j], testIndices[i]
		})
	}

	return pick(records, trainIndices), pick(records, testIndices), nil
}

func groupByLabel(records []data.Record) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, rec := range records {
		g, ok := pos[rec.Label]
		if !ok {
			g = len(groups)
			pos[rec.Label] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func pick(records []data.Record, indices []int) []data.Record {
	out := make([]data.Record, len(indices))
	for i, idx := range indices {
		out[i] = records[idx]
	}
	return out
}
