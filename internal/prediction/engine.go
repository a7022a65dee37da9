// Package prediction scores records with a trained model. An Engine only
// reads its model and can be shared between goroutines.
package prediction

import (
	"context"
	"fmt"
	"runtime"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/evaluation"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"golang.org/x/sync/errgroup"
)

// Scores holds one probability per class, indexed like the model's labels.
type Scores []float32

type LabelScore struct {
	Label string
	Score float32
}

type Result struct {
	Label  string
	Index  int
	Score  float32
	Scores []LabelScore
}

type Engine struct {
	model  *models.Model
	vec    *preprocessing.Vectorizer
	labels []string
}

func NewEngine(model *models.Model) (*Engine, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("cannot predict with invalid model: %w", err)
	}
	return &Engine{
		model:  model,
		vec:    preprocessing.NewVectorizer(model.Features),
		labels: model.Labels.Labels(),
	}, nil
}

func (e *Engine) Labels() []string {
	return append([]string(nil), e.labels...)
}

// Predict returns the soft-max scores of rec. Only the model's feature
// columns are read; extra fields and the label are ignored.
func (e *Engine) Predict(rec data.Record) (Scores, error) {
	x, err := e.vec.Vectorize(rec)
	if err != nil {
		return nil, err
	}
	return Scores(e.model.Probabilities(x)), nil
}

// ArgMaxLabel returns the index and label of the highest score. Ties go to
// the lowest index.
func (e *Engine) ArgMaxLabel(scores Scores) (int, string) {
	idx := evaluation.ArgMax(scores)
	return idx, e.labels[idx]
}

func (e *Engine) Classify(rec data.Record) (*Result, error) {
	scores, err := e.Predict(rec)
	if err != nil {
		return nil, err
	}
	idx, label := e.ArgMaxLabel(scores)
	res := &Result{
		Label:  label,
		Index:  idx,
		Score:  scores[idx],
		Scores: make([]LabelScore, len(scores)),
	}
	for c, s := range scores {
		res.Scores[c] = LabelScore{Label: e.labels[c], Score: s}
	}
	return res, nil
}

// PredictBatch classifies records concurrently. Results keep the input
// order; the first failing record aborts the batch.
func (e *Engine) PredictBatch(ctx context.Context, records []data.Record) ([]*Result, error) {
	results := make([]*Result, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Classify(rec)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
