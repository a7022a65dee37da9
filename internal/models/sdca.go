package models

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
)

const (
	dfltL2        = 1e-3
	dfltMaxEpochs = 200
	dfltTolerance = 1e-4

	stepMaxIter = 60
	stepTol     = 1e-12
)

type SDCAOptions struct {
	// L2 is the regularization strength λ of the primal objective.
	L2        float64
	MaxEpochs int
	// Tolerance bounds the duality gap at which training stops.
	Tolerance float64
	Seed      int64
	Shuffle   bool
	OnEpoch   func(EpochStats)
}

func DefaultSDCAOptions() SDCAOptions {
	return SDCAOptions{
		L2:        dfltL2,
		MaxEpochs: dfltMaxEpochs,
		Tolerance: dfltTolerance,
		Shuffle:   true,
	}
}

type EpochStats struct {
	Epoch  int
	Primal float64
	Dual   float64
	Gap    float64
}

// TrainingSet holds raw feature vectors and class indices together with
// everything the resulting model needs to score new records.
type TrainingSet struct {
	X          [][]float32
	Y          []int
	Labels     *preprocessing.LabelKeyMap
	Features   []string
	Normalizer *preprocessing.Normalizer
}

type TrainResult struct {
	Model     *Model
	Epochs    int
	Primal    float64
	Gap       float64
	Converged bool
	// Warning is set when the epoch budget ran out before the gap fell
	// below the tolerance. Model is still usable.
	Warning error
}

// SDCATrainer fits a maximum entropy (softmax) model by stochastic dual
// coordinate ascent. Each example i keeps a distribution q_i over classes;
// its dual variable is e_{y_i} - q_i and
//
//	W = 1/(λn) Σ_i (e_{y_i} - q_i) x̃_i
//
// where x̃ is the normalized feature vector extended with a constant 1 for
// the bias. Examples are visited serially in a seeded order, so identical
// seeds and data give bit-identical weights.
type SDCATrainer struct {
	opts SDCAOptions
}

func NewSDCATrainer(opts SDCAOptions) *SDCATrainer {
	if opts.L2 <= 0 {
		opts.L2 = dfltL2
	}
	if opts.MaxEpochs <= 0 {
		opts.MaxEpochs = dfltMaxEpochs
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = dfltTolerance
	}
	return &SDCATrainer{opts: opts}
}

func (t *SDCATrainer) Name() string {
	return "SdcaMaximumEntropy"
}

func (t *SDCATrainer) Options() SDCAOptions {
	return t.opts
}

type sdcaState struct {
	x      [][]float32
	sqNorm []float64
	y      []int
	q      [][]float64
	w      [][]float32
	lambda float64
	n      int
	nc     int

	z []float64
	p []float64
	d []float64
}

func (t *SDCATrainer) Fit(set TrainingSet) (*TrainResult, error) {
	n := len(set.X)
	if n == 0 {
		return nil, mlerr.New(mlerr.KindData, "train", "no training examples")
	}
	if set.Labels == nil || set.Labels.Len() < 2 {
		nc := 0
		if set.Labels != nil {
			nc = set.Labels.Len()
		}
		return nil, mlerr.Newf(mlerr.KindData, "train", "need at least 2 classes, found %d", nc)
	}
	if len(set.Y) != n {
		return nil, mlerr.Newf(mlerr.KindData, "train", "%d feature vectors but %d labels", n, len(set.Y))
	}
	nf := len(set.Features)
	nc := set.Labels.Len()
	for i := range set.X {
		if len(set.X[i]) != nf {
			return nil, mlerr.Newf(mlerr.KindSchema, "train", "example %d has %d features, expected %d", i, len(set.X[i]), nf)
		}
		if set.Y[i] < 0 || set.Y[i] >= nc {
			return nil, mlerr.Newf(mlerr.KindData, "train", "example %d has class %d outside [0,%d)", i, set.Y[i], nc)
		}
	}

	st := &sdcaState{
		x:      make([][]float32, n),
		sqNorm: make([]float64, n),
		y:      set.Y,
		q:      make([][]float64, n),
		w:      make([][]float32, nc),
		lambda: t.opts.L2,
		n:      n,
		nc:     nc,
		z:      make([]float64, nc),
		p:      make([]float64, nc),
		d:      make([]float64, nc),
	}
	for i, raw := range set.X {
		xn := set.Normalizer.Apply(raw)
		xt := append(xn, 1)
		st.x[i] = xt
		for _, v := range xt {
			st.sqNorm[i] += float64(v) * float64(v)
		}
		st.q[i] = make([]float64, nc)
		st.q[i][set.Y[i]] = 1
	}
	for c := range st.w {
		st.w[c] = make([]float32, nf+1)
	}

	rng := rand.New(rand.NewSource(t.opts.Seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	result := &TrainResult{}
	for epoch := 1; epoch <= t.opts.MaxEpochs; epoch++ {
		if t.opts.Shuffle {
			rng.Shuffle(n, func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
		for _, i := range order {
			st.update(i)
		}

		primal, dual := st.objectives()
		gap := primal - dual
		result.Epochs = epoch
		result.Primal = primal
		result.Gap = gap
		if t.opts.OnEpoch != nil {
			t.opts.OnEpoch(EpochStats{Epoch: epoch, Primal: primal, Dual: dual, Gap: gap})
		}
		log.Debug().
			Int("epoch", epoch).
			Float64("primal", primal).
			Float64("dual", dual).
			Float64("gap", gap).
			Msg("sdca epoch finished")

		if gap <= t.opts.Tolerance {
			result.Converged = true
			break
		}
	}

	if !result.Converged {
		result.Warning = mlerr.Newf(mlerr.KindConvergence, "train",
			"duality gap %.3g above tolerance %.3g after %d epochs", result.Gap, t.opts.Tolerance, result.Epochs)
	}
	result.Model = st.model(set)
	return result, nil
}

func (st *sdcaState) scores(i int) {
	xi := st.x[i]
	for c, w := range st.w {
		st.z[c] = dot(w, xi)
	}
}

// update moves q_i toward the current soft-max p_i by the step that
// maximizes the dual objective along that direction.
func (st *sdcaState) update(i int) {
	st.scores(i)
	copy(st.p, softmax64(st.z))

	qi := st.q[i]
	dn2 := 0.0
	for c := range st.d {
		st.d[c] = qi[c] - st.p[c]
		dn2 += st.d[c] * st.d[c]
	}
	if dn2 < 1e-24 {
		return
	}

	lambdaN := st.lambda * float64(st.n)
	curvature := dn2 * st.sqNorm[i] / lambdaN
	s := st.step(qi, curvature)
	if s <= 0 {
		return
	}

	xi := st.x[i]
	for c, w := range st.w {
		if st.d[c] == 0 {
			continue
		}
		coef := float32(s * st.d[c] / lambdaN)
		for j, v := range xi {
			w[j] += coef * v
		}
		qi[c] -= s * st.d[c]
		if qi[c] < 0 {
			qi[c] = 0
		}
	}
}

// grad is the derivative (times n) of the dual objective along d at step s.
func (st *sdcaState) grad(q []float64, s, curvature float64) (g, dg float64) {
	g = -s * curvature
	dg = -curvature
	for c, dc := range st.d {
		if dc == 0 {
			continue
		}
		qs := q[c] - s*dc
		if qs < 1e-300 {
			qs = 1e-300
		}
		g += dc * (math.Log(qs) - st.z[c])
		dg -= dc * dc / qs
	}
	return g, dg
}

// step finds s in (0,1] where the concave dual stops increasing, using
// Newton iterations safeguarded by bisection.
func (st *sdcaState) step(q []float64, curvature float64) float64 {
	if g1, _ := st.grad(q, 1, curvature); g1 >= 0 {
		return 1
	}
	lo, hi := 0.0, 1.0
	s := 0.5
	for iter := 0; iter < stepMaxIter; iter++ {
		g, dg := st.grad(q, s, curvature)
		if math.Abs(g) < stepTol {
			break
		}
		if g > 0 {
			lo = s
		} else {
			hi = s
		}
		if hi-lo < stepTol {
			break
		}
		next := s - g/dg
		if next <= lo || next >= hi || math.IsNaN(next) {
			next = 0.5 * (lo + hi)
		}
		s = next
	}
	return s
}

func (st *sdcaState) objectives() (primal, dual float64) {
	var loss, entropy float64
	for i := 0; i < st.n; i++ {
		st.scores(i)
		loss += logSumExp(st.z) - st.z[st.y[i]]
		for _, v := range st.q[i] {
			if v > 0 {
				entropy -= v * math.Log(v)
			}
		}
	}
	norm := 0.0
	for _, w := range st.w {
		for _, v := range w {
			norm += float64(v) * float64(v)
		}
	}
	reg := 0.5 * st.lambda * norm
	nf := float64(st.n)
	return loss/nf + reg, entropy/nf - reg
}

func (st *sdcaState) model(set TrainingSet) *Model {
	nf := len(set.Features)
	m := &Model{
		Weights:    make([][]float32, st.nc),
		Biases:     make([]float32, st.nc),
		Labels:     set.Labels,
		Features:   append([]string(nil), set.Features...),
		Normalizer: set.Normalizer,
	}
	for c, w := range st.w {
		m.Weights[c] = append([]float32(nil), w[:nf]...)
		m.Biases[c] = w[nf]
	}
	return m
}
