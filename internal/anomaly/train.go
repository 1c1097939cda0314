package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"
)

// TrainConfig controls forest fitting.
type TrainConfig struct {
	Trees         int
	MaxSamples    int // upper bound on psi; the sample size is min(MaxSamples, rows)
	Contamination float64
	Seed          uint64
	Version       string
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Trees:         250,
		MaxSamples:    256,
		Contamination: 0.15,
		Seed:          42,
	}
}

// Train fits the scaler and forest on rows and derives the percentile
// thresholds from the resulting training scores.
func Train(rows [][]float64, featureNames []string, cfg TrainConfig, now time.Time) (*Bundle, error) {
	if len(rows) < 2 {
		return nil, errors.New("train: need at least two rows")
	}
	if cfg.Trees < 1 || cfg.MaxSamples < 2 {
		return nil, fmt.Errorf("train: invalid config trees=%d max_samples=%d", cfg.Trees, cfg.MaxSamples)
	}
	if cfg.Contamination <= 0 || cfg.Contamination >= 0.5 {
		return nil, fmt.Errorf("train: contamination %v out of (0, 0.5)", cfg.Contamination)
	}
	for i, row := range rows {
		if len(row) != len(featureNames) {
			return nil, fmt.Errorf("train: row %d has %d values, want %d", i, len(row), len(featureNames))
		}
	}

	scaler, err := FitScaler(rows)
	if err != nil {
		return nil, err
	}
	scaled := make([][]float64, len(rows))
	for i, row := range rows {
		if scaled[i], err = scaler.Transform(row); err != nil {
			return nil, err
		}
	}

	psi := min(cfg.MaxSamples, len(rows))
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	forest := &Forest{
		Trees:       make([]Tree, cfg.Trees),
		MaxSamples:  psi,
		NumFeatures: len(featureNames),
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))
	for t := range forest.Trees {
		sample := sampleWithoutReplacement(rng, scaled, psi)
		b := treeBuilder{rng: rng, maxDepth: maxDepth}
		b.grow(sample, 0)
		forest.Trees[t] = Tree{Nodes: b.nodes}
	}

	raw := make([]float64, len(scaled))
	for i, x := range scaled {
		raw[i] = forest.ScoreSamples(x)
	}
	forest.Offset = percentile(sortedCopy(raw), 100*cfg.Contamination)

	scores := make([]float64, len(scaled))
	for i, x := range scaled {
		scores[i] = NormalityScore(forest.Outlierness(x))
	}
	sorted := sortedCopy(scores)
	low, medium, high := percentile(sorted, 75), percentile(sorted, 50), percentile(sorted, 25)

	version := cfg.Version
	if version == "" {
		version = now.UTC().Format("20060102T150405Z")
	}

	names := make([]string, len(featureNames))
	copy(names, featureNames)

	return &Bundle{
		Version:      version,
		TrainedAt:    now.UTC(),
		FeatureNames: names,
		Forest:       forest,
		Scaler:       scaler,
		Stats: Stats{
			ScoreMin:    sorted[0],
			ScoreMax:    sorted[len(sorted)-1],
			LowMin:      &low,
			MediumMin:   &medium,
			HighMin:     &high,
			SampleCount: len(rows),
		},
	}, nil
}

type treeBuilder struct {
	rng      *rand.Rand
	maxDepth int
	nodes    []Node
}

// grow appends the subtree for rows and returns its node index.
func (b *treeBuilder) grow(rows [][]float64, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1, Size: len(rows)})
	if depth >= b.maxDepth || len(rows) <= 1 {
		return idx
	}

	feature, lo, hi, ok := b.pickSplitFeature(rows)
	if !ok {
		return idx
	}
	threshold := lo + b.rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	// Rounding can land the threshold on hi, leaving nothing on the right.
	if len(right) == 0 {
		return idx
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// pickSplitFeature chooses uniformly among features that still vary.
func (b *treeBuilder) pickSplitFeature(rows [][]float64) (int, float64, float64, bool) {
	width := len(rows[0])
	type span struct {
		feature int
		lo, hi  float64
	}
	candidates := make([]span, 0, width)
	for j := 0; j < width; j++ {
		lo, hi := rows[0][j], rows[0][j]
		for _, row := range rows[1:] {
			lo = math.Min(lo, row[j])
			hi = math.Max(hi, row[j])
		}
		if hi > lo {
			candidates = append(candidates, span{j, lo, hi})
		}
	}
	if len(candidates) == 0 {
		return 0, 0, 0, false
	}
	c := candidates[b.rng.IntN(len(candidates))]
	return c.feature, c.lo, c.hi, true
}

func sampleWithoutReplacement(rng *rand.Rand, rows [][]float64, n int) [][]float64 {
	perm := rng.Perm(len(rows))
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = rows[perm[i]]
	}
	return out
}

func sortedCopy(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	sort.Float64s(out)
	return out
}

// percentile interpolates linearly between closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
