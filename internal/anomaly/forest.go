package anomaly

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

const eulerGamma = 0.5772156649015329

// ForestConfig parameterises the isolation forest
type ForestConfig struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          uint64
}

// DefaultForestConfig returns the defaults used by the at-risk pipeline
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, MaxSamples: 256, Contamination: 0.25, Seed: 42}
}

type isolationNode struct {
	feature   int
	threshold float64
	left      *isolationNode
	right     *isolationNode
	size      int
}

func (n *isolationNode) leaf() bool {
	return n.left == nil
}

// IsolationForest isolates points with random axis-aligned splits. Points
// that need few splits to isolate get scores close to 1.
type IsolationForest struct {
	cfg    ForestConfig
	trees  []*isolationNode
	psi    int
	offset float64
}

// NewIsolationForest creates an unfitted forest
func NewIsolationForest(cfg ForestConfig) *IsolationForest {
	def := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		cfg.Contamination = def.Contamination
	}
	return &IsolationForest{cfg: cfg}
}

// Fit grows the trees on x (n samples of p features). The same seed and
// input always grow the same forest.
func (f *IsolationForest) Fit(x [][]float64) error {
	n := len(x)
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 samples, got %d", ErrModelFit, n)
	}

	rng := rand.New(rand.NewPCG(f.cfg.Seed, f.cfg.Seed))
	f.psi = min(f.cfg.MaxSamples, n)
	heightLimit := int(math.Ceil(math.Log2(float64(max(f.psi, 2)))))

	f.trees = make([]*isolationNode, f.cfg.Trees)
	for t := range f.trees {
		sample := rng.Perm(n)[:f.psi]
		f.trees[t] = growTree(x, sample, 0, heightLimit, rng)
	}

	scores := f.Scores(x)
	negated := make([]float64, n)
	for i, s := range scores {
		negated[i] = -s
	}
	slices.Sort(negated)
	f.offset = percentile(negated, f.cfg.Contamination)
	return nil
}

func growTree(x [][]float64, idx []int, depth, limit int, rng *rand.Rand) *isolationNode {
	if depth >= limit || len(idx) <= 1 {
		return &isolationNode{size: len(idx)}
	}

	p := len(x[idx[0]])
	lows := make([]float64, p)
	highs := make([]float64, p)
	for j := 0; j < p; j++ {
		lows[j], highs[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			lows[j] = math.Min(lows[j], x[i][j])
			highs[j] = math.Max(highs[j], x[i][j])
		}
	}
	candidates := make([]int, 0, p)
	for j := 0; j < p; j++ {
		if highs[j] > lows[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isolationNode{size: len(idx)}
	}

	feature := candidates[rng.IntN(len(candidates))]
	threshold := lows[feature] + rng.Float64()*(highs[feature]-lows[feature])

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isolationNode{
		feature:   feature,
		threshold: threshold,
		size:      len(idx),
		left:      growTree(x, left, depth+1, limit, rng),
		right:     growTree(x, right, depth+1, limit, rng),
	}
}

// averagePathLength is the expected path length of an unsuccessful search
// in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func pathLength(point []float64, node *isolationNode, depth int) float64 {
	for !node.leaf() {
		if point[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(node.size)
}

// Scores returns the anomaly score of each point, in (0, 1]
func (f *IsolationForest) Scores(x [][]float64) []float64 {
	scores := make([]float64, len(x))
	norm := averagePathLength(f.psi)
	for i, point := range x {
		total := 0.0
		for _, tree := range f.trees {
			total += pathLength(point, tree, 0)
		}
		meanDepth := total / float64(len(f.trees))
		if norm == 0 {
			scores[i] = 1
			continue
		}
		scores[i] = math.Pow(2, -meanDepth/norm)
	}
	return scores
}

// Predict flags the points whose score falls in the contamination tail of
// the training scores.
func (f *IsolationForest) Predict(x [][]float64) (flags []bool, scores []float64) {
	scores = f.Scores(x)
	flags = make([]bool, len(x))
	for i, s := range scores {
		flags[i] = -s < f.offset
	}
	return flags, scores
}
