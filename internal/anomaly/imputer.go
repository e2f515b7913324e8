package anomaly

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrModelFit reports input too sparse or degenerate to fit a model on
var ErrModelFit = errors.New("model fit failed")

// ImputerConfig bounds the iterative imputer
type ImputerConfig struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultImputerConfig returns the defaults used by the at-risk pipeline
func DefaultImputerConfig() ImputerConfig {
	return ImputerConfig{MaxIterations: 50, Tolerance: 1e-3}
}

// IterativeImputer fills missing values column by column with a linear
// regression on the other columns, starting from the column medians and
// sweeping until the largest change falls below the tolerance.
type IterativeImputer struct {
	cfg ImputerConfig

	// Iterations is the number of sweeps run by the last Impute call
	Iterations int
}

// NewIterativeImputer creates an imputer
func NewIterativeImputer(cfg ImputerConfig) *IterativeImputer {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultImputerConfig().MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultImputerConfig().Tolerance
	}
	return &IterativeImputer{cfg: cfg}
}

// Impute returns a copy of rows (n samples of p features, NaN for missing)
// with every missing value filled. The input is not modified. A column with
// no observed value cannot be imputed and yields ErrModelFit.
func (im *IterativeImputer) Impute(rows [][]float64) ([][]float64, error) {
	im.Iterations = 0
	n := len(rows)
	if n == 0 {
		return [][]float64{}, nil
	}
	p := len(rows[0])

	filled := make([][]float64, n)
	missing := make([][]bool, n)
	observedMax := 0.0
	missingCount := make([]int, p)
	for i, row := range rows {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
		filled[i] = append([]float64(nil), row...)
		missing[i] = make([]bool, p)
		for j, v := range row {
			if math.IsNaN(v) {
				missing[i][j] = true
				missingCount[j]++
				continue
			}
			observedMax = math.Max(observedMax, math.Abs(v))
		}
	}

	for j := 0; j < p; j++ {
		if missingCount[j] == n {
			return nil, fmt.Errorf("%w: feature %d has no observed values", ErrModelFit, j)
		}
		if missingCount[j] == 0 {
			continue
		}
		observed := make([]float64, 0, n-missingCount[j])
		for i := range rows {
			if !missing[i][j] {
				observed = append(observed, rows[i][j])
			}
		}
		m := median(observed)
		for i := range rows {
			if missing[i][j] {
				filled[i][j] = m
			}
		}
	}

	order := imputationOrder(missingCount)
	if len(order) == 0 {
		return filled, nil
	}

	threshold := im.cfg.Tolerance * observedMax
	previous := cloneMatrix(filled)
	for iter := 0; iter < im.cfg.MaxIterations; iter++ {
		im.Iterations = iter + 1
		for _, j := range order {
			imputeFeature(filled, missing, j)
		}
		if maxRowChange(filled, previous) < threshold {
			break
		}
		previous = cloneMatrix(filled)
	}

	return filled, nil
}

// imputationOrder lists incomplete features, fewest missing values first
func imputationOrder(missingCount []int) []int {
	order := make([]int, 0, len(missingCount))
	for j, c := range missingCount {
		if c > 0 {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return missingCount[order[a]] < missingCount[order[b]]
	})
	return order
}

// imputeFeature regresses feature j on the other features over the rows
// where j was observed, then predicts the rows where it was missing.
func imputeFeature(filled [][]float64, missing [][]bool, j int) {
	p := len(filled[0])
	var train, predict []int
	for i := range filled {
		if missing[i][j] {
			predict = append(predict, i)
		} else {
			train = append(train, i)
		}
	}

	y := make([]float64, len(train))
	for k, i := range train {
		y[k] = filled[i][j]
	}
	yMean := stat.Mean(y, nil)

	if p == 1 {
		for _, i := range predict {
			filled[i][j] = yMean
		}
		return
	}

	coef, xMean, ok := fitLinear(filled, train, y, yMean, j)
	for _, i := range predict {
		if !ok {
			filled[i][j] = yMean
			continue
		}
		pred := yMean
		k := 0
		for c := 0; c < p; c++ {
			if c == j {
				continue
			}
			pred += coef[k] * (filled[i][c] - xMean[k])
			k++
		}
		filled[i][j] = pred
	}
}

// fitLinear solves ordinary least squares with an intercept by centering.
// Predictors that are constant over the training rows get a zero
// coefficient. ok is false when the system has no usable solution.
func fitLinear(filled [][]float64, train []int, y []float64, yMean float64, target int) (coef, xMean []float64, ok bool) {
	p := len(filled[0])
	q := p - 1
	coef = make([]float64, q)
	xMean = make([]float64, q)
	cols := make([][]float64, q)
	var varying []int
	k := 0
	for c := 0; c < p; c++ {
		if c == target {
			continue
		}
		col := make([]float64, len(train))
		for r, i := range train {
			col[r] = filled[i][c]
		}
		cols[k] = col
		xMean[k] = stat.Mean(col, nil)
		if floats.Max(col) > floats.Min(col) {
			varying = append(varying, k)
		}
		k++
	}
	if len(varying) == 0 {
		return coef, xMean, true
	}

	a := mat.NewDense(len(train), len(varying), nil)
	for r := range train {
		for c, v := range varying {
			a.Set(r, c, cols[v][r]-xMean[v])
		}
	}
	yc := make([]float64, len(y))
	for r, v := range y {
		yc[r] = v - yMean
	}

	var solution mat.VecDense
	if err := solution.SolveVec(a, mat.NewVecDense(len(yc), yc)); err != nil {
		return nil, nil, false
	}
	for c, v := range varying {
		beta := solution.AtVec(c)
		if math.IsNaN(beta) || math.IsInf(beta, 0) {
			return nil, nil, false
		}
		coef[v] = beta
	}
	return coef, xMean, true
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// maxRowChange is the infinity norm of the difference of two matrices
func maxRowChange(a, b [][]float64) float64 {
	maxSum := 0.0
	for i := range a {
		sum := 0.0
		for j := range a[i] {
			sum += math.Abs(a[i][j] - b[i][j])
		}
		maxSum = math.Max(maxSum, sum)
	}
	return maxSum
}
