// Package ml trains a bagged regression tree ensemble and scores a threshold strategy.
package ml

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"QuantLab/internal/domain/models"
)

// ForestConfig controls ensemble training.
type ForestConfig struct {
	NumEstimators  int
	MaxDepth       int // 0 means unlimited
	MinSamplesLeaf int // 0 means 1
	Workers        int // 0 means GOMAXPROCS
	Seed           int64
}

// Forest is a random forest regressor: bootstrapped CART trees with MSE splits, averaged.
type Forest struct {
	trees []tree
}

type node struct {
	feature   int // -1 for a leaf
	threshold float64
	left      int
	right     int
	value     float64
}

type tree struct {
	nodes []node
}

// FitForest trains cfg.NumEstimators trees concurrently. Tree i draws its bootstrap
// sample from a stream derived from cfg.Seed and i.
func FitForest(ctx context.Context, x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if cfg.NumEstimators < 1 {
		return nil, &models.InvalidParameterError{Name: "num_estimators", Value: cfg.NumEstimators, Reason: "must be >= 1"}
	}
	if len(x) == 0 || len(x) != len(y) {
		return nil, &models.InsufficientDataError{What: "training rows", Need: 1, Have: min(len(x), len(y))}
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	f := &Forest{trees: make([]tree, cfg.NumEstimators)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range f.trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(i)+1))
			idx := make([]int, len(y))
			for k := range idx {
				idx[k] = rng.IntN(len(y))
			}
			b := builder{x: x, y: y, maxDepth: cfg.MaxDepth, minLeaf: cfg.MinSamplesLeaf}
			b.grow(idx, 0)
			f.trees[i] = tree{nodes: b.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Predict averages the tree outputs for one feature vector.
func (f *Forest) Predict(row []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(row)
	}
	return sum / float64(len(f.trees))
}

// Size returns the number of trees.
func (f *Forest) Size() int { return len(f.trees) }

func (t tree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type builder struct {
	x        [][]float64
	y        []float64
	maxDepth int
	minLeaf  int
	nodes    []node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1, value: b.mean(idx)})

	if len(idx) < 2*b.minLeaf || (b.maxDepth > 0 && depth >= b.maxDepth) || b.pure(idx) {
		return self
	}
	feat, thr, ok := b.bestSplit(idx)
	if !ok {
		return self
	}
	var left, right []int
	for _, k := range idx {
		if b.x[k][feat] <= thr {
			left = append(left, k)
		} else {
			right = append(right, k)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return self
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = node{feature: feat, threshold: thr, left: l, right: r, value: b.nodes[self].value}
	return self
}

func (b *builder) mean(idx []int) float64 {
	s := 0.0
	for _, k := range idx {
		s += b.y[k]
	}
	return s / float64(len(idx))
}

func (b *builder) pure(idx []int) bool {
	for _, k := range idx[1:] {
		if b.y[k] != b.y[idx[0]] {
			return false
		}
	}
	return true
}

// bestSplit scans every feature for the threshold minimizing the summed squared error
// of both children. Thresholds are midpoints between distinct sorted values.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	total, totalSq := 0.0, 0.0
	for _, k := range idx {
		total += b.y[k]
		totalSq += b.y[k] * b.y[k]
	}
	parentSSE := totalSq - total*total/float64(n)

	bestFeat, bestThr, bestSSE := -1, 0.0, parentSSE
	sorted := make([]int, n)
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })

		ls, lsq := 0.0, 0.0
		for i := 0; i < n-1; i++ {
			v := b.y[sorted[i]]
			ls += v
			lsq += v * v
			nl := i + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			cur, next := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			rs, rsq := total-ls, totalSq-lsq
			sse := (lsq - ls*ls/float64(nl)) + (rsq - rs*rs/float64(nr))
			if sse < bestSSE-1e-12 {
				bestFeat, bestSSE = f, sse
				bestThr = cur + (next-cur)/2
				if bestThr >= next {
					bestThr = cur
				}
			}
		}
	}
	if bestFeat < 0 || math.IsNaN(bestThr) {
		return 0, 0, false
	}
	return bestFeat, bestThr, true
}
