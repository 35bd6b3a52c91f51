package ensemble

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// ForestConfig controls random forest growth.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

// Forest is a bagged ensemble of gini decision trees. Each split considers
// sqrt(Dims) candidate features drawn from those non-zero at the node.
type Forest struct {
	classes []int
	trees   []tree
}

type tree struct {
	nodes []treeNode
}

type treeNode struct {
	feature     int
	threshold   float64
	left, right int
	dist        []float64
}

// FitForest grows cfg.Trees trees in parallel. Tree t is seeded with
// cfg.Seed+t so the result does not depend on scheduling.
func FitForest(ctx context.Context, d Dataset, cfg ForestConfig) (*Forest, error) {
	if d.Len() == 0 {
		return nil, errNoSamples
	}
	classes := d.classes()
	y := localLabels(d.Y, classes)
	mtry := int(math.Sqrt(float64(d.Dims)))
	if mtry < 1 {
		mtry = 1
	}
	f := &Forest{classes: classes, trees: make([]tree, cfg.Trees)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < cfg.Trees; t++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))
			sample := make([]int, d.Len())
			for i := range sample {
				sample[i] = rng.Intn(d.Len())
			}
			gr := &grower{
				x:        d.X,
				y:        y,
				k:        len(classes),
				mtry:     mtry,
				maxDepth: cfg.MaxDepth,
				minSplit: cfg.MinSamplesSplit,
				rng:      rng,
			}
			gr.build(sample, 0)
			f.trees[t] = tree{nodes: gr.nodes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// PredictProba averages the leaf distributions of all trees.
func (f *Forest) PredictProba(x vectorize.Vector) []float64 {
	avg := make([]float64, len(f.classes))
	for _, t := range f.trees {
		for i, p := range t.leaf(x) {
			avg[i] += p
		}
	}
	if len(f.trees) > 0 {
		for i := range avg {
			avg[i] /= float64(len(f.trees))
		}
	}
	return expand(f.classes, avg, incident.NumCategories)
}

func (t tree) leaf(x vectorize.Vector) []float64 {
	n := 0
	for t.nodes[n].left >= 0 {
		if x.At(t.nodes[n].feature) <= t.nodes[n].threshold {
			n = t.nodes[n].left
		} else {
			n = t.nodes[n].right
		}
	}
	return t.nodes[n].dist
}

type grower struct {
	x        []vectorize.Vector
	y        []int
	k        int
	mtry     int
	maxDepth int
	minSplit int
	rng      *rand.Rand
	nodes    []treeNode
}

func (g *grower) build(rows []int, depth int) int {
	counts := g.count(rows)
	id := len(g.nodes)
	g.nodes = append(g.nodes, treeNode{left: -1, right: -1, dist: distribution(counts, len(rows))})
	if depth >= g.maxDepth || len(rows) < g.minSplit || pure(counts) {
		return id
	}
	feature, threshold, ok := g.bestSplit(rows, counts)
	if !ok {
		return id
	}
	var left, right []int
	for _, r := range rows {
		if g.x[r].At(feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	l := g.build(left, depth+1)
	r := g.build(right, depth+1)
	g.nodes[id].feature = feature
	g.nodes[id].threshold = threshold
	g.nodes[id].left = l
	g.nodes[id].right = r
	return id
}

type valued struct {
	v     float64
	label int
}

func (g *grower) bestSplit(rows []int, counts []int) (feature int, threshold float64, ok bool) {
	candidates := g.candidates(rows)
	n := float64(len(rows))
	best := gini(counts, len(rows)) * n
	const eps = 1e-12

	pairs := make([]valued, len(rows))
	left := make([]int, g.k)
	right := make([]int, g.k)
	for _, f := range candidates {
		for i, r := range rows {
			pairs[i] = valued{v: g.x[r].At(f), label: g.y[r]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })
		for c := range left {
			left[c] = 0
			right[c] = counts[c]
		}
		for i := 0; i < len(pairs)-1; i++ {
			left[pairs[i].label]++
			right[pairs[i].label]--
			if pairs[i].v == pairs[i+1].v {
				continue
			}
			nl, nr := i+1, len(pairs)-i-1
			score := gini(left, nl)*float64(nl) + gini(right, nr)*float64(nr)
			if score < best-eps {
				best = score
				feature = f
				threshold = (pairs[i].v + pairs[i+1].v) / 2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// candidates draws up to mtry features among those non-zero in rows.
func (g *grower) candidates(rows []int) []int {
	seen := make(map[int]bool)
	var all []int
	for _, r := range rows {
		for _, f := range g.x[r].Indices {
			if !seen[f] {
				seen[f] = true
				all = append(all, f)
			}
		}
	}
	sort.Ints(all)
	if len(all) <= g.mtry {
		return all
	}
	for i := 0; i < g.mtry; i++ {
		j := i + g.rng.Intn(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:g.mtry]
}

func (g *grower) count(rows []int) []int {
	c := make([]int, g.k)
	for _, r := range rows {
		c[g.y[r]]++
	}
	return c
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	s := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		s -= p * p
	}
	return s
}

func pure(counts []int) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

func distribution(counts []int, n int) []float64 {
	out := make([]float64, len(counts))
	if n == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = float64(c) / float64(n)
	}
	return out
}
