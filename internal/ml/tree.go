package ml

import "sort"

// TreeNode is one node of a fitted regression tree. Internal nodes route on
// Feature < Threshold; leaves carry the additive raw-score contribution.
type TreeNode struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

// Tree is a single member of the boosted ensemble, stored as a flat node
// slice with index links so it serializes cleanly.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for !t.Nodes[i].Leaf {
		n := t.Nodes[i]
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

// treeBuilder grows one regression tree on gradient/hessian targets using
// greedy exact splits, the second-order gain formula and an L2 penalty on
// leaf weights.
type treeBuilder struct {
	x              [][]float64
	grad           []float64
	hess           []float64
	maxDepth       int
	lambda         float64
	minChildWeight float64
	gain           []float64 // accumulated split gain per feature
}

func (b *treeBuilder) build(rows []int) Tree {
	tr := Tree{}
	b.grow(&tr, rows, 0)
	return tr
}

// grow appends the subtree covering rows and returns its root index.
func (b *treeBuilder) grow(tr *Tree, rows []int, depth int) int {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}

	idx := len(tr.Nodes)
	leaf := TreeNode{Leaf: true, Value: -g / (h + b.lambda)}

	if depth >= b.maxDepth || len(rows) < 2 {
		tr.Nodes = append(tr.Nodes, leaf)
		return idx
	}

	feat, thr, gain := b.bestSplit(rows, g, h)
	if feat < 0 {
		tr.Nodes = append(tr.Nodes, leaf)
		return idx
	}
	b.gain[feat] += gain

	var left, right []int
	for _, r := range rows {
		if b.x[r][feat] < thr {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	tr.Nodes = append(tr.Nodes, TreeNode{Feature: feat, Threshold: thr})
	l := b.grow(tr, left, depth+1)
	r := b.grow(tr, right, depth+1)
	tr.Nodes[idx].Left = l
	tr.Nodes[idx].Right = r
	return idx
}

// bestSplit scans every feature for the split maximizing gain, honoring the
// minimum hessian weight on both children. Returns feature -1 when no split
// improves on the parent.
func (b *treeBuilder) bestSplit(rows []int, gTot, hTot float64) (int, float64, float64) {
	bestFeat, bestThr, bestGain := -1, 0.0, 0.0
	parent := gTot * gTot / (hTot + b.lambda)
	order := make([]int, len(rows))

	for f := 0; f < len(b.x[0]); f++ {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			gl += b.grad[r]
			hl += b.hess[r]

			cur, next := b.x[r][f], b.x[order[i+1]][f]
			if cur == next {
				continue
			}
			hr := hTot - hl
			if hl < b.minChildWeight || hr < b.minChildWeight {
				continue
			}
			gr := gTot - gl
			gain := gl*gl/(hl+b.lambda) + gr*gr/(hr+b.lambda) - parent
			if gain > bestGain+1e-12 {
				bestFeat, bestThr, bestGain = f, (cur+next)/2, gain
			}
		}
	}
	return bestFeat, bestThr, bestGain
}
