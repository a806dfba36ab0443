package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Oversample rebalances a labeled matrix by synthesizing minority-class
// rows: each synthetic row interpolates between a random minority sample
// and one of its k nearest minority neighbors. Generation stops once the
// minority count reaches targetRatio times the majority count.
//
// Applied only to the training portion of a fold, never to validation or
// test data, so synthetic structure cannot leak into evaluation metrics.
func Oversample(x [][]float64, y []int, k int, targetRatio float64, rng *rand.Rand) ([][]float64, []int) {
	counts := [2]int{}
	for _, l := range y {
		counts[l]++
	}
	minorityLabel := 0
	if counts[1] < counts[0] {
		minorityLabel = 1
	}

	var minority []int
	for i, l := range y {
		if l == minorityLabel {
			minority = append(minority, i)
		}
	}
	majorityCount := len(y) - len(minority)

	want := int(math.Round(targetRatio*float64(majorityCount))) - len(minority)
	if want <= 0 || len(minority) == 0 {
		return x, y
	}
	if k > len(minority)-1 {
		k = len(minority) - 1
	}

	neighbors := nearestMinorityNeighbors(x, minority, k)

	outX := make([][]float64, 0, len(x)+want)
	outX = append(outX, x...)
	outY := append(make([]int, 0, len(y)+want), y...)

	for s := 0; s < want; s++ {
		i := rng.Intn(len(minority))
		base := x[minority[i]]

		// A lone minority sample has no neighbors; duplicate it.
		donor := base
		if len(neighbors[i]) > 0 {
			donor = x[minority[neighbors[i][rng.Intn(len(neighbors[i]))]]]
		}

		t := rng.Float64()
		synth := make([]float64, len(base))
		for d := range base {
			synth[d] = base[d] + t*(donor[d]-base[d])
		}
		outX = append(outX, synth)
		outY = append(outY, minorityLabel)
	}
	return outX, outY
}

// nearestMinorityNeighbors returns, for each minority sample, the indices
// (into the minority slice) of its k closest minority-class peers.
func nearestMinorityNeighbors(x [][]float64, minority []int, k int) [][]int {
	type dist struct {
		j int
		d float64
	}
	neighbors := make([][]int, len(minority))
	if k <= 0 {
		return neighbors
	}

	for i := range minority {
		ds := make([]dist, 0, len(minority)-1)
		for j := range minority {
			if i == j {
				continue
			}
			ds = append(ds, dist{j, sqDist(x[minority[i]], x[minority[j]])})
		}
		sort.Slice(ds, func(a, b int) bool {
			if ds[a].d == ds[b].d {
				return ds[a].j < ds[b].j
			}
			return ds[a].d < ds[b].d
		})
		nn := make([]int, 0, k)
		for _, d := range ds[:k] {
			nn = append(nn, d.j)
		}
		neighbors[i] = nn
	}
	return neighbors
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
