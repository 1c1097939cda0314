// Package anomaly evaluates login feature vectors against a pretrained
// isolation forest.
package anomaly

import "math"

const eulerGamma = 0.5772156649

// Node is one node of an isolation tree. Leaves have Feature == -1 and carry
// the number of training samples that reached them in Size.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Size      int     `json:"n,omitempty"`
}

func (n Node) isLeaf() bool { return n.Feature < 0 }

// Tree is a flattened isolation tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// pathLength returns the adjusted depth at which x is isolated.
func (t Tree) pathLength(x []float64) float64 {
	depth := 0
	i := 0
	for {
		node := t.Nodes[i]
		if node.isLeaf() {
			return float64(depth) + averagePathLength(node.Size)
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
		depth++
	}
}

// Forest is an ensemble of isolation trees. Offset shifts normality so that
// the contamination share of the training set falls below zero.
type Forest struct {
	Trees       []Tree  `json:"trees"`
	MaxSamples  int     `json:"max_samples"`
	NumFeatures int     `json:"num_features"`
	Offset      float64 `json:"offset"`
}

// ScoreSamples returns -2^(-E[h(x)]/c(psi)). Values near -1 are anomalous,
// values near -0.5 and above are typical.
func (f *Forest) ScoreSamples(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.pathLength(x)
	}
	mean := sum / float64(len(f.Trees))
	return -math.Pow(2, -mean/averagePathLength(f.MaxSamples))
}

// Outlierness is the raw model output: larger means more anomalous.
func (f *Forest) Outlierness(x []float64) float64 {
	return f.Offset - f.ScoreSamples(x)
}

// NormalityScore converts raw model output into the score every threshold is
// expressed in: larger means more normal.
func NormalityScore(outlierness float64) float64 {
	return -outlierness
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
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

func (f *Forest) validate() error {
	if len(f.Trees) == 0 || f.MaxSamples < 1 || f.NumFeatures < 1 {
		return errInvalidForest
	}
	for _, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return errInvalidForest
		}
		// Nodes are stored in pre-order, so children always follow their parent.
		// This also rules out cycles.
		for i, n := range t.Nodes {
			if n.isLeaf() {
				continue
			}
			if n.Feature >= f.NumFeatures ||
				n.Left <= i || n.Left >= len(t.Nodes) ||
				n.Right <= i || n.Right >= len(t.Nodes) {
				return errInvalidForest
			}
		}
	}
	return nil
}
