package model

import "fmt"

const leafFeature = -1

// Node is one entry of a flattened decision tree. Leaves have Feature -1.
// Samples go left when x[Feature] <= Threshold.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// validate checks that children always point forward, so traversal ends.
func (t *Tree) validate(leafWidth int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature == leafFeature {
			if len(n.Value) != leafWidth {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), leafWidth)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= NumFeatures {
			return fmt.Errorf("%w: node %d splits on feature %d", ErrShapeMismatch, i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

func (t *Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature == leafFeature {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// RandomForest averages the normalised class distribution of each tree's leaf.
type RandomForest struct {
	Trees []Tree `json:"trees"`
}

func (m *RandomForest) validate() error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("random forest has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(2); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (m *RandomForest) PredictProba(x []float64) ([]float64, error) {
	if err := checkWidth(x, NumFeatures); err != nil {
		return nil, err
	}

	var fraud float64
	for i := range m.Trees {
		v := m.Trees[i].leaf(x)
		if total := v[0] + v[1]; total > 0 {
			fraud += v[1] / total
		}
	}
	return binary(fraud / float64(len(m.Trees))), nil
}

// GradientBoosting sums regression-tree outputs in log-odds space.
type GradientBoosting struct {
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []Tree  `json:"trees"`
}

func (m *GradientBoosting) validate() error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("gradient boosting has no trees")
	}
	if m.LearningRate <= 0 {
		return fmt.Errorf("gradient boosting learning rate must be positive")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(1); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (m *GradientBoosting) PredictProba(x []float64) ([]float64, error) {
	if err := checkWidth(x, NumFeatures); err != nil {
		return nil, err
	}

	z := m.Init
	for i := range m.Trees {
		z += m.LearningRate * m.Trees[i].leaf(x)[0]
	}
	return binary(sigmoid(z)), nil
}
