package model

import "fmt"

// Layer is a dense layer; Weights is indexed [input][output].
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// NeuralNetwork is a feed-forward MLP with ReLU hidden layers and a single
// logistic output unit.
type NeuralNetwork struct {
	Layers []Layer `json:"layers"`
}

func (m *NeuralNetwork) validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("neural network has no layers")
	}

	in := NumFeatures
	for i, l := range m.Layers {
		if len(l.Weights) != in {
			return fmt.Errorf("%w: layer %d expects %d inputs, has %d weight rows", ErrShapeMismatch, i, in, len(l.Weights))
		}
		out := len(l.Biases)
		for j, row := range l.Weights {
			if len(row) != out {
				return fmt.Errorf("%w: layer %d row %d has %d weights, want %d", ErrShapeMismatch, i, j, len(row), out)
			}
		}
		in = out
	}
	if in != 1 {
		return fmt.Errorf("%w: output layer has %d units, want 1", ErrShapeMismatch, in)
	}
	return nil
}

func (m *NeuralNetwork) PredictProba(x []float64) ([]float64, error) {
	if err := checkWidth(x, NumFeatures); err != nil {
		return nil, err
	}

	activations := x
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		next := make([]float64, len(l.Biases))
		copy(next, l.Biases)
		for in, a := range activations {
			for out, w := range l.Weights[in] {
				next[out] += a * w
			}
		}
		if i != last {
			for j, v := range next {
				if v < 0 {
					next[j] = 0
				}
			}
		}
		activations = next
	}
	return binary(sigmoid(activations[0])), nil
}
