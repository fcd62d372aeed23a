package model

import "fmt"

type LogisticRegression struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *LogisticRegression) validate() error {
	if len(m.Coef) != NumFeatures {
		return fmt.Errorf("%w: logistic regression has %d coefficients", ErrShapeMismatch, len(m.Coef))
	}
	return nil
}

func (m *LogisticRegression) PredictProba(x []float64) ([]float64, error) {
	if err := checkWidth(x, len(m.Coef)); err != nil {
		return nil, err
	}

	z := m.Intercept
	for i, w := range m.Coef {
		z += w * x[i]
	}
	return binary(sigmoid(z)), nil
}
