package model

import (
	"encoding/json"
	"fmt"
)

// Scaler standardises each column with the mean and scale stored at fit time.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func DecodeScaler(data []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid scaler JSON: %w", err)
	}
	if len(s.Mean) != NumFeatures || len(s.Scale) != NumFeatures {
		return nil, fmt.Errorf("%w: scaler fitted on %d/%d columns, want %d", ErrShapeMismatch, len(s.Mean), len(s.Scale), NumFeatures)
	}
	return &s, nil
}

// Transform returns a new scaled vector. Zero-variance columns keep a scale
// of 1.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if err := checkWidth(x, len(s.Mean)); err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}
