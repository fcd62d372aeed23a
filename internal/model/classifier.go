// Package model holds the read-only scoring artifacts: the binary
// classifiers and the shared feature scaler, decoded from the JSON files the
// offline trainer exports.
package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// NumFeatures is the width of every feature vector the scaler and the
// classifiers are fitted on.
const NumFeatures = 10

const FormatVersion = 1

type Kind string

const (
	KindLogisticRegression Kind = "logistic_regression"
	KindNeuralNetwork      Kind = "neural_network"
	KindRandomForest       Kind = "random_forest"
	KindGradientBoosting   Kind = "gradient_boosting"
)

// Classifier returns per-class probabilities, [legit, fraud], for one
// scaled feature vector.
type Classifier interface {
	PredictProba(x []float64) ([]float64, error)
}

type Artifact struct {
	Kind          Kind            `json:"kind"`
	FormatVersion int             `json:"format_version"`
	NFeatures     int             `json:"n_features"`
	Params        json.RawMessage `json:"params"`
}

func DecodeClassifier(data []byte) (Classifier, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}
	if a.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", a.FormatVersion)
	}
	if a.NFeatures != NumFeatures {
		return nil, fmt.Errorf("%w: artifact fitted on %d features, want %d", ErrShapeMismatch, a.NFeatures, NumFeatures)
	}

	switch a.Kind {
	case KindLogisticRegression:
		return decodeParams[LogisticRegression](a.Params)
	case KindNeuralNetwork:
		return decodeParams[NeuralNetwork](a.Params)
	case KindRandomForest:
		return decodeParams[RandomForest](a.Params)
	case KindGradientBoosting:
		return decodeParams[GradientBoosting](a.Params)
	default:
		return nil, fmt.Errorf("unknown classifier kind: %q", a.Kind)
	}
}

type validatable interface {
	validate() error
}

func decodeParams[T any, PT interface {
	*T
	Classifier
	validatable
}](raw json.RawMessage) (Classifier, error) {
	var params T
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	p := PT(&params)
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func checkWidth(x []float64, want int) error {
	if len(x) != want {
		return fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(x), want)
	}
	return nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func binary(p float64) []float64 {
	p = math.Max(0, math.Min(1, p))
	return []float64{1 - p, p}
}
