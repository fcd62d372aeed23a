package processor

import (
	"fmt"
	"math"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
)

// FraudThreshold is the probability above which a model verdict is fraud.
const FraudThreshold = 0.5

type ModelResult struct {
	Probability float64
}

func (r ModelResult) IsFraud() bool {
	return r.Probability > FraudThreshold
}

type FeatureScorer struct {
	registry *model.Registry
}

func NewFeatureScorer(registry *model.Registry) *FeatureScorer {
	return &FeatureScorer{registry: registry}
}

func (s *FeatureScorer) Score(tx *domain.Transaction, modelName string) (ModelResult, error) {
	classifier, err := s.registry.Model(modelName)
	if err != nil {
		return ModelResult{}, err
	}

	scaled, err := s.registry.Scaler().Transform(EncodeFeatures(tx))
	if err != nil {
		return ModelResult{}, fmt.Errorf("failed to scale features: %w", err)
	}

	proba, err := classifier.PredictProba(scaled)
	if err != nil {
		return ModelResult{}, fmt.Errorf("model %s prediction failed: %w", modelName, err)
	}
	if len(proba) < 2 {
		return ModelResult{}, fmt.Errorf("model %s returned %d class probabilities", modelName, len(proba))
	}

	p := proba[1]
	if math.IsNaN(p) {
		return ModelResult{}, fmt.Errorf("model %s returned NaN probability", modelName)
	}
	return ModelResult{Probability: math.Max(0, math.Min(1, p))}, nil
}
