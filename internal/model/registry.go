package model

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

const ScalerFile = "scaler.json"

// DefaultModelNames lists the models the offline trainer produces.
var DefaultModelNames = []string{
	string(KindRandomForest),
	string(KindGradientBoosting),
	string(KindLogisticRegression),
	string(KindNeuralNetwork),
}

// Registry is the immutable set of artifacts shared by every scoring call.
// It is built once at startup and only read afterwards.
type Registry struct {
	models map[string]Classifier
	scaler *Scaler
}

func NewRegistry(scaler *Scaler, models map[string]Classifier) (*Registry, error) {
	if scaler == nil {
		return nil, fmt.Errorf("%w: scaler is required", ErrMissingArtifact)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: at least one model is required", ErrMissingArtifact)
	}
	for name, m := range models {
		if m == nil {
			return nil, fmt.Errorf("%w: model %s is nil", ErrMissingArtifact, name)
		}
	}

	return &Registry{
		models: maps.Clone(models),
		scaler: scaler,
	}, nil
}

func ModelFile(name string) string {
	return name + "_model.json"
}

// Load reads the scaler and every named model from dir. Any missing or
// malformed file fails the whole load.
func Load(dir string, names []string) (*Registry, error) {
	data, err := os.ReadFile(filepath.Join(dir, ScalerFile))
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %w", ErrMissingArtifact, err)
	}
	scaler, err := DecodeScaler(data)
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %w", ErrMissingArtifact, err)
	}

	models := make(map[string]Classifier, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, ModelFile(name)))
		if err != nil {
			return nil, fmt.Errorf("%w: model %s: %w", ErrMissingArtifact, name, err)
		}
		m, err := DecodeClassifier(data)
		if err != nil {
			return nil, fmt.Errorf("%w: model %s: %w", ErrMissingArtifact, name, err)
		}
		models[name] = m
	}

	return NewRegistry(scaler, models)
}

func (r *Registry) Model(name string) (Classifier, error) {
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.models[name]
	return ok
}

func (r *Registry) Scaler() *Scaler {
	return r.scaler
}

func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.models))
}
