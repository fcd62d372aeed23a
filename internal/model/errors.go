package model

import "errors"

var (
	ErrUnknownModel    = errors.New("unknown model")
	ErrMissingArtifact = errors.New("missing or invalid artifact")
	ErrShapeMismatch   = errors.New("feature vector shape mismatch")
)
