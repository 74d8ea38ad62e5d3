package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnregistered     = errors.New("type is not registered")
	ErrCorruptArtifact  = errors.New("corrupt model artifact")
	ErrFeatureMismatch  = errors.New("input feature count does not match model")
	ErrEmptyCoefficient = errors.New("linear model has no coefficients")
)

// MissingDependencyError reports an artifact whose type is not linked into this binary.
type MissingDependencyError struct {
	Name string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: %s", e.Name)
}
