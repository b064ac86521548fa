package model

import (
	"context"
	"errors"
)

// ErrModelLoad marks failures to instantiate a classifier session.
var ErrModelLoad = errors.New("model load failed")

// Session is one loaded classifier. Predict runs a single synchronous forward
// pass; Close releases the underlying handle and must be called exactly once.
type Session interface {
	Predict(input []float32) ([]float32, error)
	Close() error
}

// Loader instantiates classifier sessions. Implementations wrap load errors
// with ErrModelLoad.
type Loader interface {
	Load(ctx context.Context) (Session, error)
}
