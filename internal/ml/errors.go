package ml

import "errors"

var (
	// ErrModelNotFound signals an absent artifact at the configured path.
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrModelUnavailable is returned for every scoring call while no model
	// is loaded. The service stays unready instead of fabricating a result.
	ErrModelUnavailable = errors.New("no model loaded")

	// ErrNoTrainingData aborts a training run handed an empty record set.
	ErrNoTrainingData = errors.New("training set is empty")

	// ErrSingleClass aborts a training run whose labels are degenerate.
	ErrSingleClass = errors.New("training labels contain a single class")
)
