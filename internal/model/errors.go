package model

import "errors"

var (
	// ErrDataUnavailable means the provider returned nothing usable.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrInsufficientData means fewer closes than the window needs.
	ErrInsufficientData = errors.New("insufficient market data")
	// ErrInferenceFailure covers transport, status and decoding failures of the endpoint.
	ErrInferenceFailure = errors.New("inference failed")
	// ErrWindowUpdate means a prediction could not be fed back into the window.
	ErrWindowUpdate = errors.New("window update failed")
)
