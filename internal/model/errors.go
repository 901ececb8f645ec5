package model

import "errors"

var (
	// ErrInsufficientData means a series is shorter than a required window
	// or contains values an indicator cannot use.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrTransient marks failures of external collaborators worth retrying.
	ErrTransient = errors.New("transient external failure")

	// ErrNoData means the price feed answered but returned no bars.
	ErrNoData = errors.New("no data")

	// ErrInvalidState means a persisted position record could not be decoded.
	ErrInvalidState = errors.New("invalid position state")

	// ErrMalformedInput marks requests or responses that will not succeed on retry.
	ErrMalformedInput = errors.New("malformed input")
)
