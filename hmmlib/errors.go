package hmmlib

import "errors"

var (
	// ErrBadToken is returned when a mark call is not one of 0, 1 or 2, or
	// a bin does not have one call per mark.
	ErrBadToken = errors.New("malformed mark calls")

	// ErrMarkMismatch is returned when sequences, or a sequence and a
	// model, do not share the same marks.
	ErrMarkMismatch = errors.New("inconsistent mark set")

	// ErrEmptySequence is returned for a sequence with no bins.
	ErrEmptySequence = errors.New("sequence has no bins")

	// ErrModelFormat is returned when a model file is empty, truncated or
	// contains a line that cannot be parsed.
	ErrModelFormat = errors.New("malformed model file")

	// ErrInformationStates is returned when information initialization cannot
	// split the data into the requested number of states.
	ErrInformationStates = errors.New("the requested state count exceeds what information initialization supports, use random or load instead")

	// ErrZeroScale is returned when every state has zero forward probability
	// at some bin.
	ErrZeroScale = errors.New("forward scale is zero")

	// ErrDegenerate is returned when a probability vector cannot be
	// normalized.
	ErrDegenerate = errors.New("cannot normalize probabilities")

	// ErrConfig is returned for invalid settings.
	ErrConfig = errors.New("invalid configuration")
)
