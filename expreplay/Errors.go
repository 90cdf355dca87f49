package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error condition
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errInsufficientData = errors.New("fewer samples than requested")

var errInvalidConfiguration = errors.New("invalid configuration")

// IsInsufficientData returns whether or not an error reports that
// there are fewer samplable transitions in the buffer than were
// requested.
//
// Callers are expected to treat this condition as recoverable and
// simply skip their update until enough transitions accumulate.
func IsInsufficientData(err error) bool {
	return errors.Is(err, errInsufficientData)
}

// IsInvalidConfiguration returns whether or not an error reports that
// a replay buffer was constructed or called with a non-positive
// capacity, history length, frame size, or batch size.
func IsInvalidConfiguration(err error) bool {
	return errors.Is(err, errInvalidConfiguration)
}
