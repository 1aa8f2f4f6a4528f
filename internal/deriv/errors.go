package deriv

import "errors"

var (
	// ErrMalformedEquation is returned when a tree handed to FromEquation is
	// not a derivative equation of the form d<num>[...]/d<den>[...] = body.
	ErrMalformedEquation = errors.New("deriv: malformed derivative equation")

	// ErrNotChainable is returned when chain-rule composition is attempted
	// on entities whose inner variables do not line up.
	ErrNotChainable = errors.New("deriv: entities are not chain-composable")

	// ErrNotSummable is returned when sum-rule composition is attempted on
	// entities that do not describe the same derivative.
	ErrNotSummable = errors.New("deriv: entities are not sum-composable")
)
