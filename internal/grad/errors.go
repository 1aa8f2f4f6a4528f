package grad

import "errors"

var (
	// ErrBadEquation is returned when an equation handed to the engine is
	// not of the form result = operator(operands...).
	ErrBadEquation = errors.New("grad: equation is not of the form result = op(operands)")

	// ErrArgNotFound is returned when the variable to differentiate against
	// does not appear in the call's operand list.
	ErrArgNotFound = errors.New("grad: argument not found in operand list")

	// ErrRuleLookup signals a registry miss immediately after a successful
	// promotion. The first miss is the expected trigger for promotion; a
	// second one means the promoted rule cannot match its own originating
	// call, which is a bug in the rule machinery rather than bad input.
	ErrRuleLookup = errors.New("grad: rule missing after promotion")

	// ErrBadProgram is returned for assignment sequences that are not in
	// single-assignment three-address form.
	ErrBadProgram = errors.New("grad: malformed program")

	// ErrUnknownVariable is returned when a gradient is requested for a
	// variable the program never defines.
	ErrUnknownVariable = errors.New("grad: variable has no defining assignment")
)
