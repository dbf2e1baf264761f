package expr

import "errors"

var (
	ErrSyntax             = errors.New("invalid expression")
	ErrForbidden          = errors.New("identifier is not allowed")
	ErrArity              = errors.New("wrong number of arguments")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrNotFinite          = errors.New("expression does not evaluate to a finite number")
	ErrCircularDependency = errors.New("circular parameter dependency")
)
