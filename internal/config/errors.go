package config

import (
	"errors"
	"fmt"
)

// ErrParameter is matched by every ParameterError.
var ErrParameter = errors.New("invalid parameter")

var (
	errMissing   = errors.New("required parameter missing")
	errMalformed = errors.New("malformed value")
	errRange     = errors.New("value out of range")
)

// ParameterError reports a missing or malformed simulation parameter.
type ParameterError struct {
	Name  string
	Value string
	Err   error
}

func (e *ParameterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("parameter %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("parameter %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParameter) match any ParameterError.
func (e *ParameterError) Is(target error) bool { return target == ErrParameter }
