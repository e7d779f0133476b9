package grace

import (
	"github.com/sre-norns/wyrd/pkg/grace"
)

// Error is an error that tells the user what to do about it.
type Error interface {
	error
	grace.Error
}

// explainedError keeps the error an actionable one was raised from.
type explainedError struct {
	*grace.ActionableError

	cause error
}

func (e *explainedError) Unwrap() error {
	return e.cause
}

func RaiseError(expected, got, cta string) Error {
	return grace.RaiseError(expected, got, cta).(*grace.ActionableError)
}

// Explain turns err into an actionable error, keeping err as its cause.
func Explain(err error, expected, cta string) Error {
	if err == nil {
		return nil
	}

	return &explainedError{
		ActionableError: grace.RaiseError(expected, err.Error(), cta).(*grace.ActionableError),
		cause:           err,
	}
}
