package wallet

import "errors"

// Outcome categorises a failed facade operation for the caller.
type Outcome string

const (
	OutcomeNotFound   Outcome = "not_found"
	OutcomeValidation Outcome = "validation"
	OutcomeBusiness   Outcome = "business"
	OutcomeConflict   Outcome = "conflict"
	OutcomeFailure    Outcome = "failure"
)

// OutcomeError is the only error type returned by Service.
type OutcomeError struct {
	Kind    Outcome
	Message string
	Err     error
}

func (e *OutcomeError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *OutcomeError) Unwrap() error {
	return e.Err
}

// OutcomeOf returns the category of err. Errors that did not come from the
// facade are treated as failures.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return ""
	}
	var oe *OutcomeError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return OutcomeFailure
}

func fail(kind Outcome, message string, err error) *OutcomeError {
	return &OutcomeError{Kind: kind, Message: message, Err: err}
}
