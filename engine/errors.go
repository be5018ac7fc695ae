package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Store lookups when the referenced row does
// not exist. Handlers map it to a terminal data failure for the single
// execution rather than aborting the batch.
var ErrNotFound = errors.New("record not found")

// Kind classifies a terminal step failure.
type Kind int

const (
	// KindValidation covers missing recipients and broken step
	// configuration. Terminal for the execution, enrollment untouched.
	KindValidation Kind = iota

	// KindProvider covers mail API errors and send timeouts. The provider
	// message is captured verbatim on the execution.
	KindProvider

	// KindData covers dangling references (enrollment, step or lead rows
	// missing). Terminal for the execution.
	KindData

	// KindSystem covers store-level failures. These are not persisted on
	// the execution; they propagate out and abort the poller invocation
	// so the next run retries the still-pending rows.
	KindSystem
)

// StepError is a classified terminal failure produced by a step handler.
type StepError struct {
	Kind    Kind
	Message string
}

func (e *StepError) Error() string { return e.Message }

func validationErr(format string, args ...interface{}) *StepError {
	return &StepError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func providerErr(err error) *StepError {
	return &StepError{Kind: KindProvider, Message: err.Error()}
}

func dataErr(format string, args ...interface{}) *StepError {
	return &StepError{Kind: KindData, Message: fmt.Sprintf(format, args...)}
}

func systemErr(err error) *StepError {
	return &StepError{Kind: KindSystem, Message: err.Error()}
}
