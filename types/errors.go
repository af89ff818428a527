package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInputRejected     ErrorKind = "input_rejected"
	KindConversionFailure ErrorKind = "conversion_failure"
	KindTransportFailure  ErrorKind = "transport_failure"
)

// ErrNoText is returned by text extraction and OCR when the result is empty.
var ErrNoText = errors.New("no text found")

// OpError carries the failure class of an operation. Message is safe to show
// to the user; Err holds the underlying cause.
type OpError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *OpError) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("[%s] %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func Rejected(op, message string) *OpError {
	return &OpError{Kind: KindInputRejected, Op: op, Message: message}
}

func ConversionFailed(op string, err error) *OpError {
	return &OpError{Kind: KindConversionFailure, Op: op, Err: err}
}

func TransportFailed(op string, err error) *OpError {
	return &OpError{Kind: KindTransportFailure, Op: op, Err: err}
}

// KindOf classifies err. Errors without an OpError in their chain count as
// conversion failures.
func KindOf(err error) ErrorKind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindConversionFailure
}

func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if KindOf(err) == KindInputRejected {
		return OutcomeRejected
	}
	return OutcomeFailed
}

// Transport marks err as a transport failure unless it already carries a kind.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return TransportFailed(op, err)
}
