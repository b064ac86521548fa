package logging

import "fmt"

// OperationError ties an error to the pipeline step that produced it and the
// classification request it belongs to. Operation names are dotted, for
// example "classifier.infer" or "cache.get.classification".
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

// Error renders the step and request id ahead of the cause so a single log
// line or HTTP error body identifies where an attempt failed.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap exposes the cause, so callers can still match sentinels such as
// model.ErrModelLoad or classifier.ErrInferenceTimeout with errors.Is.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with the step and request it failed in. It
// returns nil when err is nil, so it can wrap a call's result directly.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}
