package pipeline

// VerificationError wraps a pipeline failure with a retryability signal so
// the queue layer can decide between requeue and dead-letter.
type VerificationError struct {
	Err       error
	Retryable bool
}

func (e *VerificationError) Error() string {
	return e.Err.Error()
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error) *VerificationError {
	return &VerificationError{Err: err, Retryable: true}
}

func NewFatalError(err error) *VerificationError {
	return &VerificationError{Err: err, Retryable: false}
}
