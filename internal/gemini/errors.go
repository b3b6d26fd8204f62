package gemini

import "fmt"

// ErrTimeout indicates the call exceeded its deadline. Never retried.
type ErrTimeout struct {
	Err error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("gemini request timed out: %v", e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// ErrUnavailable indicates the upstream reported temporary unavailability
// (429 or 5xx). The client retries this class exactly once; when it is
// returned to a caller the retry has already been spent.
type ErrUnavailable struct {
	Status int
	Err    error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("gemini unavailable (status %d): %v", e.Status, e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrRejected indicates the upstream rejected the request (4xx). Never
// retried; the request will not get better.
type ErrRejected struct {
	Status int
	Body   string
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("gemini rejected request (status %d): %s", e.Status, e.Body)
}

// ErrTransport indicates a connection-level failure: refusal, an
// interrupted stream, or a response with no usable content.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("gemini transport error: %v", e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }
