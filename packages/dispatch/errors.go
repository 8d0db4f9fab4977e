package dispatch

import "fmt"

const (
	// CodeValidation marks SSRF guard rejections and malformed targets.
	CodeValidation = "VALIDATION"
	// CodeBody marks a request body that could not be built, such as
	// malformed JSON. No network call is attempted.
	CodeBody = "BODY"
	// CodeTransport marks connection, timeout, and TLS failures during the
	// call itself.
	CodeTransport = "TRANSPORT"
)

// Error is a typed dispatch failure used for stable API mapping. Callers
// branch on Code rather than message content.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &Error{Code: code, Message: msg, Cause: cause}
}
