package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Returned when the remote resource does not exist.
// HttpStatusError with status 404 matches this through errors.Is.
var ErrNotFound = errors.New("resource not found")

// Connection level failure: DNS, dial, TLS or timeout. Always retryable.
type NetworkError struct {
	Err error
}

func (self *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", self.Err)
}

func (self *NetworkError) Unwrap() error {
	return self.Err
}

// Response carried a non-success status code
type HttpStatusError struct {
	Status int
}

func (self *HttpStatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", self.Status, http.StatusText(self.Status))
}

func (self *HttpStatusError) Is(target error) bool {
	return target == ErrNotFound && self.Status == http.StatusNotFound
}

// Server side errors and throttling may be retried, client errors may not
func (self *HttpStatusError) IsRetryable() bool {
	return self.Status >= 500 || self.Status == http.StatusTooManyRequests
}

// Payload that doesn't parse into the expected shape.
// Fatal for the contract being processed, not for the run.
type SchemaValidationError struct {
	What string
	Err  error
}

func (self *SchemaValidationError) Error() string {
	return fmt.Sprintf("malformed %s: %v", self.What, self.Err)
}

func (self *SchemaValidationError) Unwrap() error {
	return self.Err
}
