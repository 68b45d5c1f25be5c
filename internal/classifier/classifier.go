package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/plantdoc/internal/diagnosis"
)

// Image is the raw upload forwarded to the classification service.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Client exposes the subset of the classification service used by the frontend.
type Client interface {
	Predict(ctx context.Context, img Image) (*diagnosis.Result, error)
}

// ErrMalformedResponse is returned when a successful response body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed classification response")

// TransferError reports a network failure or a non-2xx status from the service.
// StatusCode is zero when no response was received.
type TransferError struct {
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classification service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("classification service unreachable: %v", e.Err)
}

// Unwrap returns the underlying transport error, if any.
func (e *TransferError) Unwrap() error {
	return e.Err
}
