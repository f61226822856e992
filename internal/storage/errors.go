package storage

import "fmt"

// TransportError reports that the storage service could not be reached on any
// probe path, including the list fallback. Callers must not interpret it as
// "object does not exist".
type TransportError struct {
	// Endpoint is the storage base URL that was unreachable.
	Endpoint string
	// Err is the last underlying transport failure.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("storage endpoint %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UploadRejectedError reports a non-success HTTP status on upload. The
// response body is retained for diagnostics.
type UploadRejectedError struct {
	// Key is the object key whose upload was rejected.
	Key string
	// StatusCode is the HTTP status returned by the service.
	StatusCode int
	// Body is the raw response body.
	Body string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("upload of %s rejected with status %d: %s", e.Key, e.StatusCode, e.Body)
}
