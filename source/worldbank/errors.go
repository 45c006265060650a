package worldbank

import "fmt"

// TransportError means the HTTP call did not complete (connection failure,
// timeout, truncated body).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("worldbank: request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("worldbank: HTTP error %d from %s", e.StatusCode, e.URL)
}

// APIError is a failure reported by the provider inside a successful
// response, e.g. an unknown indicator code.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "worldbank: API error: " + e.Message
}

// MalformedResponseError means the response body does not have the expected
// [metadata, records] shape.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worldbank: unexpected response structure: %s: %v", e.Reason, e.Err)
	}
	return "worldbank: unexpected response structure: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
