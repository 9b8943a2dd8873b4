// Package types declares the wire envelopes every handler responds with.
package types

// SuccessEnvelope wraps every 2xx payload under a single data key so clients
// can unwrap responses uniformly.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Details is populated only for
// error codes that allow structured detail.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps an APIError for non-2xx responses.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
