package backend

// MissingFieldError reports a session-creation attempt with an incomplete
// connection descriptor.
type MissingFieldError struct {
	// Field is the wire name of the first missing field.
	Field string
}

func (e *MissingFieldError) Error() string {
	return "backend: missing connection info field '" + e.Field + "'"
}

// NetworkError reports a request to the audio node that failed in
// transport: the connection dropped, the write failed, or the node is
// gone. The coordinator never retries these automatically.
type NetworkError struct {
	// Op names the failed operation ("play", "seek", ...).
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return "backend: " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }
