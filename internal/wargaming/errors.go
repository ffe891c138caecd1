package wargaming

import "fmt"

// RequestError is an error reported by the API itself, or a transport
// failure while talking to it (Code 0).
type RequestError struct {
	Operation string
	Code      int
	Field     string
	Message   string
	Value     string
}

func (e *RequestError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("wargaming: %s: request error %d: %s (field=%s value=%q)",
			e.Operation, e.Code, e.Message, e.Field, e.Value)
	}
	return fmt.Sprintf("wargaming: %s: request error %d: %s", e.Operation, e.Code, e.Message)
}

// ValidationError reports an invalid request parameter or an API payload
// that does not have the expected shape.
type ValidationError struct {
	Operation string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wargaming: %s: validation error: %s", e.Operation, e.Message)
}
