package spec

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fixture document was rejected.
type ErrorKind int

const (
	// InvalidFormat means the document is not a mapping or holds a non-string key.
	InvalidFormat ErrorKind = iota + 1
	// MissingField means a required field is absent.
	MissingField
	// UnsupportedMethod means the method name is not one of Methods.
	UnsupportedMethod
	// InvalidStatus means the status is unparseable or outside 100-599.
	InvalidStatus
	// InvalidLatency means the latency is negative, unparseable or too large.
	InvalidLatency
	// InvalidJSON means the body could not be encoded as JSON.
	InvalidJSON
)

var kindNames = map[ErrorKind]string{
	InvalidFormat:     "invalidFormat",
	MissingField:      "missingField",
	UnsupportedMethod: "unsupportedMethod",
	InvalidStatus:     "invalidStatus",
	InvalidLatency:    "invalidLatency",
	InvalidJSON:       "invalidJSON",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseError is returned by Parse for every document it rejects.
type ParseError struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	switch e.Kind {
	case InvalidFormat:
		return fmt.Sprintf("Invalid YAML structure: %s", e.Detail)
	case MissingField:
		return fmt.Sprintf("Missing required field '%s'", e.Detail)
	case UnsupportedMethod:
		return fmt.Sprintf("Unsupported HTTP method '%s'", e.Detail)
	case InvalidStatus:
		return fmt.Sprintf("Invalid status code '%s'", e.Detail)
	case InvalidLatency:
		return fmt.Sprintf("Invalid latency value '%s'", e.Detail)
	case InvalidJSON:
		if e.Detail != "" {
			return fmt.Sprintf("JSON field is not encodable: %s", e.Detail)
		}
		return "JSON field is not encodable"
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsKind reports whether err is, or wraps, a ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Kind == kind
}

func newParseError(kind ErrorKind, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
