package resolver

import (
	"net/http"

	"github.com/zerbitx/gnockfs/encode"
)

// ContentType is sent with every fixture response.
const ContentType = "application/json; charset=utf-8"

const (
	notFoundMessage    = "Fixture not found"
	loadFailureMessage = "Failed to load mock response"
)

// Response is a synthesized HTTP response.
type Response struct {
	Status int
	Body   []byte
	// Fixture is the backing file relative to the fixture root, if any.
	Fixture string
}

type errorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NotFoundBody is the body of every 404 this package produces.
func NotFoundBody() []byte {
	body, _ := encode.Canonical(errorPayload{Error: notFoundMessage})
	return body
}

func notFound(fixture string) *Response {
	return &Response{
		Status:  http.StatusNotFound,
		Body:    NotFoundBody(),
		Fixture: fixture,
	}
}

func loadFailure(err error, fixture string) *Response {
	body, encodeErr := encode.Canonical(errorPayload{
		Error:   loadFailureMessage,
		Details: err.Error(),
	})
	if encodeErr != nil {
		body = []byte(`{"error":"` + loadFailureMessage + `"}`)
	}

	return &Response{
		Status:  http.StatusInternalServerError,
		Body:    body,
		Fixture: fixture,
	}
}
