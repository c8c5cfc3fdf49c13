package spec

import (
	"net/http"
	"time"

	"github.com/gofiber/utils"
)

type (
	// Method is an upper case HTTP method name a fixture can answer to.
	Method string

	// RouteDefinition is the parsed form of a single fixture document.
	RouteDefinition struct {
		Method  Method
		Status  int
		Latency time.Duration
		Body    []byte
	}
)

// The methods a fixture may declare, either in the document or in its file name.
const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
)

// Methods lists every supported method in a stable order.
var Methods = []Method{
	MethodGet,
	MethodPost,
	MethodPut,
	MethodPatch,
	MethodDelete,
	MethodHead,
	MethodOptions,
}

var knownMethods = func() map[Method]struct{} {
	known := make(map[Method]struct{}, len(Methods))
	for _, m := range Methods {
		known[m] = struct{}{}
	}
	return known
}()

// ParseMethod matches a method name case-insensitively.
func ParseMethod(name string) (Method, bool) {
	if name == "" {
		return "", false
	}

	m := Method(utils.ToUpper(name))
	_, ok := knownMethods[m]

	return m, ok
}

func (m Method) String() string {
	return string(m)
}

// Lower returns the lower case form used when probing for method specific files.
func (m Method) Lower() string {
	return utils.ToLower(string(m))
}
