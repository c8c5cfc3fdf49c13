package spec

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/zerbitx/gnockfs/encode"
	"gopkg.in/yaml.v2"
)

// DefaultStatus is served when a fixture does not declare one.
const DefaultStatus = http.StatusOK

const (
	fieldMethod  = "method"
	fieldStatus  = "status"
	fieldLatency = "latency"
	fieldBody    = "body"

	// older fixtures carry their payload under "json"
	fieldLegacyBody = "json"
)

const maxLatencyMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// Parse turns a fixture document into a RouteDefinition. Every rejection is a
// *ParseError.
func Parse(document []byte) (*RouteDefinition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(document, &raw); err != nil {
		return nil, newParseError(InvalidFormat, "%s", err)
	}

	fields, ok := raw.(map[interface{}]interface{})
	if !ok {
		return nil, newParseError(InvalidFormat, "document is not a mapping")
	}

	method, err := parseMethod(fields[fieldMethod])
	if err != nil {
		return nil, err
	}

	status, err := parseStatus(fields[fieldStatus])
	if err != nil {
		return nil, err
	}

	latency, err := parseLatency(fields[fieldLatency])
	if err != nil {
		return nil, err
	}

	value, ok := fields[fieldBody]
	if !ok {
		value, ok = fields[fieldLegacyBody]
	}
	if !ok {
		return nil, newParseError(MissingField, fieldBody)
	}

	body, err := encodeBody(value)
	if err != nil {
		return nil, err
	}

	return &RouteDefinition{
		Method:  method,
		Status:  status,
		Latency: latency,
		Body:    body,
	}, nil
}

func parseMethod(value interface{}) (Method, error) {
	if value == nil {
		return MethodGet, nil
	}

	name, ok := value.(string)
	if !ok {
		return "", newParseError(UnsupportedMethod, "%v", value)
	}

	method, ok := ParseMethod(name)
	if !ok {
		return "", newParseError(UnsupportedMethod, "%s", name)
	}

	return method, nil
}

func parseStatus(value interface{}) (int, error) {
	if value == nil {
		return DefaultStatus, nil
	}

	code, ok := toInt(value)
	if !ok || code < 100 || code > 599 {
		return 0, newParseError(InvalidStatus, "%v", value)
	}

	return int(code), nil
}

func parseLatency(value interface{}) (time.Duration, error) {
	if value == nil {
		return 0, nil
	}

	millis, ok := toInt(value)
	if !ok || millis < 0 || millis > maxLatencyMillis {
		return 0, newParseError(InvalidLatency, "%v", value)
	}

	return time.Duration(millis) * time.Millisecond, nil
}

// toInt accepts the integer shapes yaml.v2 produces plus decimal strings.
func toInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	return 0, false
}

func encodeBody(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}

	normalized, err := normalize(value)
	if err != nil {
		return nil, err
	}

	body, err := encode.Canonical(normalized)
	if err != nil {
		return nil, newParseError(InvalidJSON, "%s", err)
	}

	return body, nil
}

// normalize rewrites yaml.v2's interface keyed maps into string keyed ones so
// encoding/json can handle them.
func normalize(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			name, ok := key.(string)
			if !ok {
				return nil, newParseError(InvalidFormat, "non-string key '%v'", key)
			}

			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[name] = n
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	return value, nil
}

// String is used in log fields.
func (d *RouteDefinition) String() string {
	return fmt.Sprintf("%s %d (%s, %d bytes)", d.Method, d.Status, d.Latency, len(d.Body))
}
