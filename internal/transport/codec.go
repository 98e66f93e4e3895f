// Package transport carries wire requests to the profile API.
//
// The codec renders a model.Request as the form body the API expects
// (field "data" holding base64 of the request's canonical JSON) and parses
// the API's acknowledgement back into a model.Result. HTTPTransport posts
// encoded bodies from a single sender goroutine so callers never block on
// the network.
package transport

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/roach88/profilesync/internal/model"
)

// FormField is the form field that carries the encoded request.
const FormField = "data"

// EngagePath is the API path for profile updates.
const EngagePath = "/engage/"

// ErrRejected is reported when the API acknowledges a request with a
// failure status.
var ErrRejected = errors.New("request rejected by server")

// Encode renders req as a form body: data=base64(canonical JSON).
func Encode(req model.Request) (url.Values, error) {
	raw, err := model.MarshalCanonical(req.Object())
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Kind().String(), err)
	}
	return url.Values{FormField: {base64.StdEncoding.EncodeToString(raw)}}, nil
}

// Decode reverses Encode. It is used by tests and the CLI's dry-run output.
func Decode(body url.Values) (model.Object, error) {
	data := body.Get(FormField)
	if data == "" {
		return nil, fmt.Errorf("decode: missing %q field", FormField)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	var obj model.Object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return obj, nil
}

// Endpoint returns the engage URL for apiHost, with verbose=1 appended when
// verbose acknowledgements are requested.
func Endpoint(apiHost string, verbose bool) string {
	u := strings.TrimRight(apiHost, "/") + EngagePath
	if verbose {
		u += "?verbose=1"
	}
	return u
}

// verboseAck is the JSON acknowledgement returned with verbose=1.
type verboseAck struct {
	Status int     `json:"status"`
	Error  *string `json:"error"`
}

// ParseResponse turns an HTTP status and body into a Result.
//
// Non-2xx statuses are failures. A 2xx body of "1" (or verbose
// {"status":1}) is success; "0" or {"status":0} is a failure.
func ParseResponse(status int, body []byte) model.Result {
	if status < 200 || status > 299 {
		return model.Failure(status, body, fmt.Errorf("unexpected status %d", status))
	}

	trimmed := bytes.TrimSpace(body)
	switch string(trimmed) {
	case "1":
		return model.Success(status, body)
	case "0":
		return model.Failure(status, body, ErrRejected)
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var ack verboseAck
		if err := json.Unmarshal(trimmed, &ack); err != nil {
			return model.Failure(status, body, fmt.Errorf("parse acknowledgement: %w", err))
		}
		if ack.Status == 1 {
			return model.Success(status, body)
		}
		if ack.Error != nil && *ack.Error != "" {
			return model.Failure(status, body, fmt.Errorf("%w: %s", ErrRejected, *ack.Error))
		}
		return model.Failure(status, body, ErrRejected)
	}

	return model.Failure(status, body, fmt.Errorf("unrecognized acknowledgement %q", trimmed))
}
