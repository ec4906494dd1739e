package lockbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ResponseKind discriminates device responses.
type ResponseKind int

const (
	// Success means the device accepted the command.
	Success ResponseKind = iota
	// Failure means the device received and rejected the command.
	Failure
	// SuccessWithPayload is a success carrying data (settings reads).
	SuccessWithPayload
)

func (k ResponseKind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case SuccessWithPayload:
		return "success_with_payload"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is a validated device response.
type Response struct {
	Kind ResponseKind
	// Detail is the device's error message; set only for Failure.
	Detail string
	// Data is the payload; set only for SuccessWithPayload.
	Data json.RawMessage
}

// resultSuccess is the result value of accepted commands.
const resultSuccess = "success"

var (
	errMissingResult = errors.New(`response has no "result"`)
	errMissingError  = errors.New(`failure response has no "error"`)
	errMissingData   = errors.New(`success response has no "data"`)
	errDataNotObject = errors.New(`response "data" is not an object`)
)

type wireResponse struct {
	Result *string         `json:"result"`
	Error  *string         `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// ParseResponse validates a response body. wantData requires a payload on
// success. Any shape outside the protocol is an error.
func ParseResponse(body []byte, wantData bool) (*Response, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if w.Result == nil {
		return nil, errMissingResult
	}

	if *w.Result != resultSuccess {
		if w.Error == nil {
			return nil, errMissingError
		}
		return &Response{Kind: Failure, Detail: *w.Error}, nil
	}

	if !wantData {
		return &Response{Kind: Success}, nil
	}
	if len(w.Data) == 0 || bytes.Equal(w.Data, []byte("null")) {
		return nil, errMissingData
	}
	if trimmed := bytes.TrimSpace(w.Data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errDataNotObject
	}
	return &Response{Kind: SuccessWithPayload, Data: w.Data}, nil
}
