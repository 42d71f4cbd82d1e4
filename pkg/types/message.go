package types

import "encoding/json"

// Request is a named action sent by a presentation surface or trigger.
type Request struct {
	// ID is an optional correlation id echoed back in the response.
	ID string `json:"id,omitempty"`

	// Action names the operation, e.g. "sign_in" or "extract_leads".
	Action string `json:"action"`

	// Data holds the action payload. It may be empty.
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the uniform envelope returned for every request.
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRequest builds a request, marshaling data into the payload.
func NewRequest(action string, data any) (Request, error) {
	req := Request{Action: action}
	if data == nil {
		return req, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return req, err
	}
	req.Data = raw
	return req, nil
}

// OK creates a successful response.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail creates a failed response carrying a user-facing message.
func Fail(message string) Response {
	return Response{Success: false, Error: message}
}
