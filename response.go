package relayer

import "encoding/json"

// Response is the envelope returned to callers: a status code, a human
// readable message, and on success the encoded EmailAuthInput JSON.
type Response struct {
	// Code is 0 on success, 1 on failure.
	Code uint8 `json:"code"`

	// Msg describes the outcome.
	Msg string `json:"msg"`

	// RequestID correlates the response with logs. Optional.
	RequestID string `json:"request_id,omitempty"`

	// EmailAuthInput is the JSON-encoded input, nil on failure.
	EmailAuthInput *string `json:"email_auth_input"`
}

// SuccessResponse wraps an encoded input in a success envelope.
func SuccessResponse(input string) *Response {
	return &Response{
		Code:           0,
		Msg:            "success generate email input",
		EmailAuthInput: &input,
	}
}

// ErrorResponse wraps a failure in an error envelope.
func ErrorResponse(msg string, err error) *Response {
	full := msg
	if err != nil {
		full = msg + ": " + err.Error()
	}
	return &Response{
		Code: 1,
		Msg:  full,
	}
}

// ToJSON renders the envelope. The struct contains nothing json.Marshal
// can reject.
func (r *Response) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}
