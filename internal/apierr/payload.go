package apierr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Failure is an application error found inside a 2xx body.
type Failure struct {
	// Status is the embedded numeric code when the provider sends one that mirrors HTTP.
	Status  int
	Code    string
	Message string
}

// PayloadCheck decodes a provider envelope. It returns (nil, nil) for a healthy
// body, a Failure for an application error, and an error when the body is not
// a well-formed envelope at all.
type PayloadCheck func(body []byte) (*Failure, error)

// newsEnvelope is the part of every news provider response that signals errors:
// {"status":"error","code":"apiKeyInvalid","message":"..."}.
type newsEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewsPayload treats any status other than "ok" as an application error.
func NewsPayload(body []byte) (*Failure, error) {
	var env newsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding news envelope: %w", err)
	}
	if env.Status == "" || env.Status == "ok" {
		return nil, nil
	}
	msg := env.Message
	if msg == "" {
		msg = "An unknown error occurred in the News API"
	}
	return &Failure{Status: newsCodeStatus[env.Code], Code: env.Code, Message: msg}, nil
}

// newsCodeStatus maps the documented news provider error codes onto the HTTP
// status they stand for. Unlisted codes stay application errors.
var newsCodeStatus = map[string]int{
	"apiKeyDisabled":     401,
	"apiKeyExhausted":    429,
	"apiKeyInvalid":      401,
	"apiKeyMissing":      401,
	"parameterInvalid":   400,
	"parametersMissing":  400,
	"rateLimited":        429,
	"sourceDoesNotExist": 404,
	"sourcesTooMany":     400,
}

// financeEnvelope is the part of every finance provider response that signals errors:
// {"code":429,"message":"...","status":"error"}.
type financeEnvelope struct {
	Code    *int   `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FinancePayload treats an embedded code other than 200, or status "error", as an application error.
// Array bodies carry no envelope and are accepted as is.
func FinancePayload(body []byte) (*Failure, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("decoding finance envelope: invalid JSON array")
		}
		return nil, nil
	}
	var env financeEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding finance envelope: %w", err)
	}
	msg := env.Message
	if msg == "" {
		msg = "An unknown error occurred in the Finance API"
	}
	if env.Code != nil && *env.Code != 0 && *env.Code != 200 {
		return &Failure{Status: *env.Code, Message: msg}, nil
	}
	if env.Status == "error" {
		return &Failure{Message: msg}, nil
	}
	return nil, nil
}

// MessageFromBody extracts a provider message from an error body, if it has one.
func MessageFromBody(body []byte) string {
	var v struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return v.Message
}
