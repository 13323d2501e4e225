// Package protocol defines the wire messages exchanged with clients:
// length-prefixed JSON requests and Success/Error response envelopes.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a request.
type Kind string

// Request kinds.
const (
	KindLogin    Kind = "LOGIN"
	KindRegister Kind = "REGISTER"
	KindRequest  Kind = "REQUEST"
)

// Request is a client message. Code and Body are only meaningful for KindRequest;
// LOGIN and REGISTER carry a Credentials document in Body.
type Request struct {
	Token *string `json:"token"`
	Code  *int    `json:"code"`
	Body  *string `json:"body"`
	Type  Kind    `json:"type"`
}

// Credentials is the body of LOGIN and REGISTER requests.
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=128"`
}

// NewRequest builds a REQUEST message.
func NewRequest(code int, token, body string) Request {
	r := Request{Type: KindRequest, Code: &code}
	if token != "" {
		r.Token = &token
	}
	if body != "" {
		r.Body = &body
	}
	return r
}

// TokenValue returns the token or "" when absent.
func (r Request) TokenValue() string {
	if r.Token == nil {
		return ""
	}
	return *r.Token
}

// BodyValue returns the body or "" when absent.
func (r Request) BodyValue() string {
	if r.Body == nil {
		return ""
	}
	return *r.Body
}

// DecodeRequest parses a request frame.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return r, nil
}

// Encode serializes the request.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
