package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/authcenter/authctl/internal/cli/auth"
)

// Response is the outcome of one call: the HTTP status and the raw body.
// Locally synthesized failures use the same shape as backend replies.
type Response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// OK reports whether the backend answered with status 200
func (r *Response) OK() bool {
	return r.Status == http.StatusOK
}

// Envelope is the AuthCenter response body
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Envelope decodes the body as an AuthCenter envelope
func (r *Response) Envelope() (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(r.Data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", err)
	}
	return &env, nil
}

// DecodeData decodes the envelope's data field into v. Bodies that are not
// enveloped are decoded whole.
func (r *Response) DecodeData(v any) error {
	env, err := r.Envelope()
	if err == nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func synthesized(status int, message string, cause error) *Response {
	env := Envelope{Code: status, Message: message}
	if cause != nil {
		env.Error = cause.Error()
	}
	data, _ := json.Marshal(env)
	return &Response{Status: status, Data: data}
}

func transportFailure(err error) *Response {
	return synthesized(http.StatusInternalServerError, "request error: "+err.Error(), err)
}

func notAuthenticated(message string) *Response {
	return synthesized(http.StatusUnauthorized, message, nil)
}

// normalizeBody keeps Data marshalable: empty bodies become null and
// non-JSON bodies become a JSON string.
func normalizeBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(body) {
		return body
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}

type tokenTriple struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// parseTokens extracts the token triple from a login or refresh reply.
// Both {code:200,data:{...}} and the flat {access_token,...} shape are accepted.
func parseTokens(body []byte) (auth.Session, bool) {
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
		tokenTriple
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return auth.Session{}, false
	}

	var t tokenTriple
	switch {
	case env.Code == http.StatusOK && len(env.Data) > 0 && string(env.Data) != "null":
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return auth.Session{}, false
		}
	case env.AccessToken != "":
		t = env.tokenTriple
	}

	session := auth.Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, UserID: t.UserID}
	complete := session.AccessToken != "" && session.RefreshToken != "" && session.UserID != ""
	return session, complete
}
