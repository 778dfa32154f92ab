package evolution

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is a successful (2xx) upstream answer. Data holds the decoded
// body when it is a JSON object and is nil otherwise.
type Response struct {
	StatusCode int
	Body       []byte
	Data       map[string]any
}

func newResponse(status int, body []byte) *Response {
	r := &Response{StatusCode: status, Body: body}
	if len(bytes.TrimSpace(body)) > 0 {
		var data map[string]any
		if err := json.Unmarshal(body, &data); err == nil {
			r.Data = data
		}
	}
	return r
}

// SendMessageResponse is the upstream acknowledgement of a sent message.
type SendMessageResponse struct {
	Key              MessageKey     `json:"key"`
	Message          map[string]any `json:"message"`
	MessageTimestamp json.Number    `json:"messageTimestamp"`
	Status           string         `json:"status"`
}

// SendMessage decodes the body as a SendMessageResponse.
func (r *Response) SendMessage() (*SendMessageResponse, error) {
	var out SendMessageResponse
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}
	return &out, nil
}

// MessageID returns key.id from the body, or "" when absent.
func (r *Response) MessageID() string {
	key, _ := r.Data["key"].(map[string]any)
	id, _ := key["id"].(string)
	return id
}
