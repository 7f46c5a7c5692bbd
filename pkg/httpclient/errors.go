package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProviderError describes a non-2xx answer from a third-party API.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
}

// ParseResponseError consumes and closes resp.Body and returns a
// *ProviderError. A JSON body of the form {"error": "..."} or
// {"error": {"message": "..."}} contributes its message; any other body is
// kept verbatim, truncated to 1 KiB.
func ParseResponseError(resp *http.Response, provider string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ProviderError{Provider: provider, Status: resp.StatusCode, Message: "unreadable body: " + err.Error()}
	}

	return &ProviderError{Provider: provider, Status: resp.StatusCode, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	return msg
}
