package oauth2password

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ServerError is returned when the token server answers with an error status
// or with a body that is not valid JSON. It carries the raw response so the
// caller sees exactly what the server said.
type ServerError struct {
	StatusCode int
	Body       []byte
	Payload    map[string]interface{}
}

func (e *ServerError) Error() string {
	if code, ok := e.Payload["error"].(string); ok && code != "" {
		return fmt.Sprintf("oauth2password: server returned status %d (%s)", e.StatusCode, code)
	}
	return fmt.Sprintf("oauth2password: server returned status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// post issues a form-url-encoded POST and parses the JSON response body.
// An error status or a non-JSON body yields a *ServerError.
func (a *Authenticator) post(ctx context.Context, endpoint string, body url.Values, headers http.Header) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth2password: failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth2password: request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauth2password: failed to read response body: %w", err)
	}

	var payload map[string]interface{}
	parseErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: raw, Payload: payload}
	}
	if parseErr != nil {
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: raw}
	}

	return payload, nil
}
