package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiError is the decoded error body of a non-2xx answer. StatusCode and
// the occupant fields let commands give targeted remediation.
type apiError struct {
	StatusCode   int
	Code         string
	Message      string
	OccupantID   string
	OccupantName string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// apiClient wraps an HTTP client and the server base URL, sending the
// identity headers the server's trusted-proxy mode expects.
type apiClient struct {
	baseURL    string
	userID     string
	userName   string
	workspaces string
	httpClient *http.Client
}

func newAPIClient(baseURL, userID, userName, workspaces string) *apiClient {
	return &apiClient{
		baseURL:    baseURL,
		userID:     userID,
		userName:   userName,
		workspaces: workspaces,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request and returns the response body.
// Non-2xx answers come back as *apiError.
func (c *apiClient) doRequest(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userID != "" {
		req.Header.Set("X-Remote-User", c.userID)
	}
	if c.userName != "" {
		req.Header.Set("X-Remote-User-Name", c.userName)
	}
	if c.workspaces != "" {
		req.Header.Set("X-Remote-Workspaces", c.workspaces)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to metastore server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp struct {
			Error        string `json:"error"`
			Message      string `json:"message"`
			OccupantID   string `json:"occupant_id"`
			OccupantName string `json:"occupant_name"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
			apiErr.OccupantID = errResp.OccupantID
			apiErr.OccupantName = errResp.OccupantName
		}
		return nil, apiErr
	}

	return respBody, nil
}
