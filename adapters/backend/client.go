// Package backend is an HTTP client for the tonauth API. It implements the
// challenge and proof ports so a session can verify against a remote server.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
	"github.com/layer-3/tonauth/service"
	apihttp "github.com/layer-3/tonauth/transport/http"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a tonauth backend over HTTP/JSON
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ ports.ChallengeSource = (*Client)(nil)
	_ ports.ProofChecker    = (*Client)(nil)
)

// NewClient creates a client for the backend at baseURL (e.g. "http://localhost:8080")
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateChallenge requests a new TonProof payload
func (c *Client) CreateChallenge(ctx context.Context) (core.IssuedChallenge, error) {
	var issued core.IssuedChallenge
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate_payload", "", nil, &issued); err != nil {
		return core.IssuedChallenge{}, err
	}
	return issued, nil
}

// CheckProof submits a proof. Malformed proofs come back as a 400 carrying
// the check results; they are returned together with core.ErrMalformedProof.
func (c *Client) CheckProof(ctx context.Context, req core.ProofCheckRequest) (core.ProofCheck, error) {
	var resp apihttp.CheckProofResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/check_proof", "", apihttp.NewCheckProofRequest(req), &resp)
	result := resp.Checks
	result.Message = resp.Error
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return core.ProofCheck{Result: result}, fmt.Errorf("%s: %w", apiErr.Message, core.ErrMalformedProof)
		}
		return core.ProofCheck{}, err
	}
	return core.ProofCheck{Result: result, Token: resp.Token}, nil
}

// CheckSignData asks the backend to verify a sign-data result
func (c *Client) CheckSignData(ctx context.Context, req apihttp.CheckSignDataRequest) (service.SignDataCheck, error) {
	var check service.SignDataCheck
	if err := c.doJSON(ctx, http.MethodPost, "/api/check_sign_data", "", req, &check); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return check, fmt.Errorf("%s: %w", apiErr.Message, core.ErrMalformedProof)
		}
		return service.SignDataCheck{}, err
	}
	return check, nil
}

// AccountInfo returns the session behind an access token
func (c *Client) AccountInfo(ctx context.Context, token string) (apihttp.AccountInfoResponse, error) {
	var info apihttp.AccountInfoResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/get_account_info", token, nil, &info); err != nil {
		return apihttp.AccountInfoResponse{}, err
	}
	return info, nil
}

// Logout revokes an access token
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/logout", token, nil, nil)
}

// doJSON sends body as JSON and decodes the response into out. Error
// responses are still decoded into out when their body is JSON.
func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if out != nil {
			_ = json.Unmarshal(respBody, out)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}
