package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/thoughtchain/internal/config"
	"github.com/kalambet/thoughtchain/internal/dispatch"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// newAPIClient is a variable so tests can point commands at an httptest server.
var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.Token == "" {
		return nil, errors.New("no API token configured: start the server once or run `thoughtchain config set server.token <token>`")
	}

	return &apiClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:   cfg.Server.Token,
		// Report generation may take two full retry windows.
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is thoughtchain running? (%w)", err)
	}
	return resp, nil
}

// call sends a request and decodes the reply envelope. A reply with
// success=false is returned without error; callers decide whether that is
// fatal. Transport, auth and decoding problems are errors.
func (c *apiClient) call(ctx context.Context, method, path string, body any) (dispatch.Response, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return dispatch.Response{}, err
	}
	return decodeEnvelope(resp)
}

// send posts an envelope message to /messages.
func (c *apiClient) send(ctx context.Context, req dispatch.Request) (dispatch.Response, error) {
	return c.call(ctx, http.MethodPost, "/messages", req)
}

func decodeEnvelope(resp *http.Response) (dispatch.Response, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return dispatch.Response{}, fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}

	var out dispatch.Response
	if err := json.Unmarshal(data, &out); err != nil || (!out.Success && out.Error == "") {
		if resp.StatusCode >= 400 {
			return dispatch.Response{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		}
		if err != nil {
			return dispatch.Response{}, fmt.Errorf("decoding response: %w", err)
		}
	}
	return out, nil
}

// check turns a failed envelope into an error.
func check(resp dispatch.Response) (dispatch.Response, error) {
	if !resp.Success {
		if resp.Code != "" {
			return resp, fmt.Errorf("%s (%s)", resp.Error, resp.Code)
		}
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}
