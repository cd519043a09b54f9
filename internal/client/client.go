// Package client is an HTTP client for the news chat REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/newschat/internal/domain"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL. A nil httpClient uses a client with a
// 30 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// CreateSession starts a new server session and returns its token.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionToken string `json:"session_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/session/start", nil, &resp); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if resp.SessionToken == "" {
		return "", fmt.Errorf("create session: empty token in response")
	}
	return resp.SessionToken, nil
}

// FetchHistory returns the messages recorded for token.
func (c *Client) FetchHistory(ctx context.Context, token string) ([]domain.Message, error) {
	var resp struct {
		History []domain.Message `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/session/history/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return resp.History, nil
}

// ClearSession deletes the server session for token.
func (c *Client) ClearSession(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodDelete, "/session/clear/"+url.PathEscape(token), nil, nil); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// QueryResult is the answer to a one-shot query.
type QueryResult struct {
	SessionToken string `json:"session_token"`
	Answer       string `json:"answer"`
}

// Query asks a single question over REST. An empty token lets the server
// create a session, whose token is returned in the result.
func (c *Client) Query(ctx context.Context, token, query string) (QueryResult, error) {
	body := struct {
		Query        string `json:"query"`
		SessionToken string `json:"session_token,omitempty"`
	}{Query: query, SessionToken: token}

	var res QueryResult
	if err := c.do(ctx, http.MethodPost, "/chat/query", body, &res); err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Detail != "":
			msg = payload.Detail
		case payload.Error != "":
			msg = payload.Error
		}
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
