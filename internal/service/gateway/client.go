package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL 是未配置 BASE_URL 时使用的 API 地址。
	DefaultBaseURL = "http://127.0.0.1:8000/api/v1"

	DefaultLoginTimeout   = 10 * time.Second
	DefaultProcessTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// Config describes how the client reaches the remote API.
type Config struct {
	BaseURL        string
	LoginTimeout   time.Duration
	ProcessTimeout time.Duration
	HTTPClient     *http.Client
}

// Client issues the login and process calls against the remote API.
// It holds no per-user state and is safe for concurrent use.
type Client struct {
	baseURL        string
	loginTimeout   time.Duration
	processTimeout time.Duration
	httpClient     *http.Client
}

// LoginResponse is the decoded body of a successful login.
type LoginResponse struct {
	AccessToken string
	TokenType   string
	Raw         map[string]any
}

// NewClient builds a Client, filling zero config values with defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	loginTimeout := cfg.LoginTimeout
	if loginTimeout <= 0 {
		loginTimeout = DefaultLoginTimeout
	}

	processTimeout := cfg.ProcessTimeout
	if processTimeout <= 0 {
		processTimeout = DefaultProcessTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:        baseURL,
		loginTimeout:   loginTimeout,
		processTimeout: processTimeout,
		httpClient:     httpClient,
	}
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a username and password for an access token.
// A body without an access_token field is returned as-is; the caller decides
// whether that counts as a failed login.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	payload, err := c.post(ctx, "login", "/login", c.loginTimeout, "", body)
	if err != nil {
		return LoginResponse{}, err
	}

	raw, ok := payload.(map[string]any)
	if !ok {
		return LoginResponse{}, nil
	}

	resp := LoginResponse{Raw: raw}
	if token, ok := raw["access_token"].(string); ok {
		resp.AccessToken = token
	}
	if tokenType, ok := raw["token_type"].(string); ok {
		resp.TokenType = tokenType
	}
	return resp, nil
}

// ProcessQuery forwards a user query for the given thread and returns the
// decoded response body as a generic JSON value. Numbers decode as
// json.Number so they render exactly as the server sent them.
func (c *Client) ProcessQuery(ctx context.Context, query, threadID, accessToken string) (any, error) {
	body := map[string]string{
		"query":     query,
		"thread_id": threadID,
	}
	return c.post(ctx, "process", "/process", c.processTimeout, accessToken, body)
}

func (c *Client) post(ctx context.Context, op, path string, timeout time.Duration, accessToken string, body any) (any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, &Error{Op: op, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[gateway] %s request failed after %s: %v", op, time.Since(started).Round(time.Millisecond), err)
		return nil, &Error{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[gateway] %s returned status=%d", op, resp.StatusCode)
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: string(data)}
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid JSON response: %v", err)}
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "invalid JSON response: unexpected data after top-level value"}
	}

	log.Printf("[gateway] %s ok status=%d elapsed=%s", op, resp.StatusCode, time.Since(started).Round(time.Millisecond))
	return payload, nil
}
