// Package supabase is a minimal client for the hosted auth (GoTrue) and data (PostgREST) APIs.
package supabase

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
)

// ErrInvalidCredentials is returned by SignInWithPassword when the provider refuses the credentials.
var ErrInvalidCredentials = errors.New("supabase: invalid credentials")

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.StatusCode, e.Message)
}

// Rejected reports whether the provider refused the request itself (4xx) rather than failing.
// 401 and 403 answer the gateway's own key or row policies, so they count as failures.
func (e *APIError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// User is the subset of the provider's user object the gateway reads.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

// Session is returned by a successful password sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Client calls a Supabase project over HTTP.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// SignUp creates an account. data is stored as the user's metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, data map[string]any) (*User, error) {
	body := map[string]any{"email": email, "password": password}
	if len(data) > 0 {
		body["data"] = data
	}

	// Depending on project settings the provider answers with either a bare user or a session.
	var out struct {
		User
		Nested *User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", body, nil, &out); err != nil {
		return nil, err
	}
	if out.Nested != nil {
		return out.Nested, nil
	}
	return &out.User, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var sess Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		map[string]string{"email": email, "password": password}, nil, &sess)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
			(apiErr.Code == "invalid_grant" || apiErr.Code == "invalid_credentials") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return nil, err
	}
	return &sess, nil
}

// UpdateAppMetadata merges meta into the user's app metadata. Account holders cannot edit
// app metadata themselves, and the call needs the service role key.
func (c *Client) UpdateAppMetadata(ctx context.Context, userID string, meta map[string]any) error {
	if userID == "" {
		return errors.New("supabase: user id required")
	}
	body := map[string]any{"app_metadata": meta}
	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(userID), body, nil, nil)
}

// Insert adds row to table through the data API without reading it back.
func (c *Client) Insert(ctx context.Context, table string, row any) error {
	if table == "" {
		return errors.New("supabase: table required")
	}
	headers := map[string]string{"Prefer": "return=minimal"}
	return c.do(ctx, http.MethodPost, "/rest/v1/"+url.PathEscape(table), row, headers, nil)
}

// Health pings the auth service.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/v1/health", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supabase: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("supabase: create request: %w", err)
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeError(resp.StatusCode, raw)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

// decodeError understands both the auth and the data API error bodies.
func decodeError(status int, raw []byte) *APIError {
	var body struct {
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorCode        string `json:"error_code"`
		Code             any    `json:"code"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	for _, m := range []string{body.Msg, body.ErrorDescription, body.Message, body.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case body.Error != "" && body.ErrorDescription != "":
		apiErr.Code = body.Error
	default:
		// PostgREST sends string codes ("23505"); GoTrue echoes the numeric status.
		if s, ok := body.Code.(string); ok {
			apiErr.Code = s
		}
	}
	return apiErr
}
