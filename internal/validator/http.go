package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tabapp/tabapp/internal/identity"
)

// HTTP validates credentials through the directory's /users endpoint.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option customises an HTTP validator.
type Option func(*HTTP)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(v *HTTP) {
		if h != nil {
			v.httpClient = h
		}
	}
}

// WithTimeout bounds each directory call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(v *HTTP) {
		v.timeout = d
	}
}

// NewHTTP constructs a validator pointing at the directory base URL.
func NewHTTP(base string, opts ...Option) (*HTTP, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("directory url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	v := &HTTP{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate returns the identity records matching login and password.
func (v *HTTP) Validate(ctx context.Context, login, password string) ([]identity.Record, error) {
	q := url.Values{}
	q.Set("login", login)
	q.Set("pass", password)

	var users []DirectoryUser
	if err := v.get(ctx, "/users?"+q.Encode(), &users); err != nil {
		return nil, err
	}
	return records(users), nil
}

// ListUsers returns every directory user.
func (v *HTTP) ListUsers(ctx context.Context) ([]DirectoryUser, error) {
	var users []DirectoryUser
	if err := v.get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (v *HTTP) get(ctx context.Context, path string, dst any) error {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrNetwork, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	return nil
}
