// Package kv is the client of the remote key-value store. It owns the retry
// and authentication-fallback policy: transient failures are retried with
// bounded exponential backoff, and an authentication failure switches the
// client into local mode, where reads and writes go to a Cache.
package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// maxResponseSize bounds response body reads.
const maxResponseSize int64 = 64 << 20

// Store is the key-value contract the registry, log and export build on.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Put(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	// Attempts is the total number of tries per request. Values below 1 mean 1.
	Attempts int
	// BaseDelay is the wait before the second try; it doubles for each further try.
	BaseDelay time.Duration
}

// DefaultRetryPolicy makes three attempts with 500ms and 1s waits in between.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 500 * time.Millisecond}

// Config holds configuration for creating a Client.
type Config struct {
	// URL is the store's base URL, e.g. "https://kv.example.com".
	URL string
	// Namespace is the project namespace the data lives under.
	Namespace string
	Credentials Credentials
	// TokenFile caches the login token between invocations. Empty disables caching.
	TokenFile string
	// HTTPClient is used for all requests. If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client
	// Logger receives diagnostics such as retries and local-mode warnings.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Cache backs local mode. If nil, an in-memory cache is used.
	Cache Cache
	Retry RetryPolicy
}

// Client is a Store backed by the remote key-value service.
// A Client is meant for a single command invocation and is not safe for
// concurrent use.
type Client struct {
	ctx       context.Context
	loginURL  string
	dataURL   string
	creds     Credentials
	tokenFile string
	base      *http.Client
	logger    *slog.Logger
	cache     Cache
	retry     RetryPolicy
	now       func() time.Time

	source     oauth2.TokenSource
	api        *http.Client
	freshLogin bool
	degraded   error
}

var _ Store = (*Client)(nil)

// NewClient creates a store client. ctx scopes the token source used for
// logins and should live as long as the client.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.New("kv: store URL is required")
	}
	if _, err := url.Parse(config.URL); err != nil {
		return nil, fmt.Errorf("kv: invalid store URL %q: %w", config.URL, err)
	}
	if config.Namespace == "" {
		return nil, errors.New("kv: namespace is required")
	}

	base := config.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 10 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := config.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	retry := config.Retry
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}

	root := strings.TrimRight(config.URL, "/")
	c := &Client{
		ctx:       ctx,
		loginURL:  root + "/login",
		dataURL:   root + "/" + url.PathEscape(config.Namespace) + "/data",
		creds:     config.Credentials,
		tokenFile: config.TokenFile,
		base:      base,
		logger:    logger,
		cache:     cache,
		retry:     retry,
		now:       time.Now,
	}

	cached, err := loadToken(config.TokenFile)
	if err != nil {
		// Corrupt token file: warn and log in again.
		logger.Warn("ignoring cached store token", "error", err)
		cached = nil
	}
	c.useToken(cached)
	return c, nil
}

// Authenticate makes sure a bearer token is available, logging in if needed.
// On an authentication failure the client switches to local mode and the
// returned error matches ErrDegradedAuth; the client stays usable.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.degraded != nil {
		return c.degraded
	}
	if c.creds.empty() {
		err := &AuthError{Err: errors.New("no store credentials configured")}
		c.degrade(err)
		return err
	}
	if _, err := c.source.Token(); err != nil {
		if errors.Is(err, ErrDegradedAuth) {
			c.degrade(err)
		}
		return err
	}
	c.warnPending(ctx)
	return nil
}

// Degraded reports whether the client is in local mode.
func (c *Client) Degraded() bool {
	return c.degraded != nil
}

// Get returns the value stored at key, or an error matching ErrKeyNotFound.
func (c *Client) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if c.Degraded() {
		return c.localGet(ctx, key)
	}
	if pending, err := c.hasPending(ctx, key); err != nil {
		return nil, err
	} else if pending {
		return c.localGet(ctx, key)
	}

	body, err := c.call(ctx, http.MethodGet, keyPath(key), nil)
	switch {
	case isNotFound(err):
		c.refreshCache(ctx, key, nil)
		return nil, fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	case errors.Is(err, ErrDegradedAuth):
		c.degrade(err)
		return c.localGet(ctx, key)
	case err != nil:
		return nil, err
	}

	var resp valueResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding value of %s: %w", key, err)
	}
	value := decodeValue(resp.Data.Value)
	c.refreshCache(ctx, key, value)
	return value, nil
}

// Put replaces the value stored at key.
func (c *Client) Put(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("kv: value for %s is not valid JSON", key)
	}
	if c.Degraded() {
		return c.localPut(ctx, key, value)
	}
	if pending, err := c.hasPending(ctx, key); err != nil {
		return err
	} else if pending {
		return c.localPut(ctx, key, value)
	}

	err := c.putRemote(ctx, key, value)
	if errors.Is(err, ErrDegradedAuth) {
		c.degrade(err)
		return c.localPut(ctx, key, value)
	}
	if err != nil {
		return err
	}
	if err := c.cache.Store(ctx, key, value, true); err != nil {
		c.logger.Warn("could not update local cache", "key", key, "error", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key returns an error matching ErrKeyNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.Degraded() {
		return c.localDelete(ctx, key)
	}
	if pending, err := c.hasPending(ctx, key); err != nil {
		return err
	} else if pending {
		return c.localDelete(ctx, key)
	}

	err := c.deleteRemote(ctx, key)
	if errors.Is(err, ErrDegradedAuth) {
		c.degrade(err)
		return c.localDelete(ctx, key)
	}
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	if cacheErr := c.cache.Remove(ctx, key, true); cacheErr != nil {
		c.logger.Warn("could not update local cache", "key", key, "error", cacheErr)
	}
	return err
}

// ListKeys returns every key in the namespace. Online, keys with pending local
// writes are merged in and locally deleted keys are left out.
func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	if c.Degraded() {
		return c.cache.Keys(ctx)
	}

	body, err := c.call(ctx, http.MethodGet, "", nil)
	switch {
	case isNotFound(err):
		return c.mergePending(ctx, []string{})
	case errors.Is(err, ErrDegradedAuth):
		c.degrade(err)
		return c.cache.Keys(ctx)
	case err != nil:
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding key list: %w", err)
	}
	keys := make([]string, 0, len(resp.Data))
	for _, item := range resp.Data {
		keys = append(keys, item.Key)
	}
	return c.mergePending(ctx, keys)
}

type keyValue struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type valueResponse struct {
	Data keyValue `json:"data"`
}

type listResponse struct {
	Data []keyValue `json:"data"`
}

// createRequest and updateRequest carry values as JSON-encoded strings, which
// is how the store keeps them.
type createRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type updateRequest struct {
	Value string `json:"value"`
}

func keyPath(key string) string {
	return "/" + url.PathEscape(key)
}

// decodeValue unwraps a value the store returned as a JSON string. Strings
// that do not hold JSON are returned as the JSON string itself.
func decodeValue(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return raw
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return raw
}

func (c *Client) putRemote(ctx context.Context, key string, value json.RawMessage) error {
	_, err := c.call(ctx, http.MethodPut, keyPath(key), updateRequest{Value: string(value)})
	if isNotFound(err) {
		_, err = c.call(ctx, http.MethodPost, "", createRequest{Key: key, Value: string(value)})
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (c *Client) deleteRemote(ctx context.Context, key string) error {
	_, err := c.call(ctx, http.MethodDelete, keyPath(key), nil)
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", key, ErrKeyNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// call performs an authorized data request with retries. A 401/403 on a
// token that came from the token file triggers one fresh login.
func (c *Client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	send := func() ([]byte, error) {
		return c.do(ctx, c.api, method, c.dataURL+path, "/data"+path, body)
	}
	data, err := c.withRetry(ctx, method+" /data"+path, send)
	if isAuthStatus(err) && !errors.Is(err, ErrDegradedAuth) && !c.freshLogin {
		c.logger.Debug("store rejected cached token, logging in again")
		c.resetToken()
		data, err = c.withRetry(ctx, method+" /data"+path, send)
	}
	if isAuthStatus(err) && !errors.Is(err, ErrDegradedAuth) {
		return nil, &AuthError{Err: err}
	}
	return data, err
}

// withRetry runs send until it succeeds, fails permanently, or the retry
// budget is spent. Exhausting the budget yields a *NetworkError.
func (c *Client) withRetry(ctx context.Context, op string, send func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			backoff := c.retry.BaseDelay * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		data, err := send()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			return nil, err
		}

		c.logger.Warn("transient store failure",
			"op", op,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, &NetworkError{Attempts: c.retry.Attempts, Err: lastErr}
}

// do performs one HTTP request and returns the response body. Non-2xx
// responses become *StatusError.
func (c *Client) do(ctx context.Context, hc *http.Client, method, rawURL, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := hc.Do(request)
	if err != nil {
		return nil, fmt.Errorf("store request %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: response.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
