package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// tokenLifetime is how long a login token is trusted before logging in again.
// The store issues tokens valid for 24h.
const tokenLifetime = 23 * time.Hour

// Credentials identify the store account. They are supplied by the caller and
// never persisted by this package.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) empty() bool {
	return c.Username == "" || c.Password == ""
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// loadToken loads a previously saved token from disk. A missing file is not an error.
func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("corrupt token file (delete %s to re-authenticate): %w", path, err)
	}
	return &tok, nil
}

// saveToken persists a token to disk.
func saveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling token: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("saving token file: %w", err)
	}
	return nil
}

// loginSource is an oauth2.TokenSource that logs in with the store credentials.
type loginSource struct {
	ctx    context.Context
	client *Client
}

func (s *loginSource) Token() (*oauth2.Token, error) {
	return s.client.login(s.ctx)
}

// login exchanges the credentials for a bearer token and caches it on disk.
func (c *Client) login(ctx context.Context) (*oauth2.Token, error) {
	if c.creds.empty() {
		return nil, &AuthError{Err: errors.New("no store credentials configured")}
	}
	request := loginRequest{Username: c.creds.Username, Password: c.creds.Password}
	body, err := c.withRetry(ctx, "POST /login", func() ([]byte, error) {
		return c.do(ctx, c.base, http.MethodPost, c.loginURL, "/login", request)
	})
	if isAuthStatus(err) {
		return nil, &AuthError{Err: err}
	}
	if err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	if resp.Token == "" {
		return nil, &AuthError{Err: errors.New("login response carried no token")}
	}

	tok := &oauth2.Token{
		AccessToken: resp.Token,
		TokenType:   "Bearer",
		Expiry:      c.now().Add(tokenLifetime),
	}
	if err := saveToken(c.tokenFile, tok); err != nil {
		c.logger.Warn("could not save store token", "error", err)
	}
	c.freshLogin = true
	c.logger.Debug("logged in to store", "user", c.creds.Username)
	return tok, nil
}

// resetToken drops the cached token so the next request logs in again.
func (c *Client) resetToken() {
	if c.tokenFile != "" {
		if err := os.Remove(c.tokenFile); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("could not remove stale store token", "error", err)
		}
	}
	c.useToken(nil)
}

// useToken installs the token source and the authorizing HTTP client.
// A valid cached token is reused until it expires; after that the login
// source is consulted.
func (c *Client) useToken(cached *oauth2.Token) {
	if cached != nil && !cached.Valid() {
		cached = nil
	}
	c.source = oauth2.ReuseTokenSource(cached, &loginSource{ctx: c.ctx, client: c})
	api := oauth2.NewClient(context.WithValue(c.ctx, oauth2.HTTPClient, c.base), c.source)
	api.Timeout = c.base.Timeout
	c.api = api
}
