// Package api wraps the outbound HTTP calls the TapKeeper client makes to
// the authentication and vault backend. Every transport-level failure
// (connection error, unreadable or unparseable body) comes back as a
// *TransportError; a parsed {success:false} body is returned as a normal
// response for the caller to interpret.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/models"
	"go.uber.org/zap"
)

// Backend endpoint paths.
const (
	PathLogin    = "/api/auth/login"
	PathScan     = "/api/auth/rfid-scan"
	PathTestScan = "/api/auth/rfid-test"
	PathVerify   = "/api/auth/rfid-verify"
	PathRegister = "/api/auth/register"
	PathLogout   = "/api/auth/logout"
	PathVault    = "/api/vault"
)

// Client talks to one backend instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	scanPath   string
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithScanPath overrides the token scan endpoint, e.g. to point the client
// at the simulated reader.
func WithScanPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.scanPath = path
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient returns a Client sending requests through httpClient to baseURL.
func NewClient(httpClient *http.Client, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		scanPath:   PathScan,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login performs the password check.
func (c *Client) Login(ctx context.Context, username, password string) (models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, "login", http.MethodPost, PathLogin,
		models.LoginRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// ScanToken asks the backend whether a tag has been presented. It returns
// an empty string while nothing has been scanned.
func (c *Client) ScanToken(ctx context.Context) (string, error) {
	var resp models.ScanResponse
	if err := c.do(ctx, "scan", http.MethodGet, c.scanPath, nil, &resp); err != nil {
		return "", err
	}
	if resp.UID == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.UID), nil
}

// VerifyToken checks that uid is the tag bound to userID.
func (c *Client) VerifyToken(ctx context.Context, userID models.UserID, uid string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "verify", http.MethodPost, PathVerify,
		models.VerifyRequest{UserID: userID, RFIDUID: uid}, &resp)
	return resp, err
}

// Register creates an account bound to the captured tag.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "register", http.MethodPost, PathRegister, req, &resp)
	return resp, err
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "logout", http.MethodPost, PathLogout, struct{}{}, &resp)
	return resp, err
}

// PushTestToken feeds a simulated card tap to the backend's test reader.
func (c *Client) PushTestToken(ctx context.Context, uid string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "test token", http.MethodPost, PathTestScan, models.TestTokenRequest{UID: uid}, &resp)
	return resp, err
}

// ListCredentials fetches every vault entry of the signed-in user.
func (c *Client) ListCredentials(ctx context.Context) (models.VaultListResponse, error) {
	var resp models.VaultListResponse
	err := c.do(ctx, "vault list", http.MethodGet, PathVault, nil, &resp)
	return resp, err
}

// AddCredential stores a new vault entry.
func (c *Client) AddCredential(ctx context.Context, draft models.CredentialDraft) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "vault add", http.MethodPost, PathVault, draft, &resp)
	return resp, err
}

// DeleteCredential removes the vault entry with the given id.
func (c *Client) DeleteCredential(ctx context.Context, id string) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, "vault delete", http.MethodDelete, PathVault+"/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// do sends one request and decodes the JSON response into out. Non-2xx
// statuses are not errors as long as the body parses.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.log.Debug("backend call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}
