package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/matenet/pin/core"
	"github.com/matenet/pin/ports"
)

const (
	// DefaultTimeout bounds every request so no call hangs on a dead network
	DefaultTimeout = 15 * time.Second

	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Client talks to the pin backend REST API
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    ports.SessionStore
	log        log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Without a cookie jar
// on hc a nonce bound to a cookie session will not verify.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request, keeping the client's cookie jar
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client for the backend at baseURL. Authenticated
// calls read their bearer token from session. The default http client keeps
// cookies so that a nonce bound to a cookie session verifies.
func NewClient(baseURL string, session ports.SessionStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: server url %q", core.ErrInvalidInput, baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar, Timeout: DefaultTimeout},
		session:    session,
		log:        log.Root(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var (
	_ ports.AuthGateway = (*Client)(nil)
	_ ports.UserGateway = (*Client)(nil)
)

// Nonce fetches a fresh SIWE nonce
func (c *Client) Nonce(ctx context.Context) (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/siwe/nonce", nil, false, &resp); err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", fmt.Errorf("%w: nonce missing", core.ErrMalformed)
	}
	return resp.Nonce, nil
}

// Verify submits a signed message. A rejected verification comes back either
// as a 2xx with success false or as a non-2xx HTTPError.
func (c *Client) Verify(ctx context.Context, message, signature string) (core.VerifyResult, error) {
	body := map[string]string{"message": message, "signature": signature}
	var res core.VerifyResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/siwe/verify", body, false, &res); err != nil {
		return core.VerifyResult{}, err
	}
	return res, nil
}

type userEnvelope struct {
	User *core.User `json:"user"`
}

func (e userEnvelope) unwrap() (core.User, error) {
	if e.User == nil {
		return core.User{}, fmt.Errorf("%w: user missing", core.ErrMalformed)
	}
	return *e.User, nil
}

// Profile returns the signed-in user
func (c *Client) Profile(ctx context.Context) (core.User, error) {
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/profile", nil, true, &env); err != nil {
		return core.User{}, err
	}
	return env.unwrap()
}

// User returns another user by id
func (c *Client) User(ctx context.Context, id string) (core.User, error) {
	if id == "" {
		return core.User{}, fmt.Errorf("%w: empty user id", core.ErrInvalidInput)
	}
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, true, &env); err != nil {
		return core.User{}, err
	}
	return env.unwrap()
}

// CreateUser registers a wallet address under a username
func (c *Client) CreateUser(ctx context.Context, walletAddress, username string) (core.User, error) {
	body := map[string]string{"walletAddress": walletAddress, "username": username}
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/api/users", body, false, &env); err != nil {
		return core.User{}, err
	}
	return env.unwrap()
}

// UpdateUser replaces the editable profile fields
func (c *Client) UpdateUser(ctx context.Context, update core.ProfileUpdate) (core.User, error) {
	var env userEnvelope
	if err := c.doJSON(ctx, http.MethodPut, "/api/users", update, true, &env); err != nil {
		return core.User{}, err
	}
	return env.unwrap()
}

// UploadProfilePicture uploads an image as multipart field "profilePicture"
func (c *Client) UploadProfilePicture(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("profilePicture", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp struct {
		ProfilePictureURL string `json:"profilePictureUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/users/profile-picture", &buf, mw.FormDataContentType(), true, &resp); err != nil {
		return "", err
	}
	if resp.ProfilePictureURL == "" {
		return "", fmt.Errorf("%w: profilePictureUrl missing", core.ErrMalformed)
	}
	return resp.ProfilePictureURL, nil
}

// RegisterNFC pairs a pin with the signed-in user
func (c *Client) RegisterNFC(ctx context.Context, nfcID string) error {
	return c.postNFC(ctx, "/api/users/register-nfc", nfcID)
}

// ScanNFC sends a friend request to the owner of a pin
func (c *Client) ScanNFC(ctx context.Context, nfcID string) error {
	return c.postNFC(ctx, "/api/friends/scan-nfc", nfcID)
}

func (c *Client) postNFC(ctx context.Context, path, nfcID string) error {
	if nfcID == "" {
		return fmt.Errorf("%w: empty nfc id", core.ErrInvalidInput)
	}
	return c.doJSON(ctx, http.MethodPost, path, map[string]string{"nfcId": nfcID}, true, nil)
}

// FriendRequests lists pending incoming requests
func (c *Client) FriendRequests(ctx context.Context) ([]core.FriendRequest, error) {
	var resp struct {
		Requests []core.FriendRequest `json:"requests"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/friends/requests", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// AcceptFriend accepts a request from senderID
func (c *Client) AcceptFriend(ctx context.Context, senderID string) error {
	if senderID == "" {
		return fmt.Errorf("%w: empty sender id", core.ErrInvalidInput)
	}
	return c.doJSON(ctx, http.MethodPost, "/api/friends/accept", map[string]string{"senderId": senderID}, true, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, auth bool, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, auth, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)

	var token string
	if auth {
		if token, err = c.session.Get(ctx); err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.log.New("method", method, "path", path, "reqid", reqID)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("Backend request failed", "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	logger.Debug("Backend request", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &core.HTTPError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
		if auth && errors.Is(herr, core.ErrUnauthorized) {
			if _, cerr := c.session.ClearIf(ctx, token); cerr != nil {
				logger.Warn("Failed to clear rejected session", "err", cerr)
			}
		}
		return herr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", core.ErrMalformed, method, path, err)
	}
	return nil
}

// errorMessage extracts "error", then "message" from an error body
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
