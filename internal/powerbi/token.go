package powerbi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultAuthorityURL is the Microsoft identity platform endpoint used
// for client-credential token acquisition.
const DefaultAuthorityURL = "https://login.microsoftonline.com"

// tokenScope is the Power BI API scope requested for all tokens.
const tokenScope = "https://analysis.windows.net/powerbi/api/.default"

// expirySkew is subtracted from a token's lifetime so a token is never
// used within a minute of its actual expiry.
const expirySkew = time.Minute

// ErrNoToken is returned by StaticTokenSource when constructed with an
// empty token.
var ErrNoToken = errors.New("no access token available")

// TokenSource supplies bearer credentials for API calls. Token
// acquisition itself (device-code flows, managed identities, ...) is a
// collaborator concern; the client only needs something that yields a
// valid bearer token.
type TokenSource interface {
	// Token returns a currently valid bearer token.
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed, externally acquired token.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource around a pre-acquired
// bearer token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token implements TokenSource.
func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// ClientCredentialsTokenSource acquires tokens for a service principal
// via the OAuth2 client-credentials grant and caches them until close
// to expiry.
type ClientCredentialsTokenSource struct {
	tenantID     string
	clientID     string
	clientSecret string
	authorityURL string
	httpClient   *http.Client

	mu     sync.Mutex
	cached string
	expiry time.Time
}

// ClientCredentialsOption configures a ClientCredentialsTokenSource.
type ClientCredentialsOption func(*ClientCredentialsTokenSource)

// WithAuthorityURL overrides the identity endpoint. Used in tests.
func WithAuthorityURL(authorityURL string) ClientCredentialsOption {
	return func(s *ClientCredentialsTokenSource) {
		s.authorityURL = strings.TrimRight(authorityURL, "/")
	}
}

// WithTokenHTTPClient sets the HTTP client used for token requests.
func WithTokenHTTPClient(client *http.Client) ClientCredentialsOption {
	return func(s *ClientCredentialsTokenSource) {
		s.httpClient = client
	}
}

// NewClientCredentialsTokenSource creates a TokenSource for a service
// principal.
func NewClientCredentialsTokenSource(tenantID, clientID, clientSecret string, opts ...ClientCredentialsOption) *ClientCredentialsTokenSource {
	s := &ClientCredentialsTokenSource{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		authorityURL: DefaultAuthorityURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tokenResponse mirrors the identity platform's token endpoint body.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Token implements TokenSource. Tokens are cached and refreshed only
// when within expirySkew of expiry.
func (s *ClientCredentialsTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" && time.Now().Before(s.expiry) {
		return s.cached, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
		"scope":         {tokenScope},
	}

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", s.authorityURL, s.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		if tr.Error != "" {
			return "", fmt.Errorf("authentication failed: %s: %s", tr.Error, tr.ErrorDescription)
		}
		return "", fmt.Errorf("authentication failed: status %d", resp.StatusCode)
	}

	s.cached = tr.AccessToken
	s.expiry = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - expirySkew)
	return s.cached, nil
}
