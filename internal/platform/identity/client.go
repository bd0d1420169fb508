package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"comply/internal/platform/config"
)

// Client drives the OAuth2 authorization-code flow against the identity
// provider. It is a thin integration: one authorize redirect and one token
// exchange, no provider SDK.
type Client struct {
	cfg  config.Config
	HTTP *http.Client
}

func New(cfg config.Config) *Client {
	return &Client{cfg: cfg, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

func (c *Client) Configured() bool {
	return c != nil && c.cfg.OAuthClientID != "" && c.cfg.OAuthClientSecret != "" && c.cfg.OAuthRedirectURL != ""
}

func (c *Client) authorizeURL() string {
	if c.cfg.OAuthAuthorizeURL != "" {
		return c.cfg.OAuthAuthorizeURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/authorize", c.cfg.OAuthTenant)
}

func (c *Client) tokenURL() string {
	if c.cfg.OAuthTokenURL != "" {
		return c.cfg.OAuthTokenURL
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.cfg.OAuthTenant)
}

// LoginURL builds the browser redirect for the authorization-code flow.
func (c *Client) LoginURL(state string) string {
	query := url.Values{}
	query.Set("client_id", c.cfg.OAuthClientID)
	query.Set("response_type", "code")
	query.Set("redirect_uri", c.cfg.OAuthRedirectURL)
	query.Set("response_mode", "query")
	query.Set("scope", "openid profile email")
	query.Set("state", state)
	return c.authorizeURL() + "?" + query.Encode()
}

type Profile struct {
	Email string
	Name  string
	OID   string
}

type idTokenClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	OID               string `json:"oid"`
	jwt.RegisteredClaims
}

// Exchange swaps the authorization code for tokens and extracts the user
// profile from the ID token. The token arrives directly from the provider's
// token endpoint over TLS, so claims are read without a local signature
// check.
func (c *Client) Exchange(ctx context.Context, code string) (Profile, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.OAuthClientID)
	form.Set("client_secret", c.cfg.OAuthClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.OAuthRedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, err
	}
	if body.IDToken == "" {
		return Profile{}, fmt.Errorf("token response missing id_token")
	}

	claims := idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(body.IDToken, &claims); err != nil {
		return Profile{}, err
	}

	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	if email == "" {
		return Profile{}, fmt.Errorf("id token missing email claim")
	}
	return Profile{Email: strings.ToLower(email), Name: claims.Name, OID: claims.OID}, nil
}

// AppTokenSource fetches app-only tokens for the document store via the
// client-credentials grant, caching until shortly before expiry.
type AppTokenSource struct {
	client *Client
	scope  string

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewAppTokenSource(client *Client, scope string) *AppTokenSource {
	if scope == "" {
		scope = "https://graph.microsoft.com/.default"
	}
	return &AppTokenSource{client: client, scope: scope}
}

func (t *AppTokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expires) {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("client_id", t.client.cfg.OAuthClientID)
	form.Set("client_secret", t.client.cfg.OAuthClientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", t.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.client.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("app token request failed with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("app token response missing access_token")
	}

	t.token = body.AccessToken
	t.expires = time.Now().Add(time.Duration(body.ExpiresIn-60) * time.Second)
	return t.token, nil
}
