package superset

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/majorcontext/superset-import/internal/log"
)

// Session is an authenticated connection to Superset. Its HTTP client
// attaches the bearer token to every request and keeps cookies, so the
// CSRF session cookie set by CSRFToken is sent with the import request.
type Session struct {
	client *Client
	token  *oauth2.Token
	http   *http.Client
}

// Token returns the bearer access token.
func (s *Session) Token() string {
	return s.token.AccessToken
}

// HTTPClient returns the token-bearing HTTP client.
func (s *Session) HTTPClient() *http.Client {
	return s.http
}

// Login exchanges database credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" {
		return nil, stepErr(StepAuth, errors.New("username cannot be empty"))
	}
	if password == "" {
		return nil, stepErr(StepAuth, errors.New("password cannot be empty"))
	}

	endpoint := c.Endpoint(LoginPath)
	log.Info("authenticating with superset", "url", endpoint, "username", username)

	req := LoginRequest{
		Username: username,
		Password: password,
		Provider: ProviderDB,
		Refresh:  "true",
	}
	var resp LoginResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, endpoint, nil, req, &resp); err != nil {
		return nil, stepErr(StepAuth, err)
	}
	if resp.AccessToken == "" {
		return nil, stepErr(StepAuth, errors.New("login response did not contain an access_token"))
	}

	log.Debug("superset session created", "has_refresh_token", resp.RefreshToken != "")
	return c.newSession(ctx, &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    "Bearer",
	}), nil
}

// LoginWithWait behaves like Login but keeps retrying with exponential
// backoff while Superset is unreachable or answering 5xx, for at most wait.
// Credential rejections fail immediately. A non-positive wait disables
// retries.
func (c *Client) LoginWithWait(ctx context.Context, username, password string, wait time.Duration) (*Session, error) {
	if wait <= 0 {
		return c.Login(ctx, username, password)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = wait

	var session *Session
	op := func() error {
		s, err := c.Login(ctx, username, password)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		session = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn("superset not ready, retrying login", "error", err, "retry_in", next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return session, nil
}

// retryable reports whether a login failure is worth retrying: transport
// errors and temporary server responses.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (c *Client) newSession(ctx context.Context, token *oauth2.Token) *Session {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	hc.Jar = newCookieJar()
	hc.Timeout = c.httpClient.Timeout
	return &Session{client: c, token: token, http: hc}
}

// CSRFToken fetches the CSRF token required by mutating endpoints.
// The request's Referer is the CSRF endpoint itself.
func (s *Session) CSRFToken(ctx context.Context) (string, error) {
	endpoint := s.client.Endpoint(CSRFPath)
	log.Info("requesting CSRF token", "url", endpoint)

	var resp csrfResponse
	headers := map[string]string{"Referer": endpoint}
	if err := doJSON(ctx, s.http, http.MethodGet, endpoint, headers, nil, &resp); err != nil {
		return "", stepErr(StepCSRF, err)
	}
	if resp.Result == "" {
		return "", stepErr(StepCSRF, errors.New("response did not contain a result"))
	}

	log.Debug("CSRF token received")
	return resp.Result, nil
}
