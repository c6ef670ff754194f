// Package oauth2password implements the RFC 6749 resource-owner password
// credentials grant as a sessionkit authenticator strategy. It exchanges a
// username and password for an access token, keeps the token fresh with a
// jittered self-rescheduling refresh, and revokes tokens on invalidation
// when a revocation endpoint is configured.
package oauth2password

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/clientauth/sessionkit/pkg/authenticator"
	"github.com/clientauth/sessionkit/pkg/events"
	"github.com/clientauth/sessionkit/pkg/logging"
)

var (
	// ErrInvalidTokenPayload is returned when a server response or a
	// persisted payload lacks a non-empty access_token.
	ErrInvalidTokenPayload = errors.New("oauth2password: payload is missing a non-empty access_token")

	// ErrTokenExpired is returned by Restore when the access token has
	// expired and refresh is disabled, so there is no way to renew it.
	ErrTokenExpired = errors.New("oauth2password: access token expired and refresh is disabled")
)

// Credentials is the credentials type accepted by Authenticate.
type Credentials struct {
	Identification string
	Password       string
	Scope          []string
	Headers        http.Header
}

// Authenticator implements the password grant. It satisfies both
// authenticator.Authenticator and authenticator.Notifier: an autonomous
// token refresh publishes the replacement payload through OnDataUpdated.
type Authenticator struct {
	clientID           string
	tokenEndpoint      string
	revocationEndpoint string
	refreshEnabled     bool
	refreshWithScope   bool
	client             *http.Client
	logger             logging.Logger

	dataUpdated events.Signal[authenticator.Data]
	invalidated events.Signal[error]

	mu           sync.Mutex
	refreshTimer *time.Timer

	// injectable for tests
	now      func() time.Time
	offsetFn func() time.Duration
}

// New creates a password-grant authenticator from cfg.
func New(cfg Config) *Authenticator {
	return &Authenticator{
		clientID:           cfg.ClientID,
		tokenEndpoint:      cfg.tokenEndpoint(),
		revocationEndpoint: cfg.RevocationEndpoint,
		refreshEnabled:     cfg.refreshEnabled(),
		refreshWithScope:   cfg.RefreshAccessTokensWithScope,
		client:             cfg.httpClient(),
		logger:             cfg.logger().WithModule("oauth2password"),
		now:                time.Now,
		offsetFn:           refreshOffset,
	}
}

// OnDataUpdated subscribes to autonomous payload replacements (token
// refreshes). The returned cancel function is idempotent.
func (a *Authenticator) OnDataUpdated(fn func(authenticator.Data)) func() {
	return a.dataUpdated.Subscribe(fn)
}

// OnInvalidated subscribes to strategy-initiated invalidations. The password
// grant never invalidates itself; the subscription exists to satisfy the
// Notifier contract.
func (a *Authenticator) OnInvalidated(fn func(error)) func() {
	return a.invalidated.Subscribe(fn)
}

// Authenticate exchanges the credentials for an access token. On success the
// returned payload carries the server response augmented with an absolute
// expires_at (epoch milliseconds) when the server reported expires_in, and a
// refresh has been scheduled if possible. credentials must be a Credentials
// value.
func (a *Authenticator) Authenticate(ctx context.Context, credentials interface{}) (authenticator.Data, error) {
	creds, ok := credentials.(Credentials)
	if !ok {
		return nil, fmt.Errorf("oauth2password: expected %T credentials, got %T", Credentials{}, credentials)
	}

	body := url.Values{}
	body.Set("grant_type", "password")
	body.Set("username", creds.Identification)
	body.Set("password", creds.Password)
	if scope := strings.Join(creds.Scope, " "); scope != "" {
		body.Set("scope", scope)
	}
	if a.clientID != "" {
		body.Set("client_id", a.clientID)
	}

	payload, err := a.post(ctx, a.tokenEndpoint, body, creds.Headers)
	if err != nil {
		return nil, err
	}
	if stringField(payload, "access_token") == "" {
		return nil, ErrInvalidTokenPayload
	}

	data := authenticator.Data(payload)
	expiresIn, _ := int64Field(data, "expires_in")
	var expiresAt int64
	if expiresIn > 0 {
		expiresAt = a.absolutize(expiresIn)
		data["expires_at"] = expiresAt
	}

	a.scheduleRefresh(expiresIn, expiresAt, stringField(data, "refresh_token"), stringField(data, "scope"))

	return data, nil
}

// Restore re-validates a persisted payload. An expired token is refreshed
// immediately when refresh is enabled, and rejected otherwise. A live token
// gets its future refresh rescheduled and the payload is returned unchanged.
func (a *Authenticator) Restore(ctx context.Context, data authenticator.Data) (authenticator.Data, error) {
	now := a.now().UnixMilli()
	expiresAt, hasExpiry := int64Field(data, "expires_at")

	if hasExpiry && expiresAt < now {
		if !a.refreshEnabled {
			return nil, ErrTokenExpired
		}
		expiresIn, _ := int64Field(data, "expires_in")
		return a.refreshAccessToken(ctx, expiresIn, stringField(data, "refresh_token"), stringField(data, "scope"))
	}

	if stringField(data, "access_token") == "" {
		return nil, ErrInvalidTokenPayload
	}

	expiresIn, _ := int64Field(data, "expires_in")
	a.scheduleRefresh(expiresIn, expiresAt, stringField(data, "refresh_token"), stringField(data, "scope"))

	return data, nil
}

// Invalidate cancels any pending refresh and revokes the tokens in the
// payload. Without a configured revocation endpoint it succeeds immediately.
// Revocation requests are best-effort: individual failures are logged and
// never block invalidation.
func (a *Authenticator) Invalidate(ctx context.Context, data authenticator.Data) error {
	a.cancelRefresh()

	if a.revocationEndpoint == "" {
		return nil
	}

	var wg sync.WaitGroup
	for _, hint := range []string{"access_token", "refresh_token"} {
		token := stringField(data, hint)
		if token == "" {
			continue
		}

		wg.Add(1)
		go func(hint, token string) {
			defer wg.Done()

			body := url.Values{}
			body.Set("token_type_hint", hint)
			body.Set("token", token)
			if a.clientID != "" {
				body.Set("client_id", a.clientID)
			}

			if _, err := a.post(ctx, a.revocationEndpoint, body, nil); err != nil {
				a.logger.Warn("Token revocation failed", "token_type_hint", hint, "error", err)
			}
		}(hint, token)
	}
	wg.Wait()

	return nil
}

// absolutize converts a relative expires_in (seconds) to an absolute
// expires_at (epoch milliseconds).
func (a *Authenticator) absolutize(expiresIn int64) int64 {
	return a.now().UnixMilli() + expiresIn*1000
}

func stringField(data authenticator.Data, key string) string {
	s, _ := data[key].(string)
	return s
}

// int64Field reads a numeric payload field. JSON decoding yields float64,
// while locally constructed payloads may hold int or int64.
func int64Field(data authenticator.Data, key string) (int64, bool) {
	switch n := data[key].(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
