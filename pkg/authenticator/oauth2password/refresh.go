package oauth2password

import (
	"context"
	"net/url"
	"time"

	"github.com/clientauth/sessionkit/pkg/authenticator"
)

// scheduleRefresh arms the refresh timer for an upcoming expiry. It is a
// no-op when refresh is disabled, no refresh token exists, no expiry is
// known, or the token is already too old to bother with. Any previously
// armed timer is cancelled first, so at most one timer is pending.
func (a *Authenticator) scheduleRefresh(expiresIn, expiresAt int64, refreshToken, scope string) {
	if !a.refreshEnabled || refreshToken == "" {
		return
	}

	now := a.now().UnixMilli()
	offset := a.offsetFn().Milliseconds()

	if expiresAt == 0 && expiresIn > 0 {
		expiresAt = now + expiresIn*1000
	}
	if expiresAt == 0 || expiresAt <= now-offset {
		return
	}

	// A fire time in the past fires immediately.
	wait := time.Duration(expiresAt-now-offset) * time.Millisecond

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
	}
	a.refreshTimer = time.AfterFunc(wait, func() {
		_, _ = a.refreshAccessToken(context.Background(), expiresIn, refreshToken, scope)
	})
}

// cancelRefresh disarms any pending refresh timer. Safe to call repeatedly.
func (a *Authenticator) cancelRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshTimer != nil {
		a.refreshTimer.Stop()
		a.refreshTimer = nil
	}
}

// refreshAccessToken performs a refresh_token grant. Server-returned
// expires_in, refresh_token and scope win over the prior values; prior
// values are retained when the server omits them. On success the next
// refresh is scheduled and the full replacement payload is published to
// OnDataUpdated subscribers. Failures are logged and returned; nobody awaits
// the timer-driven call, so the session keeps its stale token until
// something else intervenes.
func (a *Authenticator) refreshAccessToken(ctx context.Context, expiresIn int64, refreshToken, scope string) (authenticator.Data, error) {
	body := url.Values{}
	body.Set("grant_type", "refresh_token")
	body.Set("refresh_token", refreshToken)
	if a.refreshWithScope && scope != "" {
		body.Set("scope", scope)
	}
	if a.clientID != "" {
		body.Set("client_id", a.clientID)
	}

	payload, err := a.post(ctx, a.tokenEndpoint, body, nil)
	if err != nil {
		a.logger.Warn("Access token could not be refreshed - server rejected the refresh token grant", "error", err)
		return nil, err
	}

	data := authenticator.Data(payload)
	if serverExpiresIn, ok := int64Field(data, "expires_in"); ok && serverExpiresIn > 0 {
		expiresIn = serverExpiresIn
	}
	if serverRefreshToken := stringField(data, "refresh_token"); serverRefreshToken != "" {
		refreshToken = serverRefreshToken
	}
	if serverScope := stringField(data, "scope"); serverScope != "" {
		scope = serverScope
	}

	expiresAt := a.absolutize(expiresIn)
	data["expires_in"] = expiresIn
	data["expires_at"] = expiresAt
	data["refresh_token"] = refreshToken
	if scope != "" {
		data["scope"] = scope
	}

	a.scheduleRefresh(expiresIn, expiresAt, refreshToken, scope)
	a.dataUpdated.Publish(data)

	return data, nil
}
