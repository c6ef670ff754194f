package oauth2password

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/clientauth/sessionkit/pkg/logging"
)

// Name is the conventional registry name for this strategy.
const Name = "oauth2-password"

// Config configures the password-grant strategy.
type Config struct {
	// ClientID is sent to the server as client_id for bookkeeping.
	// Servers must never trust it for authorization decisions.
	ClientID string

	// TokenEndpoint is the token endpoint URL. Default: "/token".
	TokenEndpoint string

	// RevocationEndpoint is the token revocation endpoint URL. When empty,
	// revocation is disabled and Invalidate succeeds without network calls.
	RevocationEndpoint string

	// RefreshAccessTokens controls automatic refresh of expiring access
	// tokens. Default: enabled. Set to a false pointer to disable.
	RefreshAccessTokens *bool

	// RefreshAccessTokensWithScope includes the stored scope in refresh
	// requests. Default: false.
	RefreshAccessTokensWithScope bool

	// HTTPClient overrides the HTTP client used for server calls.
	HTTPClient *http.Client

	// Logger receives refresh and revocation warnings. Defaults to a
	// no-op logger.
	Logger logging.Logger
}

// refreshOffset returns how long before expiry a refresh should fire. It is
// re-rolled on every read so that multiple processes holding the same token
// do not refresh in lockstep.
func refreshOffset() time.Duration {
	return 5*time.Second + rand.N(5*time.Second)
}

func (c Config) tokenEndpoint() string {
	if c.TokenEndpoint == "" {
		return "/token"
	}
	return c.TokenEndpoint
}

func (c Config) refreshEnabled() bool {
	if c.RefreshAccessTokens == nil {
		return true
	}
	return *c.RefreshAccessTokens
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c Config) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.Nop()
}
