// Package tgauth verifies Telegram delegated-login assertions: the widget
// redirect callback and Mini App initData. Both flows share one signature
// check and one freshness guard.
package tgauth

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dgellow/tglogin-front/internal/claims"
)

// Verifier checks provider assertions against the bot token. It holds no
// mutable state and is safe for concurrent use.
type Verifier struct {
	secret        string
	maxAge        time.Duration
	maxFutureSkew time.Duration
	webAppKey     KeyDerivation
	now           func() time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxAge sets the freshness window. Non-positive values keep the default.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.maxAge = d
		}
	}
}

// WithMaxFutureSkew rejects auth_date values further than d in the future.
// Zero (the default) accepts any future timestamp.
func WithMaxFutureSkew(d time.Duration) Option {
	return func(v *Verifier) {
		v.maxFutureSkew = d
	}
}

// WithWebAppKeyDerivation selects the key derivation for initData.
func WithWebAppKeyDerivation(d KeyDerivation) Option {
	return func(v *Verifier) {
		if d != "" {
			v.webAppKey = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a verifier for the given bot token. An empty token is
// accepted here so the process can start; every verification then fails with
// a configuration error.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret:    secret,
		maxAge:    DefaultMaxAge,
		webAppKey: DeriveSHA256,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Configured reports whether a bot token is present.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

// MaxAge returns the freshness window.
func (v *Verifier) MaxAge() time.Duration {
	return v.maxAge
}

// VerifyWidget verifies the query parameters of a login widget redirect.
func (v *Verifier) VerifyWidget(q url.Values) (*Identity, error) {
	if !v.Configured() {
		return nil, NewError(ErrCodeConfig, errors.New("bot token is not set"))
	}

	set, signature, err := claims.FromQuery(q)
	if err != nil {
		if errors.Is(err, claims.ErrMissingHash) {
			return nil, Malformed("Missing hash", err)
		}
		return nil, Malformed("Malformed auth data", err)
	}

	authDate, err := v.verify(set, signature, DeriveSHA256)
	if err != nil {
		return nil, err
	}
	return identityFromWidget(set, authDate)
}

// VerifyWebApp verifies a Mini App initData string.
func (v *Verifier) VerifyWebApp(initData string) (*Identity, error) {
	if !v.Configured() {
		return nil, NewError(ErrCodeConfig, errors.New("bot token is not set"))
	}
	if initData == "" {
		return nil, Malformed("initData missing", nil)
	}

	set, signature, err := claims.ParseInitData(initData)
	if err != nil {
		if errors.Is(err, claims.ErrMissingHash) {
			return nil, NewError(ErrCodeInvalidSignature, err)
		}
		return nil, Malformed("initData invalid", err)
	}

	authDate, err := v.verify(set, signature, v.webAppKey)
	if err != nil {
		return nil, err
	}
	return identityFromWebApp(set, authDate)
}

// verify runs the signature check, then the freshness guard, and returns the
// parsed auth_date.
func (v *Verifier) verify(set claims.Set, signature string, derivation KeyDerivation) (int64, error) {
	if set.Len() == 0 {
		return 0, Malformed("Malformed auth data", errors.New("no claims"))
	}
	if !verifyWith(set, signature, v.secret, derivation) {
		return 0, NewError(ErrCodeInvalidSignature, nil)
	}

	authDate, ok := ParseAuthDate(set.Value("auth_date"))
	now := v.now()
	if !ok || !IsFresh(authDate, now, v.maxAge) {
		return 0, NewError(ErrCodeStale, nil)
	}
	if !withinSkew(authDate, now, v.maxFutureSkew) {
		return 0, &Error{
			Code:    ErrCodeStale,
			Message: "Auth data is not yet valid",
			Err:     fmt.Errorf("auth_date is %ds in the future", authDate-now.Unix()),
		}
	}
	return authDate, nil
}
