// Package session turns a verified identity into a session token and the
// cookie attributes it travels with.
//
// The default "plain" format is an unsigned base64url(JSON) bearer token.
// Anyone can mint one; it exists for compatibility with clients that read
// the cookie payload. Deployments that rely on the session for
// authorization should use "hmac" or "jwt".
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/tglogin-front/internal/cookie"
	"github.com/dgellow/tglogin-front/internal/crypto"
	"github.com/dgellow/tglogin-front/internal/tgauth"
)

// DefaultMaxAge is the session lifetime (7 days).
const DefaultMaxAge = 7 * 24 * time.Hour

// Format selects the token encoding.
type Format string

const (
	FormatPlain Format = "plain"
	FormatHMAC  Format = "hmac"
	FormatJWT   Format = "jwt"
)

// ErrInvalidSession is returned when a token cannot be decoded.
var ErrInvalidSession = errors.New("invalid session")

// Claims is the identity projection carried by a session token.
type Claims struct {
	UID      int64  `json:"uid"`
	Username string `json:"u"`
}

// Record is the result of issuing a session.
type Record struct {
	Token  string
	Cookie cookie.Attributes
}

// Codec encodes and decodes session claims.
type Codec interface {
	Encode(Claims) (string, error)
	Decode(token string) (Claims, error)
}

// Options configures an Issuer.
type Options struct {
	Format Format
	// Secret keys the hmac and jwt formats. Ignored for plain.
	Secret []byte
	MaxAge time.Duration
	Secure bool
	Now    func() time.Time
}

// Issuer mints session records. It performs no I/O.
type Issuer struct {
	codec  Codec
	format Format
	attrs  cookie.Attributes
}

// NewIssuer builds an issuer for the configured format.
func NewIssuer(opts Options) (*Issuer, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Format == "" {
		opts.Format = FormatPlain
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var codec Codec
	switch opts.Format {
	case FormatPlain:
		codec = plainCodec{}
	case FormatHMAC:
		key, err := crypto.DeriveKey(opts.Secret, "tglogin session hmac")
		if err != nil {
			return nil, fmt.Errorf("hmac session format: %w", err)
		}
		signer := crypto.NewTokenSigner(key, opts.MaxAge).WithClock(opts.Now)
		codec = &hmacCodec{signer: signer}
	case FormatJWT:
		key, err := crypto.DeriveKey(opts.Secret, "tglogin session jwt")
		if err != nil {
			return nil, fmt.Errorf("jwt session format: %w", err)
		}
		codec = &jwtCodec{key: key, ttl: opts.MaxAge, now: opts.Now}
	default:
		return nil, fmt.Errorf("unknown session format %q", opts.Format)
	}

	return &Issuer{
		codec:  codec,
		format: opts.Format,
		attrs:  cookie.SessionAttributes(int(opts.MaxAge/time.Second), opts.Secure),
	}, nil
}

// Format returns the configured token format.
func (i *Issuer) Format() Format {
	return i.format
}

// CookieAttributes returns the attributes used for every issued cookie.
func (i *Issuer) CookieAttributes() cookie.Attributes {
	return i.attrs
}

// Project returns the claims a session carries for identity.
func Project(identity *tgauth.Identity) Claims {
	return Claims{UID: identity.ID, Username: identity.Username}
}

// Issue encodes the identity into a session record.
func (i *Issuer) Issue(identity *tgauth.Identity) (Record, error) {
	if identity == nil || identity.ID == 0 {
		return Record{}, errors.New("identity has no subject id")
	}
	token, err := i.codec.Encode(Project(identity))
	if err != nil {
		return Record{}, fmt.Errorf("encoding session: %w", err)
	}
	return Record{Token: token, Cookie: i.attrs}, nil
}

// Decode reads the claims back from a token.
func (i *Issuer) Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidSession
	}
	c, err := i.codec.Decode(token)
	if err != nil {
		return Claims{}, err
	}
	if c.UID == 0 {
		return Claims{}, fmt.Errorf("%w: no subject", ErrInvalidSession)
	}
	return c, nil
}
