package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dgellow/tglogin-front/internal/crypto"
)

// plainCodec is base64url(JSON) without padding and without integrity
// protection.
type plainCodec struct{}

func (plainCodec) Encode(c Claims) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (plainCodec) Decode(token string) (Claims, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return c, nil
}

type hmacCodec struct {
	signer crypto.TokenSigner
}

func (h *hmacCodec) Encode(c Claims) (string, error) {
	return h.signer.Sign(c)
}

func (h *hmacCodec) Decode(token string) (Claims, error) {
	var c Claims
	if err := h.signer.Verify(token, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return c, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Username string `json:"u,omitempty"`
}

type jwtCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func (j *jwtCodec) Encode(c Claims) (string, error) {
	now := j.now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(c.UID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Username: c.Username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
}

func (j *jwtCodec) Decode(token string) (Claims, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return Claims{UID: uid, Username: claims.Username}, nil
}
