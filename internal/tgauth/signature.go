package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/dgellow/tglogin-front/internal/claims"
)

// KeyDerivation selects how the HMAC key is derived from the bot token.
type KeyDerivation string

const (
	// DeriveSHA256 is SHA-256(bot token), used by the login widget.
	DeriveSHA256 KeyDerivation = "sha256"
	// DeriveWebAppData is HMAC-SHA256(key "WebAppData", bot token), the
	// derivation documented for Mini App initData.
	DeriveWebAppData KeyDerivation = "webappdata"
)

const webAppDataKey = "WebAppData"

// DeriveKey returns the signing key for the given derivation. Unknown
// derivations fall back to SHA-256.
func DeriveKey(secret string, derivation KeyDerivation) []byte {
	if derivation == DeriveWebAppData {
		mac := hmac.New(sha256.New, []byte(webAppDataKey))
		mac.Write([]byte(secret))
		return mac.Sum(nil)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical claims.
func Sign(set claims.Set, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(set.Canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches the claims under the
// widget key derivation. It fails closed on an empty secret or claim set.
func VerifySignature(set claims.Set, signature, secret string) bool {
	return verifyWith(set, signature, secret, DeriveSHA256)
}

func verifyWith(set claims.Set, signature, secret string, derivation KeyDerivation) bool {
	if secret == "" || set.Len() == 0 || signature == "" {
		return false
	}
	expected := Sign(set, DeriveKey(secret, derivation))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
