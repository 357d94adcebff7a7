package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	UID      int64  `json:"uid"`
	Username string `json:"u"`
}

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner([]byte(strings.Repeat("k", 32)), time.Hour)

	token, err := signer.Sign(payload{UID: 777, Username: "spectra_demo"})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(token, "."))

	var got payload
	require.NoError(t, signer.Verify(token, &got))
	assert.Equal(t, payload{UID: 777, Username: "spectra_demo"}, got)
}

func TestTokenSignerRejectsTampering(t *testing.T) {
	signer := NewTokenSigner([]byte(strings.Repeat("k", 32)), time.Hour)
	token, err := signer.Sign(payload{UID: 1})
	require.NoError(t, err)

	encoded, sig, _ := strings.Cut(token, ".")
	other, err := signer.Sign(payload{UID: 2})
	require.NoError(t, err)
	otherEncoded, _, _ := strings.Cut(other, ".")

	tests := map[string]string{
		"swapped payload": otherEncoded + "." + sig,
		"no separator":    encoded,
		"empty signature": encoded + ".",
		"garbage":         "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			var got payload
			assert.ErrorIs(t, signer.Verify(tok, &got), ErrInvalidToken)
		})
	}

	wrongKey := NewTokenSigner([]byte(strings.Repeat("x", 32)), time.Hour)
	var got payload
	assert.ErrorIs(t, wrongKey.Verify(token, &got), ErrInvalidToken)
}

func TestTokenSignerExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	signer := NewTokenSigner([]byte("key"), time.Minute).WithClock(func() time.Time { return now })

	token, err := signer.Sign(payload{UID: 1})
	require.NoError(t, err)

	later := signer.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	var got payload
	assert.ErrorIs(t, later.Verify(token, &got), ErrTokenExpired)

	noTTL := NewTokenSigner([]byte("key"), 0)
	token, err = noTTL.Sign(payload{UID: 3})
	require.NoError(t, err)
	require.NoError(t, noTTL.Verify(token, &got))
	assert.Equal(t, int64(3), got.UID)
}

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey([]byte("secret"), "session")
	require.NoError(t, err)
	assert.Len(t, a, 32)

	again, err := DeriveKey([]byte("secret"), "session")
	require.NoError(t, err)
	assert.Equal(t, a, again)

	other, err := DeriveKey([]byte("secret"), "jwt")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = DeriveKey(nil, "session")
	assert.Error(t, err)
}

func TestSignData(t *testing.T) {
	sig := SignData("hello", []byte("k"))
	assert.True(t, ValidateSignedData("hello", sig, []byte("k")))
	assert.False(t, ValidateSignedData("hello!", sig, []byte("k")))
	assert.False(t, ValidateSignedData("hello", sig, []byte("j")))
}
