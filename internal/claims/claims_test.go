package claims

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	set, err := New(map[string]string{
		"username":   "spectra_demo",
		"id":         "777",
		"auth_date":  "1700000000",
		"first_name": "Spectra",
	})
	require.NoError(t, err)

	assert.Equal(t, "auth_date=1700000000\nfirst_name=Spectra\nid=777\nusername=spectra_demo", set.Canonical())
}

func TestCanonicalDeterministic(t *testing.T) {
	a, err := New(map[string]string{"b": "2", "a": "1", "c": "3"})
	require.NoError(t, err)
	b, err := New(map[string]string{"c": "3", "b": "2", "a": "1"})
	require.NoError(t, err)

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.Equal(t, a.Canonical(), a.Canonical())
}

func TestCanonicalByteOrder(t *testing.T) {
	// Uppercase sorts before lowercase, '_' (0x5f) before lowercase letters.
	set, err := New(map[string]string{"a": "1", "B": "2", "_x": "3"})
	require.NoError(t, err)

	assert.Equal(t, "B=2\n_x=3\na=1", set.Canonical())
}

func TestCanonicalEmpty(t *testing.T) {
	var set Set
	assert.Equal(t, "", set.Canonical())
	assert.Equal(t, 0, set.Len())
}

func TestNewRejectsHashAndEmptyKey(t *testing.T) {
	_, err := New(map[string]string{"hash": "abc"})
	assert.Error(t, err)

	_, err = New(map[string]string{"": "x"})
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestFromQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantErr   error
		wantHash  string
		wantClaim map[string]string
	}{
		{
			name:      "widget callback",
			query:     "id=777&first_name=Spectra&username=spectra_demo&auth_date=1700000000&hash=deadbeef",
			wantHash:  "deadbeef",
			wantClaim: map[string]string{"id": "777", "first_name": "Spectra", "username": "spectra_demo", "auth_date": "1700000000"},
		},
		{
			name:      "decoded values kept as-is",
			query:     "photo_url=https%3A%2F%2Ft.me%2Fi%2Fa.jpg&hash=ab",
			wantHash:  "ab",
			wantClaim: map[string]string{"photo_url": "https://t.me/i/a.jpg"},
		},
		{
			name:    "missing hash",
			query:   "id=1&auth_date=2",
			wantErr: ErrMissingHash,
		},
		{
			name:    "empty hash",
			query:   "id=1&hash=",
			wantErr: ErrMissingHash,
		},
		{
			name:    "repeated claim",
			query:   "id=1&id=2&hash=ab",
			wantErr: ErrDuplicateKey,
		},
		{
			name:    "repeated hash",
			query:   "id=1&hash=ab&hash=cd",
			wantErr: ErrDuplicateKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			set, hash, err := FromQuery(q)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHash, hash)
			assert.Equal(t, len(tt.wantClaim), set.Len())
			for k, v := range tt.wantClaim {
				assert.Equal(t, v, set.Value(k), "claim %s", k)
			}
			_, hasHash := set.Get(HashField)
			assert.False(t, hasHash)
		})
	}
}

func TestParseInitData(t *testing.T) {
	set, hash, err := ParseInitData("id=5&hash=abc&first_name=Bob")
	require.NoError(t, err)

	assert.Equal(t, "abc", hash)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "5", set.Value("id"))
	assert.Equal(t, "Bob", set.Value("first_name"))
	assert.Equal(t, []string{"first_name", "id"}, set.Names())
}

func TestParseInitDataDecoding(t *testing.T) {
	raw := "query_id=AAH&user=%7B%22id%22%3A42%2C%22first_name%22%3A%22Ann%20Lee%22%7D&auth_date=1700000000&note=a+b&hash=ff"
	set, hash, err := ParseInitData(raw)
	require.NoError(t, err)

	assert.Equal(t, "ff", hash)
	assert.Equal(t, `{"id":42,"first_name":"Ann Lee"}`, set.Value("user"))
	assert.Equal(t, "a b", set.Value("note"))
	assert.Equal(t, "AAH", set.Value("query_id"))
}

func TestParseInitDataEdgeCases(t *testing.T) {
	t.Run("empty segments skipped", func(t *testing.T) {
		set, hash, err := ParseInitData("&a=1&&b=2&hash=x&")
		require.NoError(t, err)
		assert.Equal(t, "x", hash)
		assert.Equal(t, 2, set.Len())
	})

	t.Run("pair without equals", func(t *testing.T) {
		set, _, err := ParseInitData("flag&hash=x")
		require.NoError(t, err)
		v, ok := set.Get("flag")
		assert.True(t, ok)
		assert.Equal(t, "", v)
	})

	t.Run("value keeps extra equals", func(t *testing.T) {
		set, _, err := ParseInitData("start_param=a=b&hash=x")
		require.NoError(t, err)
		assert.Equal(t, "a=b", set.Value("start_param"))
	})

	t.Run("missing hash", func(t *testing.T) {
		_, _, err := ParseInitData("id=5&first_name=Bob")
		assert.ErrorIs(t, err, ErrMissingHash)
	})

	t.Run("empty input", func(t *testing.T) {
		_, _, err := ParseInitData("")
		assert.ErrorIs(t, err, ErrMissingHash)
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, _, err := ParseInitData("id=5&id=6&hash=x")
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})

	t.Run("empty key", func(t *testing.T) {
		_, _, err := ParseInitData("=5&hash=x")
		assert.ErrorIs(t, err, ErrEmptyKey)
	})

	t.Run("bad escape", func(t *testing.T) {
		_, _, err := ParseInitData("id=%zz&hash=x")
		assert.Error(t, err)
	})
}
