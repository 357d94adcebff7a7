package internal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/tglogin-front/internal/claims"
	"github.com/dgellow/tglogin-front/internal/config"
	"github.com/dgellow/tglogin-front/internal/tgauth"
)

const testBotToken = "123456:TEST-token"

func testConfig() config.Config {
	cfg := config.Config{
		Server: config.ServerConfig{
			BaseURL: "https://login.example.com",
			Addr:    "127.0.0.1:0",
		},
		Telegram: config.TelegramConfig{
			BotToken:    config.Secret(testBotToken),
			BotUsername: "demo_bot",
		},
		Session: config.SessionConfig{
			Format: "hmac",
			Secret: config.Secret(strings.Repeat("k", 32)),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func signedWidgetQuery(t *testing.T, authDate int64) url.Values {
	t.Helper()
	values := map[string]string{
		"id":         "777",
		"first_name": "Spectra",
		"username":   "spectra_demo",
		"auth_date":  strconv.FormatInt(authDate, 10),
	}
	set, err := claims.New(values)
	require.NoError(t, err)

	q := url.Values{}
	for k, v := range values {
		q.Set(k, v)
	}
	q.Set("hash", tgauth.Sign(set, tgauth.DeriveKey(testBotToken, tgauth.DeriveSHA256)))
	return q
}

func TestLoginFront_WidgetLoginThenSession(t *testing.T) {
	app, err := NewLoginFront(context.Background(), testConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get(srv.URL + "/api/auth/telegram?" + signedWidgetQuery(t, time.Now().Unix()).Encode())
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/app", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/session", nil)
	require.NoError(t, err)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		UID     int64  `json:"uid"`
		U       string `json:"u"`
		Profile *struct {
			LoginCount int64 `json:"login_count"`
		} `json:"profile"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(777), body.UID)
	assert.Equal(t, "spectra_demo", body.U)
	require.NotNil(t, body.Profile)
	assert.Equal(t, int64(1), body.Profile.LoginCount)
}

func TestLoginFront_Routes(t *testing.T) {
	app, err := NewLoginFront(context.Background(), testConfig())
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: `{"status":"ok"}`},
		{name: "public config", method: http.MethodGet, path: "/api/config", wantStatus: http.StatusOK, wantBody: `{"botUsername":"demo_bot","authUrl":"https://login.example.com/api/auth/telegram"}`},
		{name: "webapp wrong method", method: http.MethodGet, path: "/api/auth/webapp", wantStatus: http.StatusMethodNotAllowed},
		{name: "session without cookie", method: http.MethodGet, path: "/api/session", wantStatus: http.StatusUnauthorized},
		{name: "stale widget data", method: http.MethodGet, path: "/api/auth/telegram?" + signedWidgetQuery(t, time.Now().Add(-48*time.Hour).Unix()).Encode(), wantStatus: http.StatusForbidden},
		{name: "logout", method: http.MethodPost, path: "/api/auth/logout", wantStatus: http.StatusOK, wantBody: `{"ok":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				data, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, tt.wantBody, string(data))
			}
		})
	}
}

func TestLoginFront_InvalidSessionConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Session.Secret = ""

	_, err := NewLoginFront(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup sessions")
}

func TestSetupStorage(t *testing.T) {
	ctx := context.Background()

	store, err := SetupStorage(ctx, config.StorageConfig{Kind: "memory"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	store, err = SetupStorage(ctx, config.StorageConfig{Kind: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	_, err = SetupStorage(ctx, config.StorageConfig{Kind: "redis"})
	assert.Error(t, err)

	_, err = SetupStorage(ctx, config.StorageConfig{Kind: "firestore"})
	assert.Error(t, err)
}

func TestLoginFront_RunContextShutdown(t *testing.T) {
	app, err := NewLoginFront(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunContext did not return after cancel")
	}
}
