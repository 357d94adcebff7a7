package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

const (
	binaryPath  = "../cmd/tglogin-front/tglogin-front"
	testAddr    = "127.0.0.1:18080"
	testBaseURL = "http://" + testAddr

	TestBotToken      = "123456:integration-token"
	TestBotUsername   = "integration_bot"
	TestSessionSecret = "integration-session-secret-0123456789"
)

// writeTestConfig writes cfg as JSON to a temp file and returns its path
func writeTestConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close temp config: %v", err)
	}
	return f.Name()
}

// buildTestConfig builds a complete config file map using sqlite storage at dbPath
func buildTestConfig(sessionFormat, dbPath string) map[string]any {
	session := map[string]any{"format": sessionFormat}
	if sessionFormat != "plain" {
		session["secret"] = map[string]string{"$env": "TGLOGIN_SESSION_SECRET"}
	}
	return map[string]any{
		"version": "v1",
		"server": map[string]any{
			"baseURL":      testBaseURL,
			"addr":         testAddr,
			"redirectPath": "/app",
		},
		"telegram": map[string]any{
			"botToken":    map[string]string{"$env": "BOT_TOKEN"},
			"botUsername": TestBotUsername,
		},
		"session": session,
		"storage": map[string]any{
			"kind":       "sqlite",
			"sqlitePath": dbPath,
		},
	}
}

// defaultTestEnv returns the secrets every test server needs
func defaultTestEnv() []string {
	return []string{
		"BOT_TOKEN=" + TestBotToken,
		"TGLOGIN_SESSION_SECRET=" + TestSessionSecret,
	}
}

// startLoginFront starts the server. An empty configPath runs it from
// environment variables alone.
func startLoginFront(t *testing.T, configPath string, extraEnv ...string) {
	t.Helper()
	var args []string
	if configPath != "" {
		args = append(args, "-config", configPath)
	}
	cmd := exec.Command(binaryPath, args...)

	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, defaultTestEnv()...)
	cmd.Env = append(cmd.Env, extraEnv...)

	if logFile := os.Getenv("TGLOGIN_LOG_FILE"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			cmd.Stderr = f
			cmd.Stdout = f
			t.Cleanup(func() { f.Close() })
		}
	}

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start tglogin-front: %v", err)
	}

	t.Cleanup(func() {
		stopLoginFront(cmd)
	})
}

// stopLoginFront stops the server gracefully, killing it after 5 seconds
func stopLoginFront(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}

// waitForLoginFront waits for the health endpoint to answer
func waitForLoginFront(t *testing.T) {
	t.Helper()
	for range 20 {
		resp, err := http.Get(testBaseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatal("tglogin-front failed to become ready after 10 seconds")
}

// noRedirectClient returns a client that surfaces 302 responses
func noRedirectClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// dataCheckString joins the sorted key=value lines Telegram signs
func dataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	return strings.Join(lines, "\n")
}

func hmacHex(key []byte, data string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// signWidget returns the query a login widget redirect would carry
func signWidget(fields map[string]string) url.Values {
	key := sha256.Sum256([]byte(TestBotToken))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hmacHex(key[:], dataCheckString(fields)))
	return q
}

// signInitData returns a Mini App initData string signed with the
// SHA-256(token) key
func signInitData(fields map[string]string) string {
	key := sha256.Sum256([]byte(TestBotToken))

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("hash", hmacHex(key[:], dataCheckString(fields)))
	return q.Encode()
}

func widgetFields(id int64, username string, authDate time.Time) map[string]string {
	return map[string]string{
		"id":         strconv.FormatInt(id, 10),
		"first_name": "Integration",
		"username":   username,
		"auth_date":  strconv.FormatInt(authDate.Unix(), 10),
	}
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	return nil
}
