package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgellow/tglogin-front/internal/cookie"
	jsonwriter "github.com/dgellow/tglogin-front/internal/json"
	"github.com/dgellow/tglogin-front/internal/log"
	"github.com/dgellow/tglogin-front/internal/session"
	"github.com/dgellow/tglogin-front/internal/storage"
	"github.com/dgellow/tglogin-front/internal/tgauth"
	"github.com/dgellow/tglogin-front/internal/urlutil"
)

// Routes served by AuthHandlers.
const (
	TelegramCallbackPath = "/api/auth/telegram"
	WebAppPath           = "/api/auth/webapp"
	SessionPath          = "/api/session"
	LogoutPath           = "/api/auth/logout"
	ConfigPath           = "/api/config"
)

const (
	maxWebAppBody  = 64 << 10
	persistTimeout = 5 * time.Second
)

// AuthHandlersConfig holds the public settings the handlers need.
type AuthHandlersConfig struct {
	BaseURL      string
	BotUsername  string
	RedirectPath string
}

// AuthHandlers serves the login endpoints.
type AuthHandlers struct {
	verifier *tgauth.Verifier
	issuer   *session.Issuer
	store    storage.Store
	config   AuthHandlersConfig
	now      func() time.Time

	// profiles collapses concurrent store reads for the same user
	profiles singleflight.Group
}

// NewAuthHandlers creates the login handlers. store may be nil, in which case
// profiles are not persisted.
func NewAuthHandlers(verifier *tgauth.Verifier, issuer *session.Issuer, store storage.Store, cfg AuthHandlersConfig) *AuthHandlers {
	if cfg.RedirectPath == "" {
		cfg.RedirectPath = "/app"
	}
	return &AuthHandlers{
		verifier: verifier,
		issuer:   issuer,
		store:    store,
		config:   cfg,
		now:      time.Now,
	}
}

// webAppRequest is the body of POST /api/auth/webapp. InitData is kept raw so
// a non-string value is told apart from a missing one.
type webAppRequest struct {
	InitData json.RawMessage `json:"initData"`
}

// SessionResponse is the body of GET /api/session. Profile is only present
// for signed session formats when a store is configured and holds the user.
type SessionResponse struct {
	session.Claims
	Profile *storage.Profile `json:"profile,omitempty"`
}

// PublicConfig is served to the login page.
type PublicConfig struct {
	BotUsername string `json:"botUsername"`
	AuthURL     string `json:"authUrl"`
}

// TelegramCallbackHandler verifies a login widget redirect, sets the session
// cookie and redirects into the app.
func (h *AuthHandlers) TelegramCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		jsonwriter.WriteMethodNotAllowed(w, "GET, HEAD")
		return
	}

	identity, err := h.verifier.VerifyWidget(r.URL.Query())
	if err != nil {
		h.writeAuthError(w, r, "widget", err)
		return
	}

	if !h.startSession(w, r, "widget", identity) {
		return
	}
	http.Redirect(w, r, h.config.RedirectPath, http.StatusFound)
}

// WebAppHandler verifies Mini App initData posted as {"initData": "..."}.
func (h *AuthHandlers) WebAppHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !h.verifier.Configured() {
		h.writeAuthError(w, r, "webapp", tgauth.NewError(tgauth.ErrCodeConfig, errors.New("bot token is not set")))
		return
	}

	initData, err := readInitData(w, r)
	if err != nil {
		h.writeAuthError(w, r, "webapp", err)
		return
	}

	identity, err := h.verifier.VerifyWebApp(initData)
	if err != nil {
		h.writeAuthError(w, r, "webapp", err)
		return
	}

	if !h.startSession(w, r, "webapp", identity) {
		return
	}
	_ = jsonwriter.WriteOK(w)
}

func readInitData(w http.ResponseWriter, r *http.Request) (string, error) {
	var req webAppRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebAppBody)).Decode(&req); err != nil {
		return "", tgauth.Malformed("initData missing", err)
	}

	var initData string
	if len(req.InitData) == 0 || json.Unmarshal(req.InitData, &initData) != nil || initData == "" {
		return "", tgauth.Malformed("initData missing", nil)
	}
	return initData, nil
}

// startSession issues the cookie and records the profile. It reports false
// when a response has already been written.
func (h *AuthHandlers) startSession(w http.ResponseWriter, r *http.Request, flow string, identity *tgauth.Identity) bool {
	record, err := h.issuer.Issue(identity)
	if err != nil {
		h.writeAuthError(w, r, flow, tgauth.NewError(tgauth.ErrCodeInternal, err))
		return false
	}
	cookie.SetSession(w, record.Token, record.Cookie)

	log.LogInfoWithFields("auth", "Login verified", map[string]any{
		"flow":       flow,
		"user_id":    identity.ID,
		"username":   identity.Username,
		"request_id": RequestIDFromContext(r.Context()),
	})

	h.persistProfile(r.Context(), identity)
	return true
}

// persistProfile upserts the profile. Failures are logged and never block the
// login: the cookie is already set.
func (h *AuthHandlers) persistProfile(ctx context.Context, identity *tgauth.Identity) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := h.store.UpsertUser(ctx, storage.ProfileFromIdentity(identity, h.now())); err != nil {
		log.LogWarnWithFields("auth", "Failed to persist user profile", map[string]any{
			"user_id": identity.ID,
			"error":   err.Error(),
		})
	}
}

// writeAuthError renders err with its caller-safe message. Detail stays in
// the server log.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	authErr := tgauth.AsError(err)
	fields := map[string]any{
		"flow":       flow,
		"code":       string(authErr.Code),
		"status":     authErr.StatusCode(),
		"request_id": RequestIDFromContext(r.Context()),
	}
	if authErr.Err != nil {
		fields["error"] = authErr.Err.Error()
	}

	if authErr.StatusCode() >= http.StatusInternalServerError {
		log.LogErrorWithFields("auth", "Login failed", fields)
	} else {
		log.LogWarnWithFields("auth", "Login rejected", fields)
	}

	jsonwriter.WriteError(w, authErr.StatusCode(), string(authErr.Code), authErr.Message)
}

// SessionHandler returns the claims of the current session cookie.
func (h *AuthHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, http.MethodGet)
		return
	}

	attrs := h.issuer.CookieAttributes()
	token, err := cookie.Get(r, attrs.Name)
	if err != nil {
		jsonwriter.WriteUnauthorized(w, "No session")
		return
	}

	claims, err := h.issuer.Decode(token)
	if err != nil {
		log.LogDebugWithFields("auth", "Invalid session cookie", map[string]any{
			"error":      err.Error(),
			"request_id": RequestIDFromContext(r.Context()),
		})
		cookie.ClearSession(w, attrs)
		jsonwriter.WriteUnauthorized(w, "Invalid session")
		return
	}

	_ = jsonwriter.Write(w, SessionResponse{
		Claims:  claims,
		Profile: h.lookupProfile(r.Context(), claims.UID),
	})
}

// lookupProfile returns the stored profile or nil. Lookup errors are logged
// and never fail the session check. Unsigned sessions never get a profile:
// anyone can mint one for any uid.
func (h *AuthHandlers) lookupProfile(ctx context.Context, uid int64) *storage.Profile {
	if h.store == nil || h.issuer.Format() == session.FormatPlain {
		return nil
	}
	v, err, _ := h.profiles.Do(strconv.FormatInt(uid, 10), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		return h.store.GetUser(ctx, uid)
	})
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.LogWarnWithFields("auth", "Failed to load user profile", map[string]any{
				"user_id": uid,
				"error":   err.Error(),
			})
		}
		return nil
	}
	return v.(*storage.Profile)
}

// LogoutHandler clears the session cookie.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w, http.MethodPost)
		return
	}
	cookie.ClearSession(w, h.issuer.CookieAttributes())
	_ = jsonwriter.WriteOK(w)
}

// ConfigHandler serves the public login page settings.
func (h *AuthHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w, http.MethodGet)
		return
	}
	_ = jsonwriter.Write(w, PublicConfig{
		BotUsername: h.config.BotUsername,
		AuthURL:     urlutil.AbsoluteURL(h.config.BaseURL, TelegramCallbackPath),
	})
}
