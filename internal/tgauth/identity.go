package tgauth

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/dgellow/tglogin-front/internal/claims"
)

// Identity is the authenticated user record. Values are only produced by
// Verifier after the signature and freshness checks passed.
type Identity struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
}

// identityFromWidget reads the flat widget claims.
func identityFromWidget(set claims.Set, authDate int64) (*Identity, error) {
	id, err := strconv.ParseInt(set.Value("id"), 10, 64)
	if err != nil || id == 0 {
		return nil, Malformed("Invalid user id", err)
	}
	return &Identity{
		ID:        id,
		FirstName: set.Value("first_name"),
		LastName:  set.Value("last_name"),
		Username:  set.Value("username"),
		PhotoURL:  set.Value("photo_url"),
		AuthDate:  authDate,
	}, nil
}

// identityFromWebApp reads the JSON-encoded user claim of Mini App initData.
func identityFromWebApp(set claims.Set, authDate int64) (*Identity, error) {
	raw, ok := set.Get("user")
	if !ok || raw == "" {
		return nil, Malformed("user missing", errors.New("initData has no user claim"))
	}
	if !gjson.Valid(raw) {
		return nil, Malformed("user invalid", errors.New("user claim is not valid JSON"))
	}

	user := gjson.Parse(raw)
	if !user.IsObject() {
		return nil, Malformed("user invalid", errors.New("user claim is not an object"))
	}
	id := user.Get("id")
	if id.Type != gjson.Number || id.Int() == 0 {
		return nil, Malformed("Invalid user id", errors.New("user.id is not a number"))
	}

	return &Identity{
		ID:        id.Int(),
		FirstName: user.Get("first_name").String(),
		LastName:  user.Get("last_name").String(),
		Username:  user.Get("username").String(),
		PhotoURL:  user.Get("photo_url").String(),
		AuthDate:  authDate,
	}, nil
}
