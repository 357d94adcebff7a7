package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dgellow/tglogin-front/internal/tgauth"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// Profile is the persisted view of a user who completed a login.
type Profile struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `json:"username"`
	PhotoURL     string    `json:"photo_url"`
	LastAuthDate int64     `json:"last_auth_date"`
	LoginCount   int64     `json:"login_count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// ProfileFromIdentity builds the profile written after a successful login.
func ProfileFromIdentity(identity *tgauth.Identity, now time.Time) Profile {
	return Profile{
		ID:           identity.ID,
		FirstName:    identity.FirstName,
		LastName:     identity.LastName,
		Username:     identity.Username,
		PhotoURL:     identity.PhotoURL,
		LastAuthDate: identity.AuthDate,
		FirstSeen:    now,
		LastSeen:     now,
	}
}

// Store persists user profiles keyed by subject id.
//
// UpsertUser is last-writer-wins: concurrent upserts for one id are applied
// one after another and the latest call's display fields and LastSeen stick.
// FirstSeen is kept from the first insert and LoginCount counts every call.
type Store interface {
	UpsertUser(ctx context.Context, p Profile) error
	GetUser(ctx context.Context, id int64) (*Profile, error)
	ListUsers(ctx context.Context) ([]Profile, error)
	Close() error
}

// Kind names a storage backend.
type Kind string

const (
	KindMemory    Kind = "memory"
	KindSQLite    Kind = "sqlite"
	KindFirestore Kind = "firestore"
)
