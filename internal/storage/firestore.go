package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgellow/tglogin-front/internal/log"
)

// DefaultFirestoreCollection holds one document per user, keyed by id.
const DefaultFirestoreCollection = "tglogin_users"

// Ensure FirestoreStorage implements Store
var _ Store = (*FirestoreStorage)(nil)

// FirestoreStorage persists profiles in Google Cloud Firestore.
type FirestoreStorage struct {
	client     *firestore.Client
	projectID  string
	collection string
}

// UserDoc represents a user document in Firestore
type UserDoc struct {
	ID           int64     `firestore:"id"`
	FirstName    string    `firestore:"first_name"`
	LastName     string    `firestore:"last_name"`
	Username     string    `firestore:"username"`
	PhotoURL     string    `firestore:"photo_url"`
	LastAuthDate int64     `firestore:"last_auth_date"`
	LoginCount   int64     `firestore:"login_count"`
	FirstSeen    time.Time `firestore:"first_seen"`
	LastSeen     time.Time `firestore:"last_seen"`
}

func (d UserDoc) profile() Profile {
	return Profile{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Username:     d.Username,
		PhotoURL:     d.PhotoURL,
		LastAuthDate: d.LastAuthDate,
		LoginCount:   d.LoginCount,
		FirstSeen:    d.FirstSeen,
		LastSeen:     d.LastSeen,
	}
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, collection string) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Firestore storage ready", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStorage{
		client:     client,
		projectID:  projectID,
		collection: collection,
	}, nil
}

func (s *FirestoreStorage) doc(id int64) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(strconv.FormatInt(id, 10))
}

// UpsertUser writes the profile inside a transaction so concurrent logins of
// the same user are serialized by Firestore.
func (s *FirestoreStorage) UpsertUser(ctx context.Context, p Profile) error {
	ref := s.doc(p.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc := UserDoc{
			ID:           p.ID,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Username:     p.Username,
			PhotoURL:     p.PhotoURL,
			LastAuthDate: p.LastAuthDate,
			LoginCount:   1,
			FirstSeen:    p.FirstSeen,
			LastSeen:     p.LastSeen,
		}

		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing UserDoc
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("decoding user %d: %w", p.ID, err)
			}
			doc.FirstSeen = existing.FirstSeen
			doc.LoginCount = existing.LoginCount + 1
		case status.Code(err) == codes.NotFound:
			// first login
		default:
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return fmt.Errorf("upserting user %d: %w", p.ID, err)
	}
	return nil
}

// GetUser loads one profile.
func (s *FirestoreStorage) GetUser(ctx context.Context, id int64) (*Profile, error) {
	snap, err := s.doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}

	var doc UserDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding user %d: %w", id, err)
	}
	p := doc.profile()
	return &p, nil
}

// ListUsers returns all profiles ordered by id.
func (s *FirestoreStorage) ListUsers(ctx context.Context) ([]Profile, error) {
	iter := s.client.Collection(s.collection).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var users []Profile
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var doc UserDoc
		if err := snap.DataTo(&doc); err != nil {
			log.LogError("Failed to unmarshal user (doc: %s): %v", snap.Ref.ID, err)
			continue
		}
		users = append(users, doc.profile())
	}
	return users, nil
}

func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}
