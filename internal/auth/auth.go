// Package auth provides account registration, login and the bearer-token
// identity resolver. Accounts and tokens live in the same kv store as the
// domain records, under their own key namespaces.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bandhanheal/backend/internal/kv"
	"github.com/bandhanheal/backend/pkg/models"
)

var (
	// ErrEmailTaken means an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials means the email/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken means the bearer token is unknown or expired. The
	// boundary must treat every resolver failure uniformly as Unauthorized.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Resolver maps a bearer credential to a stable user identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (userID string, err error)
}

// Manager implements registration, login and token resolution.
type Manager struct {
	store    kv.Store
	tokenTTL time.Duration
	now      func() time.Time
}

// NewManager creates an auth manager issuing tokens valid for tokenTTL.
func NewManager(store kv.Store, tokenTTL time.Duration) *Manager {
	return &Manager{store: store, tokenTTL: tokenTTL, now: time.Now}
}

// tokenRecord is the stored resolution target for one opaque token.
type tokenRecord struct {
	UserID         string `json:"userId"`
	IssuedAtEpoch  int64  `json:"issuedAtEpoch"`
	ExpiresAtEpoch int64  `json:"expiresAtEpoch"`
}

func emailKey(email string) string {
	return "user:email:" + strings.ToLower(email)
}

func userKey(id string) string {
	return "user:id:" + id
}

func tokenKey(token string) string {
	return "token:" + token
}

// Signup creates an account. Emails are case-insensitive and must be unique.
func (m *Manager) Signup(ctx context.Context, email, password, name, relationshipStatus string) (*models.User, error) {
	if _, err := m.store.Get(ctx, emailKey(email)); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := m.now().UTC()
	user := &models.User{
		ID:                 uuid.NewString(),
		Email:              strings.ToLower(email),
		Name:               name,
		RelationshipStatus: relationshipStatus,
		PasswordHash:       string(hash),
		CreatedAt:          now.Format(time.RFC3339),
		CreatedAtEpoch:     now.UnixMilli(),
	}

	raw, err := marshalUser(user)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, userKey(user.ID), raw); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	if err := m.store.Set(ctx, emailKey(email), raw); err != nil {
		return nil, fmt.Errorf("index email: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and mints an opaque bearer token.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	raw, err := m.store.Get(ctx, emailKey(email))
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("fetch user: %w", err)
	}

	user, err := unmarshalUser(raw)
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	now := m.now().UTC()
	rec := tokenRecord{
		UserID:         user.ID,
		IssuedAtEpoch:  now.UnixMilli(),
		ExpiresAtEpoch: now.Add(m.tokenTTL).UnixMilli(),
	}
	recRaw, err := json.Marshal(&rec)
	if err != nil {
		return "", nil, fmt.Errorf("encode token: %w", err)
	}
	if err := m.store.Set(ctx, tokenKey(token), recRaw); err != nil {
		return "", nil, fmt.Errorf("store token: %w", err)
	}
	return token, user, nil
}

// Resolve maps a bearer token to its user id. Unknown, malformed and expired
// tokens all come back as ErrInvalidToken.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	raw, err := m.store.Get(ctx, tokenKey(token))
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}

	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", ErrInvalidToken
	}
	if m.now().UTC().UnixMilli() >= rec.ExpiresAtEpoch {
		_ = m.store.Delete(ctx, tokenKey(token))
		return "", ErrInvalidToken
	}
	return rec.UserID, nil
}

// userStored is the persisted account shape; unlike models.User it keeps the
// password hash in the JSON.
type userStored struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func marshalUser(u *models.User) ([]byte, error) {
	raw, err := json.Marshal(&userStored{User: *u, PasswordHash: u.PasswordHash})
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	return raw, nil
}

func unmarshalUser(raw []byte) (*models.User, error) {
	var stored userStored
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user := stored.User
	user.PasswordHash = stored.PasswordHash
	return &user, nil
}
