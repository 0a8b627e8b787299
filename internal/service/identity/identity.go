// Package identity establishes who a request belongs to.
package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/storage"
)

// ErrSessionNotEstablished is returned when a token does not identify a user.
var ErrSessionNotEstablished = errors.New("session not established")

// Identity is a resolved user.
type Identity struct {
	UserID   string           `json:"userId"`
	Email    string           `json:"email"`
	Name     string           `json:"name,omitempty"`
	Picture  string           `json:"picture,omitempty"`
	Language persona.Language `json:"language,omitempty"`
}

// Resolver turns a login token into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Claims are the Google ID token fields the app uses.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Locale  string `json:"locale"`
}

// DecodeGoogleToken reads the payload of a Google ID token. The signature is
// not checked; the token only selects the account.
func DecodeGoogleToken(token string) (Claims, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: token is not a JWT", ErrSessionNotEstablished)
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad token payload: %v", ErrSessionNotEstablished, err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: bad token claims: %v", ErrSessionNotEstablished, err)
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if claims.Email == "" {
		return Claims{}, fmt.Errorf("%w: token has no email", ErrSessionNotEstablished)
	}
	return claims, nil
}

// LanguageHint maps a locale such as "hi-IN" to a supported language.
func LanguageHint(locale string) persona.Language {
	base, _, _ := strings.Cut(locale, "-")
	base, _, _ = strings.Cut(base, "_")
	if lang, ok := persona.ParseLanguage(base); ok {
		return lang
	}
	return ""
}

// Account is the stored user record.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const accountKeyPrefix = "account:"

// Directory keeps user accounts keyed by email.
type Directory struct {
	store storage.Store
	now   func() time.Time
}

// NewDirectory returns a Directory over store.
func NewDirectory(store storage.Store) *Directory {
	return &Directory{store: store, now: time.Now}
}

// FindOrCreate returns the account for claims.Email, creating it on first login.
func (d *Directory) FindOrCreate(ctx context.Context, claims Claims) (Account, error) {
	key := accountKeyPrefix + claims.Email
	raw, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return Account{}, fmt.Errorf("failed to read account: %w", err)
	}
	if ok {
		var acc Account
		if err := json.Unmarshal([]byte(raw), &acc); err == nil && acc.ID != "" {
			return acc, nil
		}
	}

	acc := Account{
		ID:        uuid.NewString(),
		Email:     claims.Email,
		Name:      claims.Name,
		AvatarURL: claims.Picture,
		CreatedAt: d.now().UTC(),
	}
	data, err := json.Marshal(acc)
	if err != nil {
		return Account{}, fmt.Errorf("failed to encode account: %w", err)
	}
	if err := d.store.Set(ctx, key, string(data)); err != nil {
		return Account{}, fmt.Errorf("failed to save account: %w", err)
	}
	return acc, nil
}

// GoogleResolver resolves Google ID tokens against a Directory.
type GoogleResolver struct {
	accounts *Directory
}

// NewGoogleResolver returns a Resolver for Google sign-in tokens.
func NewGoogleResolver(accounts *Directory) *GoogleResolver {
	return &GoogleResolver{accounts: accounts}
}

// Resolve decodes token and returns the matching account's identity.
func (r *GoogleResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := DecodeGoogleToken(token)
	if err != nil {
		return Identity{}, err
	}
	acc, err := r.accounts.FindOrCreate(ctx, claims)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrSessionNotEstablished, err)
	}
	return Identity{
		UserID:   acc.ID,
		Email:    acc.Email,
		Name:     acc.Name,
		Picture:  acc.AvatarURL,
		Language: LanguageHint(claims.Locale),
	}, nil
}
