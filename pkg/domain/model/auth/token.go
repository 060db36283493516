package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// TokenLifetime is how long a session token stays valid after sign-in
	TokenLifetime = 7 * 24 * time.Hour

	AnonymousUserID    = "anonymous"
	AnonymousUserEmail = "anonymous@localhost"
	AnonymousUserName  = "Anonymous"
)

// TokenID identifies a session token. It is sent to the browser in the token_id cookie.
type TokenID string

func NewTokenID() TokenID {
	return TokenID(uuid.New().String())
}

func (id TokenID) String() string {
	return string(id)
}

func (id TokenID) Validate() error {
	if id == "" {
		return goerr.New("token ID is empty")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		return goerr.Wrap(err, "token ID is not a UUID", goerr.V("token_id", id))
	}
	return nil
}

// TokenSecret is compared against the stored token on every request
type TokenSecret string

// NewTokenSecret returns 32 random bytes hex encoded
func NewTokenSecret() TokenSecret {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to read random bytes: " + err.Error())
	}
	return TokenSecret(hex.EncodeToString(buf))
}

func (s TokenSecret) String() string {
	return string(s)
}

// Token is a browser session. Sub holds the msghub user ID.
type Token struct {
	ID        TokenID
	Secret    TokenSecret `masq:"secret"`
	Sub       string
	Email     string
	Name      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewToken(sub, email, name string) *Token {
	now := time.Now().UTC()
	return &Token{
		ID:        NewTokenID(),
		Secret:    NewTokenSecret(),
		Sub:       sub,
		Email:     email,
		Name:      name,
		ExpiresAt: now.Add(TokenLifetime),
		CreatedAt: now,
	}
}

// NewAnonymousUser returns a token used when authentication is not configured
func NewAnonymousUser() *Token {
	return NewToken(AnonymousUserID, AnonymousUserEmail, AnonymousUserName)
}

func (t *Token) Validate() error {
	if err := t.ID.Validate(); err != nil {
		return err
	}
	if t.Secret == "" {
		return goerr.New("token secret is empty", goerr.V("token_id", t.ID))
	}
	if t.Sub == "" {
		return goerr.New("token subject is empty", goerr.V("token_id", t.ID))
	}
	return nil
}

func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

type ctxTokenKey struct{}

func ContextWithToken(ctx context.Context, token *Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey{}, token)
}

// TokenFromContext returns the session token stored by the auth middleware
func TokenFromContext(ctx context.Context) (*Token, error) {
	token, ok := ctx.Value(ctxTokenKey{}).(*Token)
	if !ok || token == nil {
		return nil, goerr.New("no auth token in context")
	}
	return token, nil
}
