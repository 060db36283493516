package usecase

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
)

const sessionCacheTTL = 5 * time.Minute

type cachedSession struct {
	token    *auth.Token
	cachedAt time.Time
}

// sessionCache keeps validated sessions so every API request does not hit the token store
type sessionCache struct {
	entries sync.Map
	ttl     time.Duration
}

func newSessionCache(ttl time.Duration) *sessionCache {
	return &sessionCache{ttl: ttl}
}

func (c *sessionCache) get(tokenID auth.TokenID) *auth.Token {
	v, ok := c.entries.Load(tokenID)
	if !ok {
		return nil
	}

	entry := v.(*cachedSession)
	if time.Since(entry.cachedAt) > c.ttl {
		c.entries.Delete(tokenID)
		return nil
	}
	return entry.token
}

func (c *sessionCache) put(token *auth.Token) {
	c.entries.Store(token.ID, &cachedSession{token: token, cachedAt: time.Now()})
}

func (c *sessionCache) evict(tokenID auth.TokenID) {
	c.entries.Delete(tokenID)
}

// verifySession resolves the cookie pair to a live session. Any mismatch yields ErrUnauthenticated.
func (uc *AuthUseCase) verifySession(ctx context.Context, tokenID auth.TokenID, secret auth.TokenSecret) (*auth.Token, error) {
	token := uc.sessions.get(tokenID)
	cached := token != nil
	if !cached {
		stored, err := uc.repo.GetToken(ctx, tokenID)
		if err != nil {
			return nil, goerr.Wrap(ErrUnauthenticated, "session not found", goerr.V("token_id", tokenID), goerr.V("error", err.Error()))
		}
		token = stored
	}

	if subtle.ConstantTimeCompare([]byte(token.Secret), []byte(secret)) != 1 {
		return nil, goerr.Wrap(ErrUnauthenticated, "session secret mismatch", goerr.V("token_id", tokenID))
	}

	if token.IsExpired() {
		uc.sessions.evict(tokenID)
		if err := uc.repo.DeleteToken(ctx, tokenID); err != nil && !cached {
			return nil, goerr.Wrap(err, "failed to delete expired session", goerr.V("token_id", tokenID))
		}
		return nil, goerr.Wrap(ErrUnauthenticated, "session expired", goerr.V("token_id", tokenID))
	}

	if !cached {
		uc.sessions.put(token)
	}
	return token, nil
}
