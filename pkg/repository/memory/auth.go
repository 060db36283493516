package memory

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
)

// tokenStore keeps session tokens by value so callers never share a pointer with the map
type tokenStore struct {
	mu     sync.RWMutex
	tokens map[auth.TokenID]auth.Token
}

func newTokenStore() *tokenStore {
	return &tokenStore{
		tokens: make(map[auth.TokenID]auth.Token),
	}
}

// put stores the token and drops sessions that have already expired
func (s *tokenStore) put(token auth.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.tokens {
		if t.IsExpired() {
			delete(s.tokens, id)
		}
	}
	s.tokens[token.ID] = token
}

func (s *tokenStore) get(id auth.TokenID) (auth.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	return t, ok
}

func (s *tokenStore) remove(id auth.TokenID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[id]; !ok {
		return false
	}
	delete(s.tokens, id)
	return true
}

func (m *Memory) PutToken(ctx context.Context, token *auth.Token) error {
	if err := token.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token")
	}
	m.tokens.put(*token)
	return nil
}

func (m *Memory) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	if err := tokenID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid token ID")
	}

	token, ok := m.tokens.get(tokenID)
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
	}
	return &token, nil
}

func (m *Memory) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	if err := tokenID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token ID")
	}

	if !m.tokens.remove(tokenID) {
		return goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
	}
	return nil
}
