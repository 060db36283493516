package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
)

type credentialKey struct {
	userID   model.UserID
	platform types.Platform
}

type routingKey struct {
	platform types.Platform
	key      string
}

type credentialRepository struct {
	mu          sync.RWMutex
	credentials map[credentialKey]*model.Credential
	links       map[routingKey]model.UserID
}

var _ interfaces.CredentialRepository = &credentialRepository{}

func newCredentialRepository() *credentialRepository {
	return &credentialRepository{
		credentials: make(map[credentialKey]*model.Credential),
		links:       make(map[routingKey]model.UserID),
	}
}

func copyCredential(c *model.Credential) *model.Credential {
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	cp.UserScopes = append([]string(nil), c.UserScopes...)
	return &cp
}

func (r *credentialRepository) Put(ctx context.Context, cred *model.Credential) error {
	if err := cred.Validate(); err != nil {
		return goerr.Wrap(err, "invalid credential")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := credentialKey{userID: cred.UserID, platform: cred.Platform}
	stored := copyCredential(cred)
	if prev, ok := r.credentials[key]; ok {
		if !prev.CreatedAt.IsZero() {
			stored.CreatedAt = prev.CreatedAt
		}
		for _, k := range model.StaleRoutingKeys(prev, cred) {
			rk := routingKey{platform: cred.Platform, key: k}
			if r.links[rk] == cred.UserID {
				delete(r.links, rk)
			}
		}
	}
	r.credentials[key] = stored

	// Last writer wins when two users link the same external account
	for _, k := range cred.RoutingKeys() {
		r.links[routingKey{platform: cred.Platform, key: k}] = cred.UserID
	}
	return nil
}

func (r *credentialRepository) Get(ctx context.Context, userID model.UserID, platform types.Platform) (*model.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.credentials[credentialKey{userID: userID, platform: platform}]
	if !ok {
		return nil, nil
	}
	return copyCredential(cred), nil
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var creds []*model.Credential
	for _, p := range types.AllPlatforms() {
		if cred, ok := r.credentials[credentialKey{userID: userID, platform: p}]; ok {
			creds = append(creds, copyCredential(cred))
		}
	}
	return creds, nil
}

func (r *credentialRepository) FindUserByRoutingKey(ctx context.Context, platform types.Platform, key string) (model.UserID, error) {
	if key == "" {
		return "", nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.links[routingKey{platform: platform, key: key}], nil
}

func (r *credentialRepository) ListByPlatform(ctx context.Context, platform types.Platform, limit int) ([]*model.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var creds []*model.Credential
	for key, cred := range r.credentials {
		if key.platform == platform {
			creds = append(creds, copyCredential(cred))
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].UserID < creds[j].UserID
	})
	if limit > 0 && len(creds) > limit {
		creds = creds[:limit]
	}
	return creds, nil
}
