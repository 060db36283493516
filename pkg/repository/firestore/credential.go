package firestore

import (
	"context"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"github.com/secmon-lab/msghub/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	credentialsCollection  = "credentials"
	accountLinksCollection = "account_links"
)

type credentialRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.CredentialRepository = &credentialRepository{}

func newCredentialRepository(client *firestore.Client, prefix string) *credentialRepository {
	return &credentialRepository{
		client:           client,
		collectionPrefix: prefix,
	}
}

type credentialDoc struct {
	UserID            string    `firestore:"user_id"`
	Platform          string    `firestore:"platform"`
	AccessToken       string    `firestore:"access_token"`
	UserAccessToken   string    `firestore:"user_access_token"`
	Scopes            []string  `firestore:"scopes"`
	UserScopes        []string  `firestore:"user_scopes"`
	ExternalAccountID string    `firestore:"external_account_id"`
	ExternalTeamID    string    `firestore:"external_team_id"`
	ExternalLogin     string    `firestore:"external_login"`
	CreatedAt         time.Time `firestore:"created_at"`
	UpdatedAt         time.Time `firestore:"updated_at"`
}

// accountLinkDoc maps one external identifier to a user
type accountLinkDoc struct {
	Platform string `firestore:"platform"`
	Key      string `firestore:"key"`
	UserID   string `firestore:"user_id"`
}

func (r *credentialRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, credentialsCollection))
}

func (r *credentialRepository) linksCollection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, accountLinksCollection))
}

func credentialDocID(userID model.UserID, platform types.Platform) string {
	return userID.String() + "_" + platform.String()
}

func accountLinkDocID(platform types.Platform, key string) string {
	return platform.String() + "_" + url.PathEscape(key)
}

func toCredentialDoc(c *model.Credential) *credentialDoc {
	return &credentialDoc{
		UserID:            c.UserID.String(),
		Platform:          c.Platform.String(),
		AccessToken:       c.AccessToken,
		UserAccessToken:   c.UserAccessToken,
		Scopes:            c.Scopes,
		UserScopes:        c.UserScopes,
		ExternalAccountID: c.ExternalAccountID,
		ExternalTeamID:    c.ExternalTeamID,
		ExternalLogin:     c.ExternalLogin,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func (d *credentialDoc) toModel() *model.Credential {
	return &model.Credential{
		UserID:            model.UserID(d.UserID),
		Platform:          types.Platform(d.Platform),
		AccessToken:       d.AccessToken,
		UserAccessToken:   d.UserAccessToken,
		Scopes:            d.Scopes,
		UserScopes:        d.UserScopes,
		ExternalAccountID: d.ExternalAccountID,
		ExternalTeamID:    d.ExternalTeamID,
		ExternalLogin:     d.ExternalLogin,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (r *credentialRepository) Put(ctx context.Context, cred *model.Credential) error {
	if err := cred.Validate(); err != nil {
		return goerr.Wrap(err, "invalid credential")
	}

	ref := r.collection().Doc(credentialDocID(cred.UserID, cred.Platform))
	doc := toCredentialDoc(cred)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		prev, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to get credential")
		}

		var stale []*firestore.DocumentRef
		if err == nil {
			var prevDoc credentialDoc
			if err := prev.DataTo(&prevDoc); err != nil {
				return goerr.Wrap(err, "failed to unmarshal credential")
			}
			if !prevDoc.CreatedAt.IsZero() {
				doc.CreatedAt = prevDoc.CreatedAt
			}

			// all reads must happen before the first write
			for _, key := range model.StaleRoutingKeys(prevDoc.toModel(), cred) {
				linkRef := r.linksCollection().Doc(accountLinkDocID(cred.Platform, key))
				snap, err := tx.Get(linkRef)
				if err != nil {
					if status.Code(err) == codes.NotFound {
						continue
					}
					return goerr.Wrap(err, "failed to get account link", goerr.V("key", key))
				}
				var link accountLinkDoc
				if err := snap.DataTo(&link); err != nil {
					return goerr.Wrap(err, "failed to unmarshal account link")
				}
				if link.UserID == cred.UserID.String() {
					stale = append(stale, linkRef)
				}
			}
		}

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		for _, linkRef := range stale {
			if err := tx.Delete(linkRef); err != nil {
				return err
			}
		}
		for _, key := range cred.RoutingKeys() {
			link := &accountLinkDoc{Platform: cred.Platform.String(), Key: key, UserID: cred.UserID.String()}
			if err := tx.Set(r.linksCollection().Doc(accountLinkDocID(cred.Platform, key)), link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put credential",
			goerr.V("user_id", cred.UserID),
			goerr.V("platform", cred.Platform))
	}

	return nil
}

func (r *credentialRepository) Get(ctx context.Context, userID model.UserID, platform types.Platform) (*model.Credential, error) {
	snap, err := r.collection().Doc(credentialDocID(userID, platform)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get credential", goerr.V("user_id", userID), goerr.V("platform", platform))
	}

	var doc credentialDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal credential", goerr.V("docID", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

func (r *credentialRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Credential, error) {
	return r.query(ctx, r.collection().Where("user_id", "==", userID.String()))
}

func (r *credentialRepository) ListByPlatform(ctx context.Context, platform types.Platform, limit int) ([]*model.Credential, error) {
	q := r.collection().Where("platform", "==", platform.String())
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.query(ctx, q)
}

func (r *credentialRepository) query(ctx context.Context, q firestore.Query) ([]*model.Credential, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var creds []*model.Credential
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate credentials")
		}

		var doc credentialDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal credential", goerr.V("docID", snap.Ref.ID))
		}
		creds = append(creds, doc.toModel())
	}
	return creds, nil
}

func (r *credentialRepository) FindUserByRoutingKey(ctx context.Context, platform types.Platform, key string) (model.UserID, error) {
	if key == "" {
		return "", nil
	}

	snap, err := r.linksCollection().Doc(accountLinkDocID(platform, key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", nil
		}
		return "", goerr.Wrap(err, "failed to get account link", goerr.V("platform", platform), goerr.V("key", key))
	}

	var doc accountLinkDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", goerr.Wrap(err, "failed to unmarshal account link", goerr.V("docID", snap.Ref.ID))
	}
	return model.UserID(doc.UserID), nil
}
