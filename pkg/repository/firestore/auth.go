package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/model/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const tokensCollection = "tokens"

type tokenDoc struct {
	ID        string    `firestore:"id"`
	Secret    string    `firestore:"secret"`
	Sub       string    `firestore:"sub"`
	Email     string    `firestore:"email"`
	Name      string    `firestore:"name"`
	ExpiresAt time.Time `firestore:"expires_at"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (r *Firestore) tokenDocRef(tokenID auth.TokenID) *firestore.DocumentRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tokensCollection)).Doc(tokenID.String())
}

func (r *Firestore) PutToken(ctx context.Context, token *auth.Token) error {
	if err := token.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token")
	}

	doc := &tokenDoc{
		ID:        token.ID.String(),
		Secret:    token.Secret.String(),
		Sub:       token.Sub,
		Email:     token.Email,
		Name:      token.Name,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
	if _, err := r.tokenDocRef(token.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put token to firestore", goerr.V("token_id", token.ID))
	}

	return nil
}

func (r *Firestore) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	if err := tokenID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid token ID")
	}

	snap, err := r.tokenDocRef(tokenID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return nil, goerr.Wrap(err, "failed to get token from firestore", goerr.V("token_id", tokenID))
	}

	var doc tokenDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal token", goerr.V("token_id", tokenID))
	}

	return &auth.Token{
		ID:        auth.TokenID(doc.ID),
		Secret:    auth.TokenSecret(doc.Secret),
		Sub:       doc.Sub,
		Email:     doc.Email,
		Name:      doc.Name,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *Firestore) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	if err := tokenID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid token ID")
	}

	ref := r.tokenDocRef(tokenID)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return goerr.Wrap(err, "failed to get token from firestore", goerr.V("token_id", tokenID))
	}

	if _, err := ref.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete token from firestore", goerr.V("token_id", tokenID))
	}

	return nil
}
