package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const usersCollection = "users"

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.UserRepository = &userRepository{}

func newUserRepository(client *firestore.Client, prefix string) *userRepository {
	return &userRepository{
		client:           client,
		collectionPrefix: prefix,
	}
}

type userDoc struct {
	ID        string    `firestore:"id"`
	Email     string    `firestore:"email"`
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (r *userRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, usersCollection))
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:        model.UserID(d.ID),
		Email:     d.Email,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
}

func (r *userRepository) Put(ctx context.Context, user *model.User) error {
	if err := user.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user")
	}

	ref := r.collection().Doc(user.ID.String())
	doc := &userDoc{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		q := r.collection().Where("email", "==", user.Email).Limit(1)
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to query user by email")
		}
		if len(snaps) > 0 && snaps[0].Ref.ID != user.ID.String() {
			return goerr.New("email already belongs to another user",
				goerr.V("email", user.Email),
				goerr.V("user_id", user.ID))
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to put user", goerr.V("user_id", user.ID))
	}

	return nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	snap, err := r.collection().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("user_id", id))
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("user_id", id))
	}
	return doc.toModel(), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	iter := r.collection().Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query user by email", goerr.V("email", email))
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("docID", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	iter := r.collection().OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var users []*model.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate users")
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("docID", snap.Ref.ID))
		}
		users = append(users, doc.toModel())
	}
	return users, nil
}
