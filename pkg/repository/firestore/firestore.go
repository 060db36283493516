package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"google.golang.org/api/option"
)

type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
	user             *userRepository
	credential       *credentialRepository
	message          *messageRepository
	clientOpts       []option.ClientOption
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix isolates collections, mainly for tests sharing one database
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithClientOptions passes options such as credentials file to the Firestore client
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Firestore) {
		f.clientOpts = append(f.clientOpts, opts...)
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	f := &Firestore{}
	for _, opt := range opts {
		opt(f)
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, f.clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f.client = client
	f.user = newUserRepository(client, f.collectionPrefix)
	f.credential = newCredentialRepository(client, f.collectionPrefix)
	f.message = newMessageRepository(client, f.collectionPrefix)

	return f, nil
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Credential() interfaces.CredentialRepository {
	return f.credential
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}
