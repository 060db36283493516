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
	messagesCollection = "messages"

	// Maximum document references per GetAll
	firestoreGetAllLimit = 30
)

type messageRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.MessageRepository = &messageRepository{}

func newMessageRepository(client *firestore.Client, prefix string) *messageRepository {
	return &messageRepository{
		client:           client,
		collectionPrefix: prefix,
	}
}

type messageDoc struct {
	ID         string    `firestore:"id"`
	UserID     string    `firestore:"user_id"`
	Platform   string    `firestore:"platform"`
	Content    string    `firestore:"content"`
	Sender     string    `firestore:"sender"`
	Timestamp  time.Time `firestore:"timestamp"`
	ExternalID string    `firestore:"external_id"`
	ThreadID   string    `firestore:"thread_id"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func (r *messageRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, messagesCollection))
}

// messageDocID derives the document ID from the dedup key so that Create
// fails with AlreadyExists for a second write of the same external message.
func messageDocID(platform types.Platform, externalID string) string {
	return platform.String() + "_" + url.PathEscape(externalID)
}

func toMessageDoc(m *model.Message) *messageDoc {
	return &messageDoc{
		ID:         m.ID.String(),
		UserID:     m.UserID.String(),
		Platform:   m.Platform.String(),
		Content:    m.Content,
		Sender:     m.Sender,
		Timestamp:  m.Timestamp,
		ExternalID: m.ExternalID,
		ThreadID:   m.ThreadID,
		CreatedAt:  m.CreatedAt,
	}
}

func (d *messageDoc) toModel() *model.Message {
	return &model.Message{
		ID:         model.MessageID(d.ID),
		UserID:     model.UserID(d.UserID),
		Platform:   types.Platform(d.Platform),
		Content:    d.Content,
		Sender:     d.Sender,
		Timestamp:  d.Timestamp,
		ExternalID: d.ExternalID,
		ThreadID:   d.ThreadID,
		CreatedAt:  d.CreatedAt,
	}
}

func (r *messageRepository) ExistingIDs(ctx context.Context, platform types.Platform, externalIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})

	for i := 0; i < len(externalIDs); i += firestoreGetAllLimit {
		end := min(i+firestoreGetAllLimit, len(externalIDs))
		batch := externalIDs[i:end]

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = r.collection().Doc(messageDocID(platform, id))
		}

		snaps, err := r.client.GetAll(ctx, refs)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to batch get messages", goerr.V("count", len(batch)))
		}
		for idx, snap := range snaps {
			if snap.Exists() {
				existing[batch[idx]] = struct{}{}
			}
		}
	}

	return existing, nil
}

func (r *messageRepository) InsertNew(ctx context.Context, msgs []*model.Message) ([]*model.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid message")
		}
	}

	type pending struct {
		msg *model.Message
		job *firestore.BulkWriterJob
	}

	bulkWriter := r.client.BulkWriter(ctx)
	defer bulkWriter.End()

	// BulkWriter rejects two writes to the same document, so collapse first
	seen := make(map[string]struct{}, len(msgs))
	jobs := make([]pending, 0, len(msgs))
	for _, msg := range msgs {
		docID := messageDocID(msg.Platform, msg.ExternalID)
		if _, ok := seen[docID]; ok {
			continue
		}
		seen[docID] = struct{}{}

		job, err := bulkWriter.Create(r.collection().Doc(docID), toMessageDoc(msg))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to add Create operation to bulk writer", goerr.V("doc_id", docID))
		}
		jobs = append(jobs, pending{msg: msg, job: job})
	}

	bulkWriter.Flush()

	inserted := make([]*model.Message, 0, len(jobs))
	for _, p := range jobs {
		if _, err := p.job.Results(); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				continue
			}
			return inserted, goerr.Wrap(err, "failed to create message",
				goerr.V("platform", p.msg.Platform),
				goerr.V("external_id", p.msg.ExternalID))
		}
		inserted = append(inserted, p.msg)
	}

	return inserted, nil
}

func (r *messageRepository) Get(ctx context.Context, platform types.Platform, externalID string) (*model.Message, error) {
	snap, err := r.collection().Doc(messageDocID(platform, externalID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get message", goerr.V("platform", platform), goerr.V("external_id", externalID))
	}

	var doc messageDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("docID", snap.Ref.ID))
	}
	return doc.toModel(), nil
}

// ListByUser requires the composite index messages(user_id ASC, timestamp DESC), created by the migrate command.
func (r *messageRepository) ListByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Message, error) {
	q := r.collection().
		Where("user_id", "==", userID.String()).
		OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	msgs := []*model.Message{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("user_id", userID))
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("docID", snap.Ref.ID))
		}
		msgs = append(msgs, doc.toModel())
	}
	return msgs, nil
}
