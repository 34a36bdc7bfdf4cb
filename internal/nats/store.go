package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
)

const (
	// ConversationBucket holds conversation metadata keyed by owner and id.
	ConversationBucket = "CONVERSATION_META"
	// UserBucket holds accounts keyed by id.
	UserBucket = "USERS"
	// EmailBucket maps hashed emails to user ids.
	EmailBucket = "USER_EMAILS"
	// UploadBucket is the object store for uploaded documents.
	UploadBucket = "UPLOADS"

	listConcurrency = 8
)

// Store persists conversations, users and uploads in JetStream. Messages
// and events live on the conversations stream; everything else in KV
// buckets and an object store.
type Store struct {
	streams *StreamManager
	convs   jetstream.KeyValue
	users   jetstream.KeyValue
	emails  jetstream.KeyValue
	uploads jetstream.ObjectStore
}

// NewStore ensures the stream, buckets and object store exist.
func NewStore(ctx context.Context, client *Client) (*Store, error) {
	streams := NewStreamManager(client)
	if err := streams.EnsureStream(ctx); err != nil {
		return nil, err
	}

	js := client.JetStream()
	s := &Store{streams: streams}

	var err error
	if s.convs, err = ensureKV(ctx, js, ConversationBucket, "Conversation metadata"); err != nil {
		return nil, err
	}
	if s.users, err = ensureKV(ctx, js, UserBucket, "Accounts"); err != nil {
		return nil, err
	}
	if s.emails, err = ensureKV(ctx, js, EmailBucket, "Email index"); err != nil {
		return nil, err
	}

	s.uploads, err = js.ObjectStore(ctx, UploadBucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) || errors.Is(err, jetstream.ErrStreamNotFound) {
		s.uploads, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      UploadBucket,
			Description: "Uploaded documents",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store %s: %w", UploadBucket, err)
	}

	return s, nil
}

func ensureKV(ctx context.Context, js jetstream.JetStream, bucket, description string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: description,
			History:     1,
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// ConversationKey is the metadata key of a conversation.
func ConversationKey(userID, conversationID string) string {
	return userID + "." + conversationID
}

// CreateConversation implements store.Conversations.
func (s *Store) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	meta := *conv
	meta.Messages = nil

	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if _, err := s.convs.Create(ctx, ConversationKey(conv.UserID, conv.ID), data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to store conversation: %w", err)
	}

	for i := range conv.Messages {
		if err := s.AppendMessage(ctx, conv.UserID, conv.ID, conv.Messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) getMeta(ctx context.Context, userID, conversationID string) (*model.Conversation, uint64, error) {
	entry, err := s.convs.Get(ctx, ConversationKey(userID, conversationID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to read conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, 0, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, entry.Revision(), nil
}

// GetConversation implements store.Conversations.
func (s *Store) GetConversation(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	conv, _, err := s.getMeta(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.streams.GetMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return conv, nil
}

// ListConversations implements store.Conversations.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	keys, err := s.convs.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	prefix := userID + "."
	var ids []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
	}

	out := make([]model.Conversation, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			conv, err := s.GetConversation(gctx, userID, id)
			if err != nil {
				return err
			}
			out[i] = *conv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	store.SortByUpdated(out)
	return out, nil
}

// AppendMessage implements store.Conversations.
func (s *Store) AppendMessage(ctx context.Context, userID, conversationID string, msg model.Message) error {
	conv, rev, err := s.getMeta(ctx, userID, conversationID)
	if err != nil {
		return err
	}

	if _, err := s.streams.PublishMessage(ctx, userID, conversationID, &msg); err != nil {
		return err
	}

	if !msg.CreatedAt.After(conv.UpdatedAt) {
		return nil
	}
	conv.UpdatedAt = msg.CreatedAt
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.convs.Update(ctx, ConversationKey(userID, conversationID), data, rev); err != nil {
		// A concurrent append already moved updated_at forward.
		if isWrongRevision(err) {
			return nil
		}
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// PublishEvent implements store.Conversations.
func (s *Store) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	_, err := s.streams.PublishEvent(ctx, event)
	return err
}

// CreateUser implements store.Users.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if _, err := s.emails.Create(ctx, store.EmailKey(user.Email), []byte(user.ID)); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return store.ErrConflict
		}
		return fmt.Errorf("failed to index email: %w", err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if _, err := s.users.Put(ctx, user.ID, data); err != nil {
		_ = s.emails.Delete(ctx, store.EmailKey(user.Email))
		return fmt.Errorf("failed to store user: %w", err)
	}
	return nil
}

// GetUser implements store.Users.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	entry, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var u model.User
	if err := json.Unmarshal(entry.Value(), &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail implements store.Users.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	entry, err := s.emails.Get(ctx, store.EmailKey(email))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read email index: %w", err)
	}
	return s.GetUser(ctx, string(entry.Value()))
}

// PutUpload implements store.Uploads.
func (s *Store) PutUpload(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	info, err := s.uploads.Put(ctx, jetstream.ObjectMeta{
		Name:        key,
		Description: contentType,
	}, r)
	if err != nil {
		return 0, fmt.Errorf("failed to store upload: %w", err)
	}
	return int64(info.Size), nil
}

// GetUpload implements store.Uploads.
func (s *Store) GetUpload(ctx context.Context, key string) ([]byte, error) {
	data, err := s.uploads.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
