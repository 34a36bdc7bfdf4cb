// Package legacy is the local key-value store behind request chats. It keeps
// the flat layout of the original browser storage: one JSON list of requests
// and one JSON list of chat messages per request, each under its own key.
package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
)

const (
	// RequestsKey holds the list of requests.
	RequestsKey = "ca_helper_requests"
	// ChatsKeyPrefix prefixes the per-request message list key.
	ChatsKeyPrefix = "ca_helper_chats_"
)

const queryCreateKVTable = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// chatRecord is the stored shape of a chat message.
type chatRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a SQLite-backed key-value store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every write is a read-modify-write of one JSON value.
	db.SetMaxOpenConns(1)

	for _, q := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", queryCreateKVTable} {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ChatsKey is the key of a request's message list.
func ChatsKey(requestID string) string {
	return ChatsKeyPrefix + requestID
}

func getJSON(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, key string, dst any) error {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// appendJSON appends item to the JSON list stored under key.
func (s *Store) appendJSON(ctx context.Context, key string, item any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var list []json.RawMessage
	if err := getJSON(ctx, tx, key, &list); err != nil {
		return err
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	list = append(list, data)

	value, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return tx.Commit()
}

// SaveRequest appends a request.
func (s *Store) SaveRequest(ctx context.Context, req model.Request) error {
	return s.appendJSON(ctx, RequestsKey, req)
}

// Requests returns every request, newest first.
func (s *Store) Requests(ctx context.Context) ([]model.Request, error) {
	var reqs []model.Request
	if err := getJSON(ctx, s.db, RequestsKey, &reqs); err != nil {
		return nil, err
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
	return reqs, nil
}

// Request returns one request or store.ErrNotFound.
func (s *Store) Request(ctx context.Context, id string) (*model.Request, error) {
	var reqs []model.Request
	if err := getJSON(ctx, s.db, RequestsKey, &reqs); err != nil {
		return nil, err
	}
	for i := range reqs {
		if reqs[i].ID == id {
			return &reqs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

// SaveChatMessage appends a message to a request's chat.
func (s *Store) SaveChatMessage(ctx context.Context, requestID string, msg model.Message) error {
	role := "user"
	if msg.Role == model.RoleAssistant {
		role = "AI"
	}
	return s.appendJSON(ctx, ChatsKey(requestID), chatRecord{
		ID:        msg.ID,
		Role:      role,
		Message:   msg.Content,
		Timestamp: msg.CreatedAt,
	})
}

// ChatMessages returns a request's chat in order.
func (s *Store) ChatMessages(ctx context.Context, requestID string) ([]model.Message, error) {
	var recs []chatRecord
	if err := getJSON(ctx, s.db, ChatsKey(requestID), &recs); err != nil {
		return nil, err
	}

	msgs := make([]model.Message, len(recs))
	for i, r := range recs {
		role := model.RoleUser
		if r.Role == "AI" {
			role = model.RoleAssistant
		}
		msgs[i] = model.Message{
			ID:        r.ID,
			Role:      role,
			Content:   r.Message,
			CreatedAt: r.Timestamp,
			Sequence:  uint64(i + 1),
		}
	}
	return msgs, nil
}

// ClearChatMessages deletes a request's chat.
func (s *Store) ClearChatMessages(ctx context.Context, requestID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, ChatsKey(requestID)); err != nil {
		return fmt.Errorf("failed to clear chat: %w", err)
	}
	return nil
}
