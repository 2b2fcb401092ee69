package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"halisaha-bot/types"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"
	draftTTL      = 24 * time.Hour
	seenTTL       = 7 * 24 * time.Hour
)

// Storage is the per-chat persisted state, the bot's equivalent of browser
// local storage.
type Storage struct {
	client *redis.Client
}

func New(client *redis.Client) *Storage {
	return &Storage{client: client}
}

// Open parses a redis:// URL and verifies the connection.
func Open(ctx context.Context, rawURL string) (*Storage, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Storage{client: rdb}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ===== Sessions =====

// SaveSession writes token and profile as one value so a session is never
// half persisted.
func (s *Storage) SaveSession(ctx context.Context, chatID int64, sess types.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(chatID), data, 0).Err()
}

// GetSession returns the raw stored session, nil if there is none.
func (s *Storage) GetSession(ctx context.Context, chatID int64) ([]byte, error) {
	val, err := s.client.Get(ctx, sessionKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// DeleteSession reports whether a session existed.
func (s *Storage) DeleteSession(ctx context.Context, chatID int64) (bool, error) {
	n, err := s.client.Del(ctx, sessionKey(chatID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SessionChats lists every chat that currently holds a session.
func (s *Storage) SessionChats(ctx context.Context) ([]int64, error) {
	var chats []int64
	iter := s.client.Scan(ctx, 0, sessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), sessionPrefix), 10, 64)
		if err != nil {
			continue
		}
		chats = append(chats, id)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("%s%d", sessionPrefix, chatID)
}

// ===== Rating drafts =====

// SaveRatingDraft stores the ratings being edited, keyed by rated user id.
func (s *Storage) SaveRatingDraft(ctx context.Context, chatID int64, draft map[string]types.PlayerRating) error {
	key := fmt.Sprintf("rating_draft:%d", chatID)
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, draftTTL).Err()
}

func (s *Storage) GetRatingDraft(ctx context.Context, chatID int64) (map[string]types.PlayerRating, error) {
	key := fmt.Sprintf("rating_draft:%d", chatID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]types.PlayerRating{}, nil
	}
	if err != nil {
		return nil, err
	}
	draft := map[string]types.PlayerRating{}
	if err := json.Unmarshal(val, &draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *Storage) DeleteRatingDraft(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, fmt.Sprintf("rating_draft:%d", chatID)).Err()
}

// ===== Announced invitations and proposals =====

// SaveSeen replaces the set of ids already announced to the chat.
func (s *Storage) SaveSeen(ctx context.Context, chatID int64, ids []string) error {
	key := fmt.Sprintf("seen:%d", chatID)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, seenTTL).Err()
}

// GetSeen returns nil when nothing was recorded yet.
func (s *Storage) GetSeen(ctx context.Context, chatID int64) (map[string]bool, error) {
	key := fmt.Sprintf("seen:%d", chatID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(val, &ids); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}
