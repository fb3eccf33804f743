package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warp-quiz-server/internal/domain"
)

const resultsKey = "warp:results"

// ResultStore keeps finished results in a Redis hash keyed by participant
// name, so the leaderboard survives a server restart mid-session. Entries
// are stored as JSON; ranking happens in the service.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) Record(ctx context.Context, entry domain.LeaderboardEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, resultsKey, entry.Name, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, resultsKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

func (s *ResultStore) List(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	raw, err := s.client.HGetAll(ctx, resultsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(raw))
	for _, data := range raw {
		var entry domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *ResultStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, resultsKey).Err(); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	return nil
}
