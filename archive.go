/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

const resultsKeyPrefix = "passwordgame:results:"

// GameResult is the frozen outcome of one game.
type GameResult struct {
	RoomCode   string        `json:"roomCode"`
	Reason     string        `json:"reason"`
	StartedAt  int64         `json:"startedAt"`
	EndedAt    int64         `json:"endedAt"`
	TimeLimit  int64         `json:"timeLimit"`
	FinalStats []PlayerStats `json:"finalStats"`
}

// ResultArchive stores final standings after a room's game ends, so they
// can still be fetched once the room itself is gone.
type ResultArchive interface {
	Save(ctx context.Context, result GameResult) error
	Load(ctx context.Context, code string) (GameResult, error)
	Close() error
}

type memoryEntry struct {
	result  GameResult
	expires time.Time
}

type memoryArchive struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	results map[string]memoryEntry
}

func newMemoryArchive(ttl time.Duration) *memoryArchive {
	return &memoryArchive{
		ttl:     ttl,
		now:     time.Now,
		results: make(map[string]memoryEntry),
	}
}

func (m *memoryArchive) Save(_ context.Context, result GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for code, e := range m.results {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.results, code)
		}
	}

	var expires time.Time
	if m.ttl > 0 {
		expires = now.Add(m.ttl)
	}
	m.results[result.RoomCode] = memoryEntry{result: result, expires: expires}

	return nil
}

func (m *memoryArchive) Load(_ context.Context, code string) (GameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.results[code]
	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		return GameResult{}, ErrResultsNotFound
	}
	return e.result, nil
}

func (m *memoryArchive) Close() error {
	return nil
}

type redisArchive struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisArchive(ctx context.Context, cfg *Config) (*redisArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.redisAddr,
		Password: cfg.redisPassword,
		DB:       cfg.redisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.redisAddr, err)
	}

	return &redisArchive{client: client, ttl: cfg.resultsTTL}, nil
}

func (a *redisArchive) Save(ctx context.Context, result GameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode results for %s: %w", result.RoomCode, err)
	}

	return a.client.Set(ctx, resultsKeyPrefix+result.RoomCode, data, a.ttl).Err()
}

func (a *redisArchive) Load(ctx context.Context, code string) (GameResult, error) {
	data, err := a.client.Get(ctx, resultsKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return GameResult{}, ErrResultsNotFound
	}
	if err != nil {
		return GameResult{}, fmt.Errorf("load results for %s: %w", code, err)
	}

	var result GameResult
	if err := json.Unmarshal(data, &result); err != nil {
		return GameResult{}, fmt.Errorf("decode results for %s: %w", code, err)
	}
	return result, nil
}

func (a *redisArchive) Close() error {
	return a.client.Close()
}

func newArchive(ctx context.Context, cfg *Config) (ResultArchive, error) {
	if cfg.redisAddr == "" {
		logf(cfg, "ARCHIVE: Keeping results in memory for %s", cfg.resultsTTL)
		return newMemoryArchive(cfg.resultsTTL), nil
	}

	a, err := newRedisArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logf(cfg, "ARCHIVE: Keeping results in redis at %s for %s", cfg.redisAddr, cfg.resultsTTL)

	return a, nil
}

// archiveResults returns the hook rooms call when a game ends.
func archiveResults(cfg *Config, archive ResultArchive) func(GameResult) {
	return func(result GameResult) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := archive.Save(ctx, result); err != nil {
			errorf("ARCHIVE: %v", err)
			return
		}

		logf(cfg, "ARCHIVE: Saved results for %s", result.RoomCode)
	}
}

func serveResults(cfg *Config, archive ResultArchive) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		code := normalizeCode(p.ByName("code"))

		result, err := archive.Load(r.Context(), code)
		switch {
		case errors.Is(err, ErrResultsNotFound):
			http.Error(w, "results not found", http.StatusNotFound)
			return
		case err != nil:
			errorf("ARCHIVE: %v", err)
			http.Error(w, "results unavailable", http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(result)
		if err != nil {
			http.Error(w, "encoding failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(cfg, w)

		written, err := w.Write(body)
		if err != nil {
			errorf("SERVE: %v", err)
			return
		}

		logf(cfg, "SERVE: Results for %s (%s) to %s in %s",
			code,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
