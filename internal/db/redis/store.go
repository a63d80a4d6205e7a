// Package redis implements db.Store via rueidis.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/steelcrest/assetgate/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// tombstone marks a list slot for LREM during positional removal.
// Staged entries are JSON objects, so the value cannot collide.
const tombstone = "\x00deleted"

// Config holds connection parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store via rueidis.
type Store struct {
	client rueidis.Client
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// ListReplace atomically replaces the list at key (MULTI/EXEC: DEL,
// RPUSH, EXPIRE). An empty elems just deletes the key.
func (s *Store) ListReplace(ctx context.Context, key string, elems []string, ttl time.Duration) error {
	if len(elems) == 0 {
		return s.Del(ctx, key)
	}

	cmds := make(rueidis.Commands, 0, 5)
	cmds = append(cmds,
		s.client.B().Multi().Build(),
		s.client.B().Del().Key(key).Build(),
		s.client.B().Rpush().Key(key).Element(elems...).Build(),
	)
	if ttl > 0 {
		cmds = append(cmds, s.client.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build())
	}
	cmds = append(cmds, s.client.B().Exec().Build())

	for _, resp := range s.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return &db.Error{Op: db.OpListReplace, Err: err}
		}
	}
	return nil
}

// ListRange returns all elements of the list at key, oldest first.
func (s *Store) ListRange(ctx context.Context, key string) ([]string, error) {
	cmd := s.client.B().Lrange().Key(key).Start(0).Stop(-1).Build()
	elems, err := s.client.Do(ctx, cmd).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, &db.Error{Op: db.OpListRange, Err: err}
	}
	return elems, nil
}

// ListRemoveAt removes the element at a positional index by marking it
// with a tombstone (LSET) and removing the first tombstone (LREM).
// Out-of-range indexes are a no-op.
func (s *Store) ListRemoveAt(ctx context.Context, key string, index int) error {
	if index < 0 {
		return nil
	}

	setCmd := s.client.B().Lset().Key(key).Index(int64(index)).Element(tombstone).Build()
	if err := s.client.Do(ctx, setCmd).Error(); err != nil {
		if isRedisErr(err, "index out of range") || isRedisErr(err, "no such key") {
			return nil
		}
		return &db.Error{Op: db.OpListRemoveAt, Err: err}
	}

	remCmd := s.client.B().Lrem().Key(key).Count(1).Element(tombstone).Build()
	if err := s.client.Do(ctx, remCmd).Error(); err != nil {
		return &db.Error{Op: db.OpListRemoveAt, Err: err}
	}
	return nil
}

// Del removes the given keys.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd := s.client.B().Del().Key(keys...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// isRedisErr checks if err is a Redis server error containing substr.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
