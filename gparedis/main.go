// Package gparedis keeps named snapshots of the tables a source set maps to,
// so later runs can report schema drift between model revisions.
package gparedis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gpameta"
)

// =====================================
// Connection
// =====================================

// Open connects to the Redis server described by config and pings it.
// ConnectionURL takes precedence over Host, Port and Database.
func Open(ctx context.Context, config gpameta.Config) (*redis.Client, error) {
	opts, err := buildOptions(config)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to connect to Redis", err)
	}
	return client, nil
}

func buildOptions(config gpameta.Config) (*redis.Options, error) {
	var opts *redis.Options
	if config.ConnectionURL != "" {
		parsed, err := redis.ParseURL(config.ConnectionURL)
		if err != nil {
			return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConfig, "invalid Redis URL", err)
		}
		opts = parsed
	} else {
		host, port := config.Host, config.Port
		if host == "" {
			host = "localhost"
		}
		if port == 0 {
			port = 6379
		}
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", host, port),
			Username: config.Username,
			Password: config.Password,
		}
		if config.Database != "" {
			db, err := strconv.Atoi(config.Database)
			if err != nil {
				return nil, gpameta.NewErrorf(gpameta.ErrorTypeConfig, "redis database must be a number, got %q", config.Database)
			}
			opts.DB = db
		}
	}

	if config.MaxOpenConns > 0 {
		opts.PoolSize = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		opts.MinIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		opts.MaxConnAge = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		opts.IdleTimeout = config.ConnMaxIdleTime
	}

	if d, ok := durationOption(config, "dial_timeout"); ok {
		opts.DialTimeout = d
	}
	if d, ok := durationOption(config, "read_timeout"); ok {
		opts.ReadTimeout = d
	}
	if d, ok := durationOption(config, "write_timeout"); ok {
		opts.WriteTimeout = d
	}
	return opts, nil
}

func durationOption(config gpameta.Config, key string) (time.Duration, bool) {
	v, ok := config.Option("redis", key)
	if !ok {
		return 0, false
	}
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := time.ParseDuration(d)
		return parsed, err == nil
	}
	return 0, false
}

// =====================================
// Snapshot Store
// =====================================

// Snapshot is the set of expected tables recorded under a name
type Snapshot struct {
	Name    string                     `json:"name"`
	TakenAt time.Time                  `json:"taken_at"`
	Tables  []gpameta.TableExpectation `json:"tables"`
}

// Store saves snapshots as JSON values under "<prefix>:snapshot:<name>" and
// tracks their names in the "<prefix>:snapshots" set.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a store. An empty prefix means "gpameta".
func NewStore(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "gpameta"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) snapshotKey(name string) string {
	return s.prefix + ":snapshot:" + name
}

func (s *Store) indexKey() string {
	return s.prefix + ":snapshots"
}

// Save records the expected tables of set under name, replacing any
// earlier snapshot with that name
func (s *Store) Save(ctx context.Context, name string, set *gpameta.SourceSet) (*Snapshot, error) {
	if name == "" {
		return nil, gpameta.NewError(gpameta.ErrorTypeInvalidArgument, "snapshot name is required")
	}
	tables, err := set.ExpectedTables()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Name: name, TakenAt: time.Now().UTC(), Tables: tables}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "failed to encode snapshot", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.snapshotKey(name), data, 0)
		pipe.SAdd(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return nil, convertRedisError(err)
	}
	return snap, nil
}

// Load returns the snapshot recorded under name
func (s *Store) Load(ctx context.Context, name string) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.snapshotKey(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, gpameta.NewErrorf(gpameta.ErrorTypeNotFound, "snapshot %s not found", name)
		}
		return nil, convertRedisError(err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "failed to decode snapshot "+name, err)
	}
	return &snap, nil
}

// List returns the recorded snapshot names, sorted
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, convertRedisError(err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the snapshot recorded under name
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.snapshotKey(name))
		pipe.SRem(ctx, s.indexKey(), name)
		return nil
	})
	return convertRedisError(err)
}

// Diff compares the snapshot recorded under name against the current
// expected tables of set
func (s *Store) Diff(ctx context.Context, name string, set *gpameta.SourceSet) (gpameta.SchemaDiff, error) {
	snap, err := s.Load(ctx, name)
	if err != nil {
		return gpameta.SchemaDiff{}, err
	}
	current, err := set.ExpectedTables()
	if err != nil {
		return gpameta.SchemaDiff{}, err
	}
	return gpameta.DiffTables(snap.Tables, current), nil
}

// =====================================
// Error Conversion
// =====================================

// convertRedisError converts Redis errors to gpameta errors
func convertRedisError(err error) error {
	if err == nil {
		return nil
	}
	if err == redis.Nil {
		return gpameta.NewError(gpameta.ErrorTypeNotFound, "key not found")
	}
	return gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "Redis operation failed", err)
}
