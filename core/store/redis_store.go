package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/infra/redisutil"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	keyPrefix       = "docintake:"
)

// clientDocument wraps a record with revision metadata.
type clientDocument struct {
	Revision int64                    `json:"revision"`
	Updated  time.Time                `json:"updated_at"`
	Record   *extraction.ClientRecord `json:"record"`
}

// RedisStore persists documents in Redis. The registry marker key separates
// "no clients yet" from "no registry at all".
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts redisutil.Options) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = defaultRedisURL
	}
	client, err := redisutil.NewClient(opts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Client exposes the underlying connection for collaborators sharing it.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) ReadGlobal(ctx context.Context) (*extraction.GlobalConfig, error) {
	data, err := s.client.Get(ctx, globalKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("global config: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read global config: %w", err)
	}
	return ParseGlobal(data)
}

func (s *RedisStore) WriteGlobal(ctx context.Context, cfg *extraction.GlobalConfig) error {
	if cfg == nil {
		return errors.New("global config required")
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode global config: %w", err)
	}
	return s.client.Set(ctx, globalKey(), payload, 0).Err()
}

func (s *RedisStore) ReadClient(ctx context.Context, id string) (*extraction.ClientRecord, error) {
	doc, err := s.readDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Record, nil
}

// ClientRevision returns how many times a client record has been written.
func (s *RedisStore) ClientRevision(ctx context.Context, id string) (int64, error) {
	doc, err := s.readDocument(ctx, id)
	if err != nil {
		return 0, err
	}
	return doc.Revision, nil
}

func (s *RedisStore) readDocument(ctx context.Context, id string) (*clientDocument, error) {
	data, err := s.client.Get(ctx, clientKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read client %s: %w", id, err)
	}
	var envelope struct {
		Revision int64           `json:"revision"`
		Updated  time.Time       `json:"updated_at"`
		Record   json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal client %s: %w", id, err)
	}
	rec, err := ParseClient(envelope.Record)
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", id, err)
	}
	rec.ClientID = id
	return &clientDocument{Revision: envelope.Revision, Updated: envelope.Updated, Record: rec}, nil
}

func (s *RedisStore) ListClientIDs(ctx context.Context) ([]string, error) {
	n, err := s.client.Exists(ctx, registryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("check client registry: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("client registry: %w", ErrNotFound)
	}
	ids, err := s.client.SMembers(ctx, clientIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) WriteClient(ctx context.Context, id string, rec *extraction.ClientRecord) error {
	if rec == nil {
		return errors.New("client record required")
	}
	var revision int64
	if prev, err := s.readDocument(ctx, id); err == nil {
		revision = prev.Revision
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	out := rec.Clone()
	out.ClientID = id
	payload, err := json.Marshal(&clientDocument{
		Revision: revision + 1,
		Updated:  time.Now().UTC(),
		Record:   out,
	})
	if err != nil {
		return fmt.Errorf("marshal client %s: %w", id, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, clientKey(id), payload, 0)
	pipe.SAdd(ctx, clientIndexKey(), id)
	pipe.Set(ctx, registryKey(), "1", 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) DeleteClient(ctx context.Context, id string) error {
	n, err := s.client.Exists(ctx, clientKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check client %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, clientKey(id))
	pipe.SRem(ctx, clientIndexKey(), id)
	_, err = pipe.Exec(ctx)
	return err
}

func globalKey() string { return keyPrefix + "global" }

func registryKey() string { return keyPrefix + "registry" }

func clientIndexKey() string { return keyPrefix + "clients" }

func clientKey(id string) string { return keyPrefix + "client:" + id }
