package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps counters in Redis hashes. The total hash is cumulative;
// per-minute bucket hashes expire after the configured TTL. Per-client
// counters, when enabled, share one cumulative hash keyed "<addr>:<outcome>".
type RedisStore struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	now          func() time.Time
	trackClients bool
}

var (
	_ Store          = (*RedisStore)(nil)
	_ ClientReporter = (*RedisStore)(nil)
	_ MinuteReporter = (*RedisStore)(nil)
)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix. Surrounding colons are trimmed.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

// WithTTL sets the expiry of per-minute buckets. Zero disables expiry.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

// WithRedisClientTracking enables per-client counters.
func WithRedisClientTracking(track bool) RedisOption {
	return func(s *RedisStore) { s.trackClients = track }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratetracker:stats",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisStoreFromAddr dials addr and verifies the connection with PING.
func NewRedisStoreFromAddr(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(rdb, opts...), nil
}

func (s *RedisStore) totalKey() string { return s.prefix + ":total" }

func (s *RedisStore) clientsKey() string { return s.prefix + ":clients" }

func (s *RedisStore) bucketKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

// Record implements Recorder.
func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	field := string(ev.Outcome)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	if s.trackClients && ev.Client != "" {
		pipe.HIncrBy(ctx, s.clientsKey(), ev.Client+":"+field, 1)
	}

	bucket := s.bucketKey(at)
	pipe.HIncrBy(ctx, bucket, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucket, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Totals implements Reporter.
func (s *RedisStore) Totals(ctx context.Context) (Totals, error) {
	return s.readHash(ctx, s.totalKey())
}

// ByClient implements ClientReporter.
func (s *RedisStore) ByClient(ctx context.Context) (map[string]Totals, error) {
	fields, err := s.rdb.HGetAll(ctx, s.clientsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.clientsKey(), err)
	}
	out := make(map[string]Totals)
	for field, raw := range fields {
		i := strings.LastIndexByte(field, ':')
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s in %s: %w", field, s.clientsKey(), err)
		}
		t := out[field[:i]]
		t.add(Outcome(field[i+1:]), n)
		out[field[:i]] = t
	}
	return out, nil
}

// Minute implements MinuteReporter.
func (s *RedisStore) Minute(ctx context.Context, at time.Time) (Totals, error) {
	return s.readHash(ctx, s.bucketKey(at))
}

func (s *RedisStore) readHash(ctx context.Context, key string) (Totals, error) {
	var t Totals
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return t, fmt.Errorf("failed to read %s: %w", key, err)
	}
	for field, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return t, fmt.Errorf("invalid counter %s in %s: %w", field, key, err)
		}
		t.add(Outcome(field), n)
	}
	return t, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
