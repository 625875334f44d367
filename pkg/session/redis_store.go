package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultScanBatchSize = 1000
	defaultMGetBatchSize = 500
	defaultWatchRetries  = 3
)

// Index sets only ever gain lifetime: PTTL and PEXPIRE run in the same script
// so a concurrent writer cannot shrink a set below one of its members.
const redisStretchSets = `
local function stretch(key, ms)
  local current = redis.call("PTTL", key)
  if current < tonumber(ms) then
    redis.call("PEXPIRE", key, ms)
  end
end
`

// KEYS: record, meta, user set, tenant set. ARGV: record, meta, session id, ttl ms.
var redisCreateScript = redis.NewScript(redisStretchSets + `
local ms = ARGV[4]
redis.call("SET", KEYS[1], ARGV[1], "PX", ms)
redis.call("SET", KEYS[2], ARGV[2], "PX", ms)
redis.call("SADD", KEYS[3], ARGV[3])
redis.call("SADD", KEYS[4], ARGV[3])
stretch(KEYS[3], ms)
stretch(KEYS[4], ms)
return 1
`)

// KEYS: record, meta, user set, tenant set. ARGV: record, meta, ttl ms.
// Returns 0 without writing anything when the record is gone.
var redisUpdateScript = redis.NewScript(redisStretchSets + `
local ms = ARGV[3]
if not redis.call("SET", KEYS[1], ARGV[1], "PX", ms, "XX") then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ms, "XX")
stretch(KEYS[3], ms)
stretch(KEYS[4], ms)
return 1
`)

// RedisStore implements Store on top of Redis.
// Create and Update run as Lua scripts, the other multi-key mutations inside MULTI/EXEC.
// Every key of a tenant shares one hash slot, so both stay legal on a cluster.
type RedisStore struct {
	client        redis.UniversalClient
	keys          KeyNamer
	scanBatchSize int64
	watchRetries  int
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the prefix of every key written by the store.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.keys = NewKeyNamer(prefix)
	}
}

// WithScanBatchSize sets the COUNT hint used when scanning index keys.
func WithScanBatchSize(n int64) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

// WithWatchRetries sets how often an optimistic transaction is retried when
// a watched key changes underneath it.
func WithWatchRetries(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.watchRetries = n
		}
	}
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:        client,
		keys:          NewKeyNamer(DefaultKeyPrefix),
		scanBatchSize: defaultScanBatchSize,
		watchRetries:  defaultWatchRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the namer used by the store.
func (s *RedisStore) Keys() KeyNamer {
	return s.keys
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, sess *Session, ttl time.Duration) error {
	if err := checkRecord(sess); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrSessionExpired
	}

	record, meta, err := encodeSession(sess)
	if err != nil {
		return err
	}

	err = redisCreateScript.Run(ctx, s.client, s.scriptKeys(sess), record, meta, sess.ID, millis(ttl)).Err()
	return unavailable(err)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	data, err := s.client.Get(ctx, s.keys.Record(tenantID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return decodeSession(data)
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, sess *Session, ttl time.Duration) error {
	if err := checkRecord(sess); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrSessionExpired
	}

	record, meta, err := encodeSession(sess)
	if err != nil {
		return err
	}

	written, err := redisUpdateScript.Run(ctx, s.client, s.scriptKeys(sess), record, meta, millis(ttl)).Int()
	if err != nil {
		return unavailable(err)
	}
	if written == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, tenantID, sessionID string) (bool, error) {
	userID, err := s.ownerOf(ctx, tenantID, sessionID)
	if err != nil {
		return false, err
	}

	var deleted *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.keys.Record(tenantID, sessionID))
		pipe.Del(ctx, s.keys.Meta(tenantID, sessionID))
		pipe.SRem(ctx, s.keys.TenantSet(tenantID), sessionID)
		if userID != "" {
			pipe.SRem(ctx, s.keys.UserSet(tenantID, userID), sessionID)
		}
		return nil
	})
	if err != nil {
		return false, unavailable(err)
	}
	return deleted.Val() > 0, nil
}

// DeleteByUser implements Store. The user set is watched so a session created
// concurrently is either removed too or survives with its index intact.
func (s *RedisStore) DeleteByUser(ctx context.Context, tenantID, userID string) (int, error) {
	userKey := s.keys.UserSet(tenantID, userID)
	tenantKey := s.keys.TenantSet(tenantID)

	var removed int
	txf := func(tx *redis.Tx) error {
		ids, err := tx.SMembers(ctx, userKey).Result()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			removed = 0
			return nil
		}

		recordKeys := make([]string, 0, len(ids))
		metaKeys := make([]string, 0, len(ids))
		for _, id := range ids {
			recordKeys = append(recordKeys, s.keys.Record(tenantID, id))
			metaKeys = append(metaKeys, s.keys.Meta(tenantID, id))
		}

		var deleted *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			deleted = pipe.Del(ctx, recordKeys...)
			pipe.Del(ctx, metaKeys...)
			pipe.SRem(ctx, tenantKey, toAny(ids)...)
			pipe.Del(ctx, userKey)
			return nil
		})
		if err != nil {
			return err
		}
		removed = int(deleted.Val())
		return nil
	}

	for range s.watchRetries {
		err := s.client.Watch(ctx, txf, userKey)
		if err == nil {
			return removed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return 0, unavailable(err)
	}

	return 0, unavailable(redis.TxFailedErr)
}

// ListByUser implements Store.
func (s *RedisStore) ListByUser(ctx context.Context, tenantID, userID string) ([]*Session, error) {
	ids, err := s.client.SMembers(ctx, s.keys.UserSet(tenantID, userID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	entries, err := s.fetch(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(entries))
	for _, e := range entries {
		if e.Session != nil {
			sessions = append(sessions, e.Session)
		}
	}
	return sessions, nil
}

// ListByTenant implements Store.
func (s *RedisStore) ListByTenant(ctx context.Context, tenantID string) ([]Entry, error) {
	ids, err := s.client.SMembers(ctx, s.keys.TenantSet(tenantID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return s.fetch(ctx, tenantID, ids)
}

// Tenants implements Store.
func (s *RedisStore) Tenants(ctx context.Context) ([]string, error) {
	keys, err := s.scanKeys(ctx, s.keys.TenantSetPattern())
	if err != nil {
		return nil, unavailable(err)
	}

	tenants := make([]string, 0, len(keys))
	for _, key := range keys {
		if tenant, ok := s.keys.TenantFromSetKey(key); ok {
			tenants = append(tenants, tenant)
		}
	}
	return tenants, nil
}

// Reconcile implements Store.
func (s *RedisStore) Reconcile(ctx context.Context, tenantID string) (int, error) {
	tenantKey := s.keys.TenantSet(tenantID)

	members, err := s.client.SMembers(ctx, tenantKey).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	userKeys, err := s.scanKeys(ctx, s.keys.UserSetPattern(tenantID))
	if err != nil {
		return 0, unavailable(err)
	}

	userMembers := make(map[string][]string, len(userKeys))
	if len(userKeys) > 0 {
		cmds := make(map[string]*redis.StringSliceCmd, len(userKeys))
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range userKeys {
				cmds[key] = pipe.SMembers(ctx, key)
			}
			return nil
		})
		if err != nil {
			return 0, unavailable(err)
		}
		for key, cmd := range cmds {
			userMembers[key] = cmd.Val()
		}
	}

	candidates := make(map[string]struct{}, len(members))
	for _, id := range members {
		candidates[id] = struct{}{}
	}
	for _, ids := range userMembers {
		for _, id := range ids {
			candidates[id] = struct{}{}
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	exists := make(map[string]*redis.IntCmd, len(candidates))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id := range candidates {
			exists[id] = pipe.Exists(ctx, s.keys.Record(tenantID, id))
		}
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	dangling := make(map[string]struct{})
	for id, cmd := range exists {
		if cmd.Val() == 0 {
			dangling[id] = struct{}{}
		}
	}
	if len(dangling) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(dangling))
	metaKeys := make([]string, 0, len(dangling))
	for id := range dangling {
		ids = append(ids, id)
		metaKeys = append(metaKeys, s.keys.Meta(tenantID, id))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, tenantKey, toAny(ids)...)
		for key, members := range userMembers {
			var stale []any
			for _, id := range members {
				if _, ok := dangling[id]; ok {
					stale = append(stale, id)
				}
			}
			if len(stale) > 0 {
				pipe.SRem(ctx, key, stale...)
			}
		}
		pipe.Del(ctx, metaKeys...)
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}

	return len(ids), nil
}

// fetch loads records for ids in MGET batches, preserving order.
func (s *RedisStore) fetch(ctx context.Context, tenantID string, ids []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(ids))
	for start := 0; start < len(ids); start += defaultMGetBatchSize {
		batch := ids[start:min(start+defaultMGetBatchSize, len(ids))]

		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = s.keys.Record(tenantID, id)
		}

		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, unavailable(err)
		}

		for i, v := range values {
			entry := Entry{SessionID: batch[i]}
			if raw, ok := v.(string); ok {
				sess, err := decodeSession([]byte(raw))
				if err != nil {
					return nil, err
				}
				entry.Session = sess
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// ownerOf resolves the user of a session from its meta shadow, falling back
// to the full record. Returns "" when both are gone.
func (s *RedisStore) ownerOf(ctx context.Context, tenantID, sessionID string) (string, error) {
	values, err := s.client.MGet(ctx, s.keys.Meta(tenantID, sessionID), s.keys.Record(tenantID, sessionID)).Result()
	if err != nil {
		return "", unavailable(err)
	}

	if raw, ok := values[0].(string); ok {
		var m Meta
		if err := json.Unmarshal([]byte(raw), &m); err == nil && m.UserID != "" {
			return m.UserID, nil
		}
	}
	if raw, ok := values[1].(string); ok {
		sess, err := decodeSession([]byte(raw))
		if err != nil {
			return "", err
		}
		return sess.UserID, nil
	}
	return "", nil
}

// scriptKeys orders the keys as the write scripts expect them.
func (s *RedisStore) scriptKeys(sess *Session) []string {
	return []string{
		s.keys.Record(sess.TenantID, sess.ID),
		s.keys.Meta(sess.TenantID, sess.ID),
		s.keys.UserSet(sess.TenantID, sess.UserID),
		s.keys.TenantSet(sess.TenantID),
	}
}

// scanKeys collects keys matching pattern. Cluster clients are scanned on every master.
func (s *RedisStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		var (
			mu   sync.Mutex
			keys []string
		)
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			found, err := scan(ctx, node, pattern, s.scanBatchSize)
			if err != nil {
				return err
			}
			mu.Lock()
			keys = append(keys, found...)
			mu.Unlock()
			return nil
		})
		return dedupe(keys), err
	}

	keys, err := scan(ctx, s.client, pattern, s.scanBatchSize)
	return dedupe(keys), err
}

func scan(ctx context.Context, c redis.Cmdable, pattern string, count int64) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := c.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// dedupe drops repeated keys; SCAN may return a key more than once.
func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func checkRecord(sess *Session) error {
	if sess == nil || sess.ID == "" || sess.TenantID == "" || sess.UserID == "" {
		return ErrInvalidRequest
	}
	return nil
}

func encodeSession(sess *Session) (record, meta []byte, err error) {
	record, err = json.Marshal(sess)
	if err != nil {
		return nil, nil, fmt.Errorf("session: encode record: %w", err)
	}
	meta, err = json.Marshal(sess.Meta())
	if err != nil {
		return nil, nil, fmt.Errorf("session: encode meta: %w", err)
	}
	return record, meta, nil
}

func decodeSession(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode record: %w", err)
	}
	return &sess, nil
}

// millis rounds ttl up to whole milliseconds; PX rejects 0.
func millis(ttl time.Duration) int64 {
	return int64((ttl + time.Millisecond - 1) / time.Millisecond)
}

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
