package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memRecord struct {
	sess     *Session
	deadline time.Time
}

type memSet struct {
	members  map[string]struct{}
	deadline time.Time
}

// MemoryStore implements Store in process memory.
// Every key carries a deadline like a Redis TTL: an expired record disappears
// on its own while the index sets keep pointing at it until Reconcile runs.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	keys    KeyNamer
	records map[string]memRecord
	metas   map[string]time.Time
	sets    map[string]*memSet
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock sets the clock used to evaluate deadlines.
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	m := &MemoryStore{
		now:     time.Now,
		keys:    NewKeyNamer(DefaultKeyPrefix),
		records: make(map[string]memRecord),
		metas:   make(map[string]time.Time),
		sets:    make(map[string]*memSet),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, sess *Session, ttl time.Duration) error {
	if err := checkRecord(sess); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrSessionExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := m.now().Add(ttl)
	m.records[m.keys.Record(sess.TenantID, sess.ID)] = memRecord{sess: sess.clone(), deadline: deadline}
	m.metas[m.keys.Meta(sess.TenantID, sess.ID)] = deadline
	m.addToSet(m.keys.UserSet(sess.TenantID, sess.UserID), sess.ID, deadline)
	m.addToSet(m.keys.TenantSet(sess.TenantID), sess.ID, deadline)
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, tenantID, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.record(m.keys.Record(tenantID, sessionID))
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.sess.clone(), nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, sess *Session, ttl time.Duration) error {
	if err := checkRecord(sess); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrSessionExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.keys.Record(sess.TenantID, sess.ID)
	if _, ok := m.record(key); !ok {
		return ErrSessionNotFound
	}

	deadline := m.now().Add(ttl)
	m.records[key] = memRecord{sess: sess.clone(), deadline: deadline}
	m.metas[m.keys.Meta(sess.TenantID, sess.ID)] = deadline
	m.stretchSet(m.keys.UserSet(sess.TenantID, sess.UserID), deadline)
	m.stretchSet(m.keys.TenantSet(sess.TenantID), deadline)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, tenantID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.keys.Record(tenantID, sessionID)
	rec, ok := m.record(key)
	delete(m.records, key)
	delete(m.metas, m.keys.Meta(tenantID, sessionID))
	m.removeFromSet(m.keys.TenantSet(tenantID), sessionID)
	if ok {
		m.removeFromSet(m.keys.UserSet(tenantID, rec.sess.UserID), sessionID)
	}
	return ok, nil
}

// DeleteByUser implements Store.
func (m *MemoryStore) DeleteByUser(_ context.Context, tenantID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userKey := m.keys.UserSet(tenantID, userID)
	set, ok := m.set(userKey)
	if !ok {
		return 0, nil
	}

	removed := 0
	for id := range set.members {
		key := m.keys.Record(tenantID, id)
		if _, ok := m.record(key); ok {
			removed++
		}
		delete(m.records, key)
		delete(m.metas, m.keys.Meta(tenantID, id))
		m.removeFromSet(m.keys.TenantSet(tenantID), id)
	}
	delete(m.sets, userKey)
	return removed, nil
}

// ListByUser implements Store.
func (m *MemoryStore) ListByUser(_ context.Context, tenantID, userID string) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.set(m.keys.UserSet(tenantID, userID))
	if !ok {
		return nil, nil
	}

	sessions := make([]*Session, 0, len(set.members))
	for id := range set.members {
		if rec, ok := m.record(m.keys.Record(tenantID, id)); ok {
			sessions = append(sessions, rec.sess.clone())
		}
	}
	return sessions, nil
}

// ListByTenant implements Store.
func (m *MemoryStore) ListByTenant(_ context.Context, tenantID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.set(m.keys.TenantSet(tenantID))
	if !ok {
		return nil, nil
	}

	entries := make([]Entry, 0, len(set.members))
	for id := range set.members {
		entry := Entry{SessionID: id}
		if rec, ok := m.record(m.keys.Record(tenantID, id)); ok {
			entry.Session = rec.sess.clone()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Tenants implements Store.
func (m *MemoryStore) Tenants(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tenants []string
	for key := range m.sets {
		if _, ok := m.set(key); !ok {
			continue
		}
		if tenant, ok := m.keys.TenantFromSetKey(key); ok {
			tenants = append(tenants, tenant)
		}
	}
	return tenants, nil
}

// Reconcile implements Store.
func (m *MemoryStore) Reconcile(_ context.Context, tenantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	indexes := make([]string, 0)
	if _, ok := m.set(m.keys.TenantSet(tenantID)); ok {
		indexes = append(indexes, m.keys.TenantSet(tenantID))
	}
	userPrefix := m.keys.tenantKey(tenantID, kindUser) + ":"
	for key := range m.sets {
		if strings.HasPrefix(key, userPrefix) {
			if _, ok := m.set(key); ok {
				indexes = append(indexes, key)
			}
		}
	}

	dangling := make(map[string]struct{})
	for _, key := range indexes {
		for id := range m.sets[key].members {
			if _, ok := m.record(m.keys.Record(tenantID, id)); !ok {
				dangling[id] = struct{}{}
			}
		}
	}

	for id := range dangling {
		for _, key := range indexes {
			m.removeFromSet(key, id)
		}
		delete(m.metas, m.keys.Meta(tenantID, id))
	}
	return len(dangling), nil
}

// record returns a live record, dropping it once its deadline passed.
func (m *MemoryStore) record(key string) (memRecord, bool) {
	rec, ok := m.records[key]
	if !ok {
		return memRecord{}, false
	}
	if !m.now().Before(rec.deadline) {
		delete(m.records, key)
		return memRecord{}, false
	}
	return rec, true
}

func (m *MemoryStore) set(key string) (*memSet, bool) {
	s, ok := m.sets[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(s.deadline) || len(s.members) == 0 {
		delete(m.sets, key)
		return nil, false
	}
	return s, true
}

func (m *MemoryStore) addToSet(key, id string, deadline time.Time) {
	s, ok := m.set(key)
	if !ok {
		s = &memSet{members: make(map[string]struct{})}
		m.sets[key] = s
	}
	s.members[id] = struct{}{}
	if deadline.After(s.deadline) {
		s.deadline = deadline
	}
}

func (m *MemoryStore) stretchSet(key string, deadline time.Time) {
	if s, ok := m.set(key); ok && deadline.After(s.deadline) {
		s.deadline = deadline
	}
}

func (m *MemoryStore) removeFromSet(key, id string) {
	s, ok := m.sets[key]
	if !ok {
		return
	}
	delete(s.members, id)
	if len(s.members) == 0 {
		delete(m.sets, key)
	}
}
