package session

import "strings"

// DefaultKeyPrefix is used when no prefix is configured.
const DefaultKeyPrefix = "sess"

const (
	kindRecord = "rec"
	kindMeta   = "meta"
	kindUser   = "user"
	kindTenant = "all"
)

var (
	segmentEscaper   = strings.NewReplacer("%", "%25", ":", "%3A", "{", "%7B", "}", "%7D")
	segmentUnescaper = strings.NewReplacer("%3A", ":", "%7B", "{", "%7D", "}", "%25", "%")
	globEscaper      = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
)

// KeyNamer derives tenant-scoped storage keys.
//
// Layout: <prefix>:{<tenant>}:<kind>[:<id>]. The tenant is the outermost
// variable segment and doubles as a cluster hash tag, so all keys of one
// tenant share a slot. Segments are escaped, which keeps keys of different
// tenants or kinds from ever colliding.
type KeyNamer struct {
	prefix string
}

// NewKeyNamer returns a namer using prefix, or DefaultKeyPrefix if empty.
func NewKeyNamer(prefix string) KeyNamer {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyNamer{prefix: escapeSegment(prefix)}
}

// Record is the key of the full session payload.
func (k KeyNamer) Record(tenantID, sessionID string) string {
	return k.tenantKey(tenantID, kindRecord) + ":" + escapeSegment(sessionID)
}

// Meta is the key of the metadata shadow.
func (k KeyNamer) Meta(tenantID, sessionID string) string {
	return k.tenantKey(tenantID, kindMeta) + ":" + escapeSegment(sessionID)
}

// UserSet is the key of the set of a user's session ids.
func (k KeyNamer) UserSet(tenantID, userID string) string {
	return k.tenantKey(tenantID, kindUser) + ":" + escapeSegment(userID)
}

// TenantSet is the key of the set of all session ids of a tenant.
func (k KeyNamer) TenantSet(tenantID string) string {
	return k.tenantKey(tenantID, kindTenant)
}

// UserSetPattern matches every user set of the tenant (SCAN MATCH syntax).
func (k KeyNamer) UserSetPattern(tenantID string) string {
	return globEscaper.Replace(k.tenantKey(tenantID, kindUser)+":") + "*"
}

// TenantSetPattern matches the tenant set of every tenant (SCAN MATCH syntax).
func (k KeyNamer) TenantSetPattern() string {
	return globEscaper.Replace(k.prefix+":{") + "*" + globEscaper.Replace("}:"+kindTenant)
}

// TenantFromSetKey extracts the tenant id from a key produced by TenantSet.
func (k KeyNamer) TenantFromSetKey(key string) (string, bool) {
	head := k.prefix + ":{"
	tail := "}:" + kindTenant
	if !strings.HasPrefix(key, head) || !strings.HasSuffix(key, tail) || len(key) < len(head)+len(tail) {
		return "", false
	}
	tenant := key[len(head) : len(key)-len(tail)]
	if tenant == "" || strings.ContainsAny(tenant, ":{}") {
		return "", false
	}
	return segmentUnescaper.Replace(tenant), true
}

func (k KeyNamer) tenantKey(tenantID, kind string) string {
	return k.prefix + ":{" + escapeSegment(tenantID) + "}:" + kind
}

func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}
