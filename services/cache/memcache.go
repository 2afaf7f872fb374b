package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// maxKeyLength is memcached's hard key limit
const maxKeyLength = 250

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	prefix string
}

// NewMemcacheService creates a new memcache service. Every key is namespaced
// with prefix.
func NewMemcacheService(serverAddr, prefix string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
		prefix: prefix,
	}
}

// Key maps an arbitrary key (an image URL, say) to a legal memcache key.
// Keys that are too long or contain whitespace are replaced by their SHA-1.
func (m *MemcacheService) Key(key string) string {
	k := m.prefix + key
	if len(k) > maxKeyLength || strings.ContainsAny(k, " \t\r\n\x00\x7f") {
		sum := sha1.Sum([]byte(key))
		return m.prefix + hex.EncodeToString(sum[:])
	}
	return k
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.Key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        m.Key(key),
		Value:      value,
		Expiration: memcacheExpiration(expiration, time.Now()),
	})
}

// maxRelativeExpiration is the longest TTL memcache accepts as relative.
// Larger values are read as absolute unix times.
const maxRelativeExpiration = 30 * 24 * time.Hour

func memcacheExpiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl < time.Second {
		return 1
	}
	if ttl > maxRelativeExpiration {
		return int32(now.Add(ttl).Unix())
	}
	return int32(ttl.Seconds())
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.Key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Ping checks that the memcache server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}
