// Package authcache is a local authorization cache. It remembers the last
// outcome for every tag in redis and answers from it while the central system
// cannot be reached.
package authcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/somakeit/chargeauth/authtag"
	"github.com/somakeit/chargeauth/metrics"
)

const (
	defaultPrefix = "chargeauth:idtag:"
	defaultTTL    = 24 * time.Hour
)

var _ authtag.Authorizer = &Cache{}

// Logger can be used to interface any logger to this package, by default
// it discards all logs.
var Logger ContextLogger = logDiscarder{}

// ContextLogger is the logger needed by authcache
type ContextLogger interface {
	Warn(ctx context.Context, args ...interface{})
	Error(ctx context.Context, args ...interface{})
}

type logDiscarder struct{}

func (logDiscarder) Warn(context.Context, ...interface{})  {}
func (logDiscarder) Error(context.Context, ...interface{}) {}

// Store is the part of a redis client used by Cache, *redis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache is an authtag.Authorizer that wraps another.
type Cache struct {
	next  authtag.Authorizer
	store Store

	// Prefix is prepended to the id tag to make the redis key.
	Prefix string
	// DefaultTTL is how long an outcome without an expiry date is kept, the
	// default is 24 hours.
	DefaultTTL time.Duration
	// Now is the clock used to check expiry dates, the default is time.Now.
	Now func() time.Time
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// New returns a Cache in front of next.
func New(next authtag.Authorizer, store Store) *Cache {
	return &Cache{
		next:       next,
		store:      store,
		Prefix:     defaultPrefix,
		DefaultTTL: defaultTTL,
		Now:        time.Now,
	}
}

// Authorize asks the wrapped Authorizer and remembers the outcome. If the
// wrapped Authorizer is unavailable a cached Accepted outcome that has not
// expired is returned instead of the error. Every other outcome, including
// denials, is only ever returned fresh.
func (c *Cache) Authorize(ctx context.Context, req authtag.Request) (authtag.Outcome, error) {
	out, err := c.next.Authorize(ctx, req)
	if err == nil {
		c.remember(ctx, req.IDTag, out)
		return out, nil
	}
	if !errors.Is(err, authtag.ErrUnavailable) {
		return out, err
	}

	cached, ok := c.recall(ctx, req.IDTag)
	if !ok {
		return authtag.Outcome{}, err
	}
	Logger.Warn(ctx, "Using cached outcome for ", req.IDTag, ": ", err)
	c.Metrics.IncrementCacheFallback()
	return cached, nil
}

// remember stores every status except ConcurrentTx so that a tag which
// stopped being accepted cannot be served from an older entry. An outcome
// that has already expired removes the entry. ConcurrentTx describes the
// transactions running at that moment, not the tag, so the previous entry is
// left alone.
func (c *Cache) remember(ctx context.Context, idTag string, out authtag.Outcome) {
	if out.Status == authtag.ConcurrentTx {
		return
	}

	key := c.Prefix + idTag
	ttl := c.DefaultTTL
	if out.ExpiryDate != nil {
		ttl = out.ExpiryDate.Sub(c.Now())
		if ttl <= 0 {
			if err := c.store.Del(ctx, key).Err(); err != nil {
				Logger.Error(ctx, "Failed to remove cached outcome: ", err)
			}
			return
		}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		Logger.Error(ctx, "Failed to encode outcome: ", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl).Err(); err != nil {
		Logger.Error(ctx, "Failed to cache outcome: ", err)
	}
}

func (c *Cache) recall(ctx context.Context, idTag string) (authtag.Outcome, bool) {
	raw, err := c.store.Get(ctx, c.Prefix+idTag).Bytes()
	if errors.Is(err, redis.Nil) {
		return authtag.Outcome{}, false
	}
	if err != nil {
		Logger.Error(ctx, "Failed to read cached outcome: ", err)
		return authtag.Outcome{}, false
	}

	var out authtag.Outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		Logger.Error(ctx, "Failed to decode cached outcome: ", err)
		return authtag.Outcome{}, false
	}
	if !out.Accepted() {
		return authtag.Outcome{}, false
	}
	if out.ExpiryDate != nil && !out.ExpiryDate.After(c.Now()) {
		return authtag.Outcome{}, false
	}
	return out, true
}
